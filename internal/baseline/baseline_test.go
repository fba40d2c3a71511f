package baseline

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func dayN(n int) string {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n).Format(DayKeyLayout)
}

func constantSeries(n int, value float64) []Observation {
	series := make([]Observation, n)
	for i := range series {
		series[i] = Observation{Day: dayN(i), Value: value}
	}
	return series
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		series  []Observation
		checkFn func(t *testing.T, f Figures)
	}{
		{
			name:   "empty series is cold",
			series: nil,
			checkFn: func(t *testing.T, f Figures) {
				if f.Status != StatusCold {
					t.Errorf("Status = %q, want cold", f.Status)
				}
				if f.EMA7 != nil || f.Mean30 != nil || f.Std30 != nil {
					t.Error("expected all figures nil for empty series")
				}
			},
		},
		{
			name:   "single observation seeds the EMA",
			series: []Observation{{Day: dayN(0), Value: 48}},
			checkFn: func(t *testing.T, f Figures) {
				if f.EMA7 == nil || *f.EMA7 != 48 {
					t.Errorf("EMA7 = %v, want 48 (seeded with first value)", f.EMA7)
				}
				if f.Status != StatusWarming {
					t.Errorf("Status = %q, want warming", f.Status)
				}
				if f.Count != 1 {
					t.Errorf("Count = %d, want 1", f.Count)
				}
			},
		},
		{
			name:   "thirty identical days",
			series: constantSeries(30, 52),
			checkFn: func(t *testing.T, f Figures) {
				if f.Status != StatusStable {
					t.Errorf("Status = %q, want stable", f.Status)
				}
				if f.Mean30 == nil || *f.Mean30 != 52 {
					t.Errorf("Mean30 = %v, want 52", f.Mean30)
				}
				if f.Std30 == nil || *f.Std30 != 0 {
					t.Errorf("Std30 = %v, want 0", f.Std30)
				}
				if f.EMA7 == nil || math.Abs(*f.EMA7-52) > 1e-9 {
					t.Errorf("EMA7 = %v, want 52", f.EMA7)
				}
			},
		},
		{
			name: "EMA moves toward recent values",
			series: append(constantSeries(10, 50),
				Observation{Day: dayN(10), Value: 60}),
			checkFn: func(t *testing.T, f Figures) {
				// EMA after constant 50 is 50; one step of 60:
				// 50 + 2/8 * (60-50) = 52.5
				if f.EMA7 == nil || math.Abs(*f.EMA7-52.5) > 1e-9 {
					t.Errorf("EMA7 = %v, want 52.5", f.EMA7)
				}
			},
		},
		{
			name: "old values evicted from the rolling window",
			series: func() []Observation {
				series := constantSeries(10, 100)
				for i := 10; i < 40; i++ {
					series = append(series, Observation{Day: dayN(i), Value: 60})
				}
				return series
			}(),
			checkFn: func(t *testing.T, f Figures) {
				// The 100s fell out of the 30-day window entirely.
				if *f.Mean30 != 60 {
					t.Errorf("Mean30 = %v, want 60 (old days evicted)", *f.Mean30)
				}
				if *f.Std30 != 0 {
					t.Errorf("Std30 = %v, want 0", *f.Std30)
				}
				if f.Count != 40 {
					t.Errorf("Count = %d, want 40", f.Count)
				}
			},
		},
		{
			name: "population standard deviation",
			series: []Observation{
				{Day: dayN(0), Value: 40},
				{Day: dayN(1), Value: 60},
			},
			checkFn: func(t *testing.T, f Figures) {
				if *f.Mean30 != 50 {
					t.Errorf("Mean30 = %v, want 50", *f.Mean30)
				}
				// population std of {40,60} is 10, sample std would be 14.1
				if math.Abs(*f.Std30-10) > 1e-9 {
					t.Errorf("Std30 = %v, want 10", *f.Std30)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.checkFn(t, Compute(tt.series))
		})
	}
}

func TestUpsertIdempotent(t *testing.T) {
	series := constantSeries(5, 50)

	// Re-aggregating the same day must replace, never append.
	series = Upsert(series, Observation{Day: dayN(4), Value: 55})
	series = Upsert(series, Observation{Day: dayN(4), Value: 55})

	if len(series) != 5 {
		t.Fatalf("len = %d, want 5 (same-day upsert replaces)", len(series))
	}
	if series[4].Value != 55 {
		t.Errorf("value = %v, want 55", series[4].Value)
	}

	first := Compute(series)
	second := Compute(Upsert(series, Observation{Day: dayN(4), Value: 55}))
	if *first.Mean30 != *second.Mean30 || *first.EMA7 != *second.EMA7 {
		t.Error("re-running the same upsert changed the figures")
	}
}

func TestUpsertKeepsOrder(t *testing.T) {
	var series []Observation
	for _, n := range []int{3, 0, 2, 1} {
		series = Upsert(series, Observation{Day: dayN(n), Value: float64(n)})
	}
	for i := range series {
		if series[i].Day != dayN(i) {
			t.Errorf("position %d = %s, want %s", i, series[i].Day, dayN(i))
		}
	}
}

func TestDeviation(t *testing.T) {
	mean := 50.0
	stdZero := 0.0
	stdTen := 10.0

	tests := []struct {
		name      string
		x         float64
		figures   Figures
		wantDelta *float64
		wantZ     *float64
	}{
		{
			name:      "no baseline yet",
			x:         55,
			figures:   Figures{Status: StatusCold},
			wantDelta: nil,
			wantZ:     nil,
		},
		{
			name:      "zero deviation yields no z-score",
			x:         55,
			figures:   Figures{Mean30: &mean, Std30: &stdZero},
			wantDelta: ptr(5.0),
			wantZ:     nil,
		},
		{
			name:      "normal case",
			x:         65,
			figures:   Figures{Mean30: &mean, Std30: &stdTen},
			wantDelta: ptr(15.0),
			wantZ:     ptr(1.5),
		},
		{
			name:      "below the mean",
			x:         40,
			figures:   Figures{Mean30: &mean, Std30: &stdTen},
			wantDelta: ptr(-10.0),
			wantZ:     ptr(-1.0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, z := Deviation(tt.x, tt.figures)
			checkPtr(t, "delta", delta, tt.wantDelta)
			checkPtr(t, "z", z, tt.wantZ)
		})
	}
}

func ptr(v float64) *float64 { return &v }

func checkPtr(t *testing.T, label string, got, want *float64) {
	t.Helper()
	if (got == nil) != (want == nil) {
		t.Fatalf("%s = %v, want %v", label, fmtPtr(got), fmtPtr(want))
	}
	if got != nil && math.Abs(*got-*want) > 1e-9 {
		t.Errorf("%s = %v, want %v", label, *got, *want)
	}
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%v", *v)
}
