// Package baseline maintains per-metric rolling baselines: a short-term
// exponential trend and a longer-term rolling mean/variance, both derived from
// day-keyed daily observations. Keeping the raw observations and recomputing
// the figures makes re-runs and late-arriving corrections idempotent: an
// upsert of the same (metric, day) pair can never multiply-count a day.
package baseline

import (
	"math"
	"sort"
	"time"
)

const (
	// EMADays is the time constant of the short-term trend.
	EMADays = 7
	// WindowDays is the size of the rolling mean/variance window.
	WindowDays = 30
	// DayKeyLayout formats a calendar day key.
	DayKeyLayout = "2006-01-02"
)

// Status is the derived warm-up state of a metric's baseline. There is no
// explicit transition event; the status follows from the observation count.
type Status string

const (
	StatusCold    Status = "cold"    // no observations yet
	StatusWarming Status = "warming" // fewer than WindowDays observations
	StatusStable  Status = "stable"
)

// Observation is one daily value of a metric, keyed by calendar day.
type Observation struct {
	Day   string // DayKeyLayout
	Value float64
}

// Figures are the derived baseline values for a metric.
type Figures struct {
	EMA7   *float64
	Mean30 *float64
	Std30  *float64
	Count  int
	Status Status
}

// DayKey returns the calendar-day key of t in its own location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// Upsert inserts or replaces the observation for its day and returns the
// series sorted by day ascending.
func Upsert(series []Observation, obs Observation) []Observation {
	for i := range series {
		if series[i].Day == obs.Day {
			series[i].Value = obs.Value
			return series
		}
	}
	series = append(series, obs)
	sort.Slice(series, func(i, j int) bool { return series[i].Day < series[j].Day })
	return series
}

// Compute derives the baseline figures from a series of daily observations,
// sorted by day ascending.
//
// The EMA uses alpha = 2/(EMADays+1) and is seeded directly with the first
// observation, no blending. Mean and standard deviation reflect exactly the
// most recent WindowDays observations, oldest evicted first.
func Compute(series []Observation) Figures {
	n := len(series)
	if n == 0 {
		return Figures{Status: StatusCold}
	}

	alpha := 2.0 / float64(EMADays+1)
	ema := series[0].Value
	for _, obs := range series[1:] {
		ema = ema + alpha*(obs.Value-ema)
	}

	window := series
	if n > WindowDays {
		window = series[n-WindowDays:]
	}
	var sum float64
	for _, obs := range window {
		sum += obs.Value
	}
	mean := sum / float64(len(window))
	var sumSq float64
	for _, obs := range window {
		d := obs.Value - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(window)))

	status := StatusStable
	if n < WindowDays {
		status = StatusWarming
	}

	return Figures{
		EMA7:   &ema,
		Mean30: &mean,
		Std30:  &std,
		Count:  n,
		Status: status,
	}
}

// Deviation scores an observation against the figures: delta against the
// rolling mean, and a z-score only when the rolling deviation is positive. A
// single-sample or constant baseline yields a nil z-score, never a division
// by zero.
func Deviation(x float64, f Figures) (delta, z *float64) {
	if f.Mean30 == nil {
		return nil, nil
	}
	d := x - *f.Mean30
	delta = &d
	if f.Std30 != nil && *f.Std30 > 0 {
		zv := d / *f.Std30
		z = &zv
	}
	return delta, z
}
