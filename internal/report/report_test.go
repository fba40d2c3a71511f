package report

import (
	"strings"
	"testing"
	"time"
)

func TestMarshalNullsNotZeros(t *testing.T) {
	rep := &Report{
		Meta: Meta{
			GeneratedAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
			RunID:       "r1",
		},
		ReadinessSignals: map[string]Signal{
			SignalHRV: {
				Unit:        "ms",
				SampleCount: 0,
				Quality:     []string{"missing_data"},
			},
		},
	}

	js, err := rep.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	// A missing metric serializes as null, never 0: a downstream consumer
	// must be able to tell "no data" from "measured zero".
	if !strings.Contains(js, `"value": null`) {
		t.Error("missing value should serialize as null")
	}
	if !strings.Contains(js, `"night_start": null`) {
		t.Error("unresolved night window should serialize as null")
	}
	if !strings.Contains(js, `"hr_zone_minutes": null`) {
		t.Error("absent zone breakdown should serialize as null")
	}

	// Flag keys are a fixed set, present even when false.
	for _, key := range []string{
		"missing_hrv", "missing_resting_hr", "missing_respiratory_rate",
		"missing_wrist_temp", "low_sleep_confidence", "permissions_partial",
		"not_committed", "aggregation_error",
	} {
		if !strings.Contains(js, `"`+key+`"`) {
			t.Errorf("flag %q missing from output", key)
		}
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	value := 52.5
	rep := &Report{
		Meta: Meta{
			GeneratedAt:           time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
			TimezoneOffsetMinutes: 60,
			AppVersion:            "0.1.0",
			RunID:                 "r1",
		},
		ReadinessSignals: map[string]Signal{
			SignalHRV: {
				Value:       &value,
				Unit:        "ms",
				SampleCount: 12,
				Quality:     []string{},
			},
		},
		Flags: Flags{LowSleepConfidence: true},
	}

	js, err := rep.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := Unmarshal(js)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	sig := got.ReadinessSignals[SignalHRV]
	if sig.Value == nil || *sig.Value != 52.5 {
		t.Errorf("Value = %v, want 52.5", sig.Value)
	}
	if sig.SampleCount != 12 {
		t.Errorf("SampleCount = %d, want 12", sig.SampleCount)
	}
	if !got.Flags.LowSleepConfidence {
		t.Error("LowSleepConfidence flag lost in round trip")
	}
	if got.Meta.RunID != "r1" {
		t.Errorf("RunID = %q, want r1", got.Meta.RunID)
	}
}
