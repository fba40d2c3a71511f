// Package report defines the externally visible snapshot produced by a
// refresh run. The field set and types are a frozen contract: downstream
// consumers, including an external summarizer, rely on stable keys across
// runs. Nullable numbers serialize as JSON null, never as zero.
package report

import (
	"encoding/json"
	"time"
)

// Signal metric names, the keys of ReadinessSignals.
const (
	SignalHRV             = "hrv"
	SignalRestingHR       = "resting_hr"
	SignalRespiratoryRate = "respiratory_rate"
	SignalWristTemp       = "wrist_temp"
	SignalSleepTotal      = "sleep_total"
	SignalSleepDeep       = "sleep_deep"
	SignalSleepREM        = "sleep_rem"
	SignalSleepCore       = "sleep_core"
	SignalSleepAwake      = "sleep_awake"
)

// Report is the full snapshot of one aggregation run.
type Report struct {
	Meta             Meta              `json:"meta"`
	Windows          Windows           `json:"windows"`
	ReadinessSignals map[string]Signal `json:"readiness_signals"`
	Activity         Activity          `json:"activity"`
	Health           Health            `json:"health"`
	Flags            Flags             `json:"flags"`
}

// Meta describes how and when the report was generated.
type Meta struct {
	GeneratedAt           time.Time `json:"generated_at"` // UTC
	TimezoneOffsetMinutes int       `json:"timezone_offset_minutes"`
	AppVersion            string    `json:"app_version"`
	RunID                 string    `json:"run_id"`
}

// Windows holds the resolved night window and the calendar day boundaries.
// Night fields are null when no sleep data was found in the lookback.
type Windows struct {
	NightStart       *time.Time `json:"night_start"`
	NightEnd         *time.Time `json:"night_end"`
	NightSampleCount int        `json:"night_sample_count"`
	DayStart         time.Time  `json:"day_start"`
	DayEnd           time.Time  `json:"day_end"`
}

// Signal is one metric's point estimate plus its baseline context.
// Value is null iff SampleCount is zero.
type Signal struct {
	Value           *float64 `json:"value"`
	Unit            string   `json:"unit"`
	SampleCount     int      `json:"sample_count"`
	Quality         []string `json:"quality"`
	Baseline7dEMA   *float64 `json:"baseline_7d_ema"`
	Baseline30dMean *float64 `json:"baseline_30d_mean"`
	Baseline30dStd  *float64 `json:"baseline_30d_std"`
	DeltaVs30d      *float64 `json:"delta_vs_30d"`
	ZScore30d       *float64 `json:"z_score_30d"`
	BaselineStatus  string   `json:"baseline_status"`
}

// Activity holds calendar-day activity aggregates.
type Activity struct {
	Steps            *float64           `json:"steps"`
	ActiveEnergyKcal *float64           `json:"active_energy_kcal"`
	ExerciseMinutes  *float64           `json:"exercise_minutes"`
	WorkoutMinutes   *float64           `json:"workout_minutes"`
	WorkoutCount     *int               `json:"workout_count"`
	HRZoneMinutes    map[string]float64 `json:"hr_zone_minutes"`
}

// Health holds slowly-changing day-level health readings.
type Health struct {
	BodyMassKg *float64 `json:"body_mass_kg"`
}

// Flags are the report's named boolean conditions. The key set is fixed.
type Flags struct {
	MissingHRV             bool `json:"missing_hrv"`
	MissingRestingHR       bool `json:"missing_resting_hr"`
	MissingRespiratoryRate bool `json:"missing_respiratory_rate"`
	MissingWristTemp       bool `json:"missing_wrist_temp"`
	LowSleepConfidence     bool `json:"low_sleep_confidence"`
	PermissionsPartial     bool `json:"permissions_partial"`
	NotCommitted           bool `json:"not_committed"`
	AggregationError       bool `json:"aggregation_error"`
}

// Marshal renders the report as indented JSON with a stable key order.
func (r *Report) Marshal() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Unmarshal parses a previously persisted report.
func Unmarshal(data string) (*Report, error) {
	var r Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
