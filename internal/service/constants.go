package service

import (
	"time"

	"pulse/internal/aggregate"
	"pulse/internal/healthsource"
	"pulse/internal/report"
)

// Raw stream identifiers. Each stream carries its own sync anchor.
const (
	StreamSleep           = "sleep_analysis"
	StreamHRV             = "heart_rate_variability"
	StreamRestingHR       = "resting_heart_rate"
	StreamRespiratoryRate = "respiratory_rate"
	StreamWristTemp       = "wrist_temperature"
	StreamHeartRate       = "heart_rate"
	StreamSteps           = "steps"
	StreamActiveEnergy    = "active_energy"
	StreamExercise        = "exercise_minutes"
	StreamWorkouts        = "workouts"
	StreamBodyMass        = "body_mass"
)

const (
	// NightLookback bounds how far back the night-window resolver searches
	// for sleep intervals relative to its reference instant.
	NightLookback = 48 * time.Hour

	// ReAggregateDays is how many trailing calendar days every run
	// re-aggregates, so late-arriving samples retroactively correct nights
	// that were already reported.
	ReAggregateDays = 3

	// FetchLookback is the raw fetch range for sample and interval streams.
	// It must cover the oldest re-aggregated day's night-window lookback.
	FetchLookback = time.Duration(ReAggregateDays+1) * 24 * time.Hour

	// BodyMassLookback is wider because body mass is recorded sparsely and
	// most_recent needs something to pick from.
	BodyMassLookback = 30 * 24 * time.Hour
)

// nightSignal describes a readiness signal computed by duration-weighted
// aggregation over the night window.
type nightSignal struct {
	Name   string
	Stream string
	Unit   string
	Valid  *aggregate.ValidRange
}

// Valid ranges below follow the documented physiological bounds; metrics
// without a documented range are never capped.
var nightSignals = []nightSignal{
	{Name: report.SignalHRV, Stream: StreamHRV, Unit: "ms", Valid: &aggregate.ValidRange{Min: 5, Max: 250}},
	{Name: report.SignalRespiratoryRate, Stream: StreamRespiratoryRate, Unit: "breaths/min"},
	{Name: report.SignalWristTemp, Stream: StreamWristTemp, Unit: "degC", Valid: &aggregate.ValidRange{Min: -2.0, Max: 2.0}},
}

// restingHRValid bounds the calendar-day resting heart rate signal.
var restingHRValid = &aggregate.ValidRange{Min: 30, Max: 120}

// sleepSignalUnit is the unit of every sleep stage signal.
const sleepSignalUnit = "min"

// sampleStreams are fetched via FetchSamples over FetchLookback, except body
// mass which uses its own wider lookback.
var sampleStreams = []string{
	StreamHRV,
	StreamRespiratoryRate,
	StreamWristTemp,
	StreamHeartRate,
	StreamWorkouts,
	StreamBodyMass,
}

// reduceStreams are queried via Reduce, once per re-aggregated day. The
// platform's range semantics make these the authoritative per-day totals.
var reduceStreams = map[string]healthsource.Reducer{
	StreamSteps:        healthsource.ReduceCumulativeSum,
	StreamActiveEnergy: healthsource.ReduceCumulativeSum,
	StreamExercise:     healthsource.ReduceCumulativeSum,
	StreamRestingHR:    healthsource.ReduceDiscreteAverage,
}

// signalStream maps each readiness signal to the raw stream that feeds it,
// so a failed fetch can exclude exactly its own signals from baseline
// updates. Sleep stage signals all ride on the sleep stream.
var signalStream = map[string]string{
	report.SignalHRV:             StreamHRV,
	report.SignalRestingHR:       StreamRestingHR,
	report.SignalRespiratoryRate: StreamRespiratoryRate,
	report.SignalWristTemp:       StreamWristTemp,
	report.SignalSleepTotal:      StreamSleep,
	report.SignalSleepDeep:       StreamSleep,
	report.SignalSleepREM:        StreamSleep,
	report.SignalSleepCore:       StreamSleep,
	report.SignalSleepAwake:      StreamSleep,
}

// signalUnits gives the report unit for every readiness signal.
var signalUnits = map[string]string{
	report.SignalHRV:             "ms",
	report.SignalRestingHR:       "bpm",
	report.SignalRespiratoryRate: "breaths/min",
	report.SignalWristTemp:       "degC",
	report.SignalSleepTotal:      sleepSignalUnit,
	report.SignalSleepDeep:       sleepSignalUnit,
	report.SignalSleepREM:        sleepSignalUnit,
	report.SignalSleepCore:       sleepSignalUnit,
	report.SignalSleepAwake:      sleepSignalUnit,
}
