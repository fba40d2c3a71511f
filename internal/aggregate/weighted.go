package aggregate

import (
	"pulse/internal/healthsource"
)

// WeightedValue is the outcome of a duration-weighted aggregation.
// SampleCount counts the samples that contributed, i.e. those with positive
// overlap with the window; samples fetched but entirely outside the window are
// not counted.
type WeightedValue struct {
	Value       *float64
	SampleCount int
}

// WeightedAverage computes the duration-weighted average of the samples over
// the window. Each sample's weight is the wall-clock overlap of its own span
// with the window, so a long low-confidence sample cannot outweigh a short
// precise one beyond its actual in-window time. Partial overlap is expected;
// strict containment is not required. Value is nil when no sample overlaps.
func WeightedAverage(samples []healthsource.Sample, w healthsource.Window) WeightedValue {
	var weightedSum, totalWeight float64
	count := 0
	for _, s := range samples {
		overlap := w.OverlapSample(s).Seconds()
		if overlap <= 0 {
			continue
		}
		weightedSum += s.Value * overlap
		totalWeight += overlap
		count++
	}
	if totalWeight <= 0 {
		return WeightedValue{}
	}
	v := weightedSum / totalWeight
	return WeightedValue{Value: &v, SampleCount: count}
}

// StageDurations accumulates per-stage overlap with the window, in minutes.
// Stages with zero accumulated duration are absent from the map rather than
// zero, to distinguish "no REM detected" from "not recorded".
func StageDurations(events []healthsource.IntervalEvent, w healthsource.Window) map[healthsource.SleepStage]float64 {
	minutes := make(map[healthsource.SleepStage]float64)
	for _, ev := range events {
		overlap := w.Overlap(ev.Start, ev.End)
		if overlap <= 0 {
			continue
		}
		minutes[ev.Stage] += overlap.Minutes()
	}
	return minutes
}

// AsleepMinutes sums the asleep-stage entries of a stage breakdown. The second
// return is false when no asleep stage was observed at all.
func AsleepMinutes(stages map[healthsource.SleepStage]float64) (float64, bool) {
	var total float64
	found := false
	for stage, mins := range stages {
		if stage.IsAsleep() {
			total += mins
			found = true
		}
	}
	return total, found
}
