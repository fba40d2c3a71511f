package aggregate

import (
	"sort"

	"pulse/internal/healthsource"
)

// Calendar-range reducers. Cumulative and discrete statistics over a plain
// [start, end) range are delegated to the source's own Reduce call, because
// the platform already restricts cumulative values to the exact range and
// re-slicing them here would double count boundary-spanning samples. The
// helpers below cover the reductions the source does not provide.

// MostRecent returns the value of the latest sample by start time, used for
// slowly-changing quantities like body mass. Nil when there are no samples.
func MostRecent(samples []healthsource.Sample) *float64 {
	if len(samples) == 0 {
		return nil
	}
	latest := samples[0]
	for _, s := range samples[1:] {
		if s.Start.After(latest.Start) {
			latest = s
		}
	}
	v := latest.Value
	return &v
}

// HRZoneCutpoints are the bpm thresholds bounding the five effort zones.
// Zone i covers [cutpoint[i], cutpoint[i+1]); zone 5 is unbounded above.
// Readings below the first cutpoint are not attributed to any zone.
var HRZoneCutpoints = [5]float64{95, 114, 133, 152, 171}

// HeartRateZones buckets a heart-rate time series into per-zone minutes.
// For each consecutive sample pair the time delta between them is attributed
// to the zone implied by the earlier sample's bpm: the rate at the start of an
// interval determines which zone that interval counts toward. Fewer than two
// points yields no breakdown (nil).
func HeartRateZones(samples []healthsource.Sample) map[int]float64 {
	if len(samples) < 2 {
		return nil
	}
	sorted := make([]healthsource.Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	minutes := make(map[int]float64)
	for i := 0; i < len(sorted)-1; i++ {
		zone := zoneFor(sorted[i].Value)
		if zone == 0 {
			continue
		}
		delta := sorted[i+1].Start.Sub(sorted[i].Start)
		if delta <= 0 {
			continue
		}
		minutes[zone] += delta.Minutes()
	}
	return minutes
}

// zoneFor returns the 1-based zone for a bpm reading, or 0 below zone 1.
func zoneFor(bpm float64) int {
	zone := 0
	for _, cut := range HRZoneCutpoints {
		if bpm < cut {
			break
		}
		zone++
	}
	return zone
}
