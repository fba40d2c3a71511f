package aggregate

import (
	"sort"
	"time"

	"pulse/internal/healthsource"
)

// MergeGapTolerance is the largest gap between two sleep intervals that still
// counts as one continuous sleep block. Watches routinely split a night into
// segments separated by brief gaps at stage transitions.
const MergeGapTolerance = 5 * time.Minute

// NightWindow is the resolved contiguous sleep block used to bound
// recovery-metric aggregation, plus the number of raw interval events it was
// derived from, for provenance.
type NightWindow struct {
	Window         healthsource.Window
	RawSampleCount int
}

// ResolveNightWindow merges asleep-stage interval events into contiguous
// blocks and returns the most recent one: the block with the latest end time,
// ties broken by longer duration. It returns nil when no asleep events exist —
// callers must treat sleep-bounded metrics as unavailable, never as zero.
func ResolveNightWindow(events []healthsource.IntervalEvent) *NightWindow {
	asleep := make([]healthsource.IntervalEvent, 0, len(events))
	for _, ev := range events {
		if ev.Stage.IsAsleep() && ev.End.After(ev.Start) {
			asleep = append(asleep, ev)
		}
	}
	if len(asleep) == 0 {
		return nil
	}

	sort.Slice(asleep, func(i, j int) bool { return asleep[i].Start.Before(asleep[j].Start) })

	// Merge adjacent intervals. Boundaries only ever extend: an interval fully
	// contained in the current block leaves the block unchanged, so overlapping
	// source intervals never double-count duration.
	blocks := []healthsource.Window{healthsource.NewWindow(asleep[0].Start, asleep[0].End)}
	for _, ev := range asleep[1:] {
		cur := &blocks[len(blocks)-1]
		if ev.Start.Sub(cur.End) <= MergeGapTolerance {
			if ev.End.After(cur.End) {
				cur.End = ev.End
			}
			continue
		}
		blocks = append(blocks, healthsource.NewWindow(ev.Start, ev.End))
	}

	best := blocks[0]
	for _, b := range blocks[1:] {
		if b.End.After(best.End) {
			best = b
			continue
		}
		if b.End.Equal(best.End) && b.Duration() > best.Duration() {
			best = b
		}
	}

	return &NightWindow{Window: best, RawSampleCount: len(asleep)}
}

// MergeIntervals merges a set of windows using the same gap tolerance and
// returns the resulting pairwise non-overlapping set, sorted by start time.
// Merging an already-merged set yields the same set.
func MergeIntervals(windows []healthsource.Window) []healthsource.Window {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]healthsource.Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []healthsource.Window{sorted[0]}
	for _, w := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if w.Start.Sub(cur.End) <= MergeGapTolerance {
			if w.End.After(cur.End) {
				cur.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
