package healthsource

import (
	"context"
	"sort"
	"time"
)

// Memory is an in-memory Source for tests and offline development.
// Individual streams can be marked as failing to exercise degraded runs.
type Memory struct {
	samples   map[string][]Sample
	intervals map[string][]IntervalEvent
	failing   map[string]bool
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{
		samples:   make(map[string][]Sample),
		intervals: make(map[string][]IntervalEvent),
		failing:   make(map[string]bool),
	}
}

// AddSamples appends samples to a metric's stream.
func (m *Memory) AddSamples(metricID string, samples ...Sample) {
	m.samples[metricID] = append(m.samples[metricID], samples...)
}

// AddIntervals appends interval events to a metric's stream.
func (m *Memory) AddIntervals(metricID string, events ...IntervalEvent) {
	m.intervals[metricID] = append(m.intervals[metricID], events...)
}

// SetFailing marks a metric's stream as transiently unavailable.
func (m *Memory) SetFailing(metricID string, failing bool) {
	m.failing[metricID] = failing
}

// FetchSamples implements Source.
func (m *Memory) FetchSamples(_ context.Context, metricID string, start, end time.Time) ([]Sample, error) {
	if m.failing[metricID] {
		return nil, ErrUnavailable
	}
	var out []Sample
	for _, s := range m.samples[metricID] {
		if overlapsRange(s.Start, s.End, start, end) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// FetchIntervals implements Source.
func (m *Memory) FetchIntervals(_ context.Context, metricID string, start, end time.Time) ([]IntervalEvent, error) {
	if m.failing[metricID] {
		return nil, ErrUnavailable
	}
	var out []IntervalEvent
	for _, ev := range m.intervals[metricID] {
		if overlapsRange(ev.Start, ev.End, start, end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Reduce implements Source. Cumulative sums include a sample's full value when
// its start falls inside the range, mirroring the platform's bucketing rules.
func (m *Memory) Reduce(_ context.Context, metricID string, start, end time.Time, reducer Reducer) (*float64, error) {
	if m.failing[metricID] {
		return nil, ErrUnavailable
	}
	var values []float64
	for _, s := range m.samples[metricID] {
		if !s.Start.Before(start) && s.Start.Before(end) {
			values = append(values, s.Value)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}

	var result float64
	switch reducer {
	case ReduceCumulativeSum:
		for _, v := range values {
			result += v
		}
	case ReduceDiscreteAverage:
		for _, v := range values {
			result += v
		}
		result /= float64(len(values))
	case ReduceDiscreteMax:
		result = values[0]
		for _, v := range values[1:] {
			if v > result {
				result = v
			}
		}
	default:
		return nil, nil
	}
	return &result, nil
}

// overlapsRange reports whether [aStart, aEnd) overlaps [bStart, bEnd),
// treating instantaneous spans as contained points.
func overlapsRange(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aStart.Equal(aEnd) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	lo := aStart
	if bStart.After(lo) {
		lo = bStart
	}
	hi := aEnd
	if bEnd.Before(hi) {
		hi = bEnd
	}
	return hi.After(lo)
}
