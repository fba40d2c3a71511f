package healthsource

import "time"

// Sample is a single observation of one metric. Start and End are equal for
// instantaneous samples. Samples are immutable once fetched.
type Sample struct {
	MetricID     string
	Start        time.Time
	End          time.Time
	Value        float64
	SourceDevice string
}

// Duration returns the wall-clock span of the sample.
func (s Sample) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// SleepStage is the categorical stage of a sleep interval event.
type SleepStage string

const (
	StageAwake             SleepStage = "awake"
	StageCore              SleepStage = "core"
	StageDeep              SleepStage = "deep"
	StageREM               SleepStage = "rem"
	StageAsleepUnspecified SleepStage = "asleep_unspecified"
)

// IsAsleep reports whether the stage counts as sleep for window resolution.
func (s SleepStage) IsAsleep() bool {
	return s == StageCore || s == StageDeep || s == StageREM || s == StageAsleepUnspecified
}

// IntervalEvent is a categorical interval, e.g. one sleep stage segment.
type IntervalEvent struct {
	Start time.Time
	End   time.Time
	Stage SleepStage
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window. It panics if end <= start: an inverted window is a
// programming fault, not a data condition.
func NewWindow(start, end time.Time) Window {
	if !end.After(start) {
		panic("healthsource: window end must be after start")
	}
	return Window{Start: start, End: end}
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether two windows share any time.
// Two windows overlap iff max(start) < min(end).
func (w Window) Overlaps(o Window) bool {
	return w.Overlap(o.Start, o.End) > 0
}

// Overlap returns the overlap duration between the window and [start, end),
// clamped at zero.
func (w Window) Overlap(start, end time.Time) time.Duration {
	lo := w.Start
	if start.After(lo) {
		lo = start
	}
	hi := w.End
	if end.Before(hi) {
		hi = end
	}
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo)
}

// OverlapSample returns how much of the sample's own span falls inside the
// window. Instantaneous samples always return zero.
func (w Window) OverlapSample(s Sample) time.Duration {
	return w.Overlap(s.Start, s.End)
}

// Contains reports whether t falls inside the half-open window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
