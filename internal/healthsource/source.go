package healthsource

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by a Source when the underlying platform store is
// temporarily unreachable. Callers treat it as "no data this run" and retry on
// the next run; it is never fatal to an aggregation run.
var ErrUnavailable = errors.New("health source unavailable")

// Reducer selects how Reduce collapses a range of samples into one number.
type Reducer string

const (
	ReduceCumulativeSum   Reducer = "cumulative_sum"
	ReduceDiscreteAverage Reducer = "discrete_average"
	ReduceDiscreteMax     Reducer = "discrete_max"
)

// Source is the closed set of typed query capabilities the aggregation core
// depends on. A production implementation talks to the platform health store;
// tests use Memory. All calls are read-only and may legitimately return no data.
type Source interface {
	// FetchSamples returns all samples of the metric overlapping [start, end),
	// ordered by start time ascending.
	FetchSamples(ctx context.Context, metricID string, start, end time.Time) ([]Sample, error)

	// FetchIntervals returns all interval events of the metric overlapping
	// [start, end), in no guaranteed order.
	FetchIntervals(ctx context.Context, metricID string, start, end time.Time) ([]IntervalEvent, error)

	// Reduce collapses the metric's samples in [start, end) to a single
	// statistic using the platform's own range semantics. It returns
	// (nil, nil) when the range holds no samples.
	Reduce(ctx context.Context, metricID string, start, end time.Time, reducer Reducer) (*float64, error)
}
