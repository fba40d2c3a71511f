// Package service drives the aggregation pipeline: it pulls raw samples per
// stream, resolves the night window, computes weighted and calendar
// statistics, applies the outlier policy, folds results into the rolling
// baselines and assembles the report.
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pulse/internal/aggregate"
	"pulse/internal/baseline"
	"pulse/internal/healthsource"
	"pulse/internal/report"
	"pulse/internal/store"
)

// Coordinator owns one refresh run at a time. Stored baselines and anchors
// are the only mutable shared state; the run lock enforces the single-writer
// discipline so two concurrent refreshes cannot interleave writes.
type Coordinator struct {
	source  healthsource.Source
	store   *store.Store
	logger  *zap.Logger
	loc     *time.Location
	version string

	// now is injectable for tests.
	now func() time.Time

	mu sync.Mutex
}

// New creates a Coordinator. The source and store are explicit collaborators,
// constructed once at process start; nothing here reaches for ambient globals.
func New(source healthsource.Source, st *store.Store, logger *zap.Logger, loc *time.Location, version string) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Coordinator{
		source:  source,
		store:   st,
		logger:  logger,
		loc:     loc,
		version: version,
		now:     time.Now,
	}
}

// metricValue is one computed per-day metric before baseline folding. day is
// the calendar day key of the window the value was measured in, which for
// night-scoped signals can differ from the re-aggregation day.
type metricValue struct {
	value *float64
	count int
	tags  []aggregate.QualityTag
	day   string
}

// fetchData holds everything pulled from the source for one run.
type fetchData struct {
	samples   map[string][]healthsource.Sample
	intervals []healthsource.IntervalEvent
	reduced   map[string]map[string]*float64 // stream -> day key -> value
	cursors   map[string]string              // stream -> candidate anchor cursor
	failed    map[string]error               // stream -> fetch error
}

// Refresh runs the full pipeline and returns the fresh report. Running it
// twice with no new data produces identical metric results: baselines are
// day-keyed upserts, so the same day can never be folded in twice.
func (c *Coordinator) Refresh(ctx context.Context) (*report.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().In(c.loc)
	runID := uuid.NewString()
	log := c.logger.With(zap.String("run_id", runID))
	log.Info("starting refresh", zap.Time("now", now))

	anchors, err := c.store.GetAnchors()
	if err != nil {
		return nil, err
	}

	data := c.fetchAll(ctx, now, anchors, log)

	// Re-aggregate the trailing days oldest-first so each day's baseline
	// contribution exists before the next day's figures are derived.
	series := make(map[string][]baseline.Observation)
	var upserts []store.ObservationUpsert
	var todayValues map[string]metricValue
	var night *aggregate.NightWindow
	dayStart := startOfDay(now)

	for d := ReAggregateDays - 1; d >= 0; d-- {
		ds := dayStart.AddDate(0, 0, -d)
		ref := ds.Add(24 * time.Hour)
		if ref.After(now) {
			ref = now
		}

		values, nw := c.aggregateDay(data, ds, ref)

		// Observations carry their own day key: two passes that resolve the
		// same night collapse into one day-keyed upsert instead of counting
		// one physical night twice.
		for name, mv := range values {
			if mv.value == nil || mv.day == "" || c.streamFailed(data, name) {
				continue
			}
			if series[name] == nil {
				loaded, err := c.store.GetObservations(name, 0)
				if err != nil {
					return nil, err
				}
				series[name] = loaded
			}
			series[name] = baseline.Upsert(series[name], baseline.Observation{Day: mv.day, Value: *mv.value})
			upserts = append(upserts, store.ObservationUpsert{MetricID: name, Day: mv.day, Value: *mv.value})
		}

		if d == 0 {
			todayValues = values
			night = nw
		}
	}

	rep, err := c.assemble(now, runID, todayValues, night, data, series)
	if err != nil {
		return nil, err
	}

	js, err := rep.Marshal()
	if err != nil {
		return nil, err
	}

	commit := store.RunCommit{
		Observations: upserts,
		Anchors:      c.advanceableAnchors(anchors, data),
		ReportJSON:   js,
		GeneratedAt:  now,
	}
	if err := c.store.CommitRun(commit); err != nil {
		// The in-memory result is still usable for display; the next run
		// must not assume this one was persisted.
		log.Warn("run not committed", zap.Error(err))
		rep.Flags.NotCommitted = true
	}

	log.Info("refresh complete",
		zap.Int("observations", len(upserts)),
		zap.Int("failed_streams", len(data.failed)))
	return rep, nil
}

// fetchAll pulls every stream concurrently and joins before aggregation. No
// fetch depends on another's result, so the fan-out is unordered; a failed
// stream degrades to "no data this run" without aborting its siblings.
func (c *Coordinator) fetchAll(ctx context.Context, now time.Time, anchors map[string]string, log *zap.Logger) fetchData {
	data := fetchData{
		samples: make(map[string][]healthsource.Sample),
		reduced: make(map[string]map[string]*float64),
		cursors: make(map[string]string),
		failed:  make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	fetchStart := c.fetchStart(now, anchors)
	dayStart := startOfDay(now)

	// Sleep intervals.
	g.Go(func() error {
		events, err := c.source.FetchIntervals(gctx, StreamSleep, fetchStart, now)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			data.failed[StreamSleep] = err
			return nil
		}
		data.intervals = events
		data.cursors[StreamSleep] = intervalCursor(events, anchors[StreamSleep])
		return nil
	})

	// Quantity sample streams.
	for _, stream := range sampleStreams {
		g.Go(func() error {
			start := fetchStart
			if stream == StreamBodyMass {
				start = now.Add(-BodyMassLookback)
			}
			samples, err := c.source.FetchSamples(gctx, stream, start, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				data.failed[stream] = err
				return nil
			}
			data.samples[stream] = samples
			data.cursors[stream] = sampleCursor(samples, anchors[stream])
			return nil
		})
	}

	// Reduced day statistics, one call per trailing day. The platform's own
	// range semantics restrict cumulative values to the exact day, so no
	// re-slicing happens on our side.
	for stream, reducer := range reduceStreams {
		g.Go(func() error {
			byDay := make(map[string]*float64, ReAggregateDays)
			for d := 0; d < ReAggregateDays; d++ {
				ds := dayStart.AddDate(0, 0, -d)
				de := ds.Add(24 * time.Hour)
				if de.After(now) {
					de = now
				}
				v, err := c.source.Reduce(gctx, stream, ds, de, reducer)
				if err != nil {
					mu.Lock()
					data.failed[stream] = err
					mu.Unlock()
					return nil
				}
				byDay[baseline.DayKey(ds)] = v
			}
			mu.Lock()
			data.reduced[stream] = byDay
			data.cursors[stream] = maxCursor(anchors[stream], now.UTC().Format(time.RFC3339))
			mu.Unlock()
			return nil
		})
	}

	// Goroutines record their own failures; the group error is only ever a
	// context cancellation.
	if err := g.Wait(); err != nil {
		log.Warn("fetch interrupted", zap.Error(err))
	}

	for stream, err := range data.failed {
		if errors.Is(err, healthsource.ErrUnavailable) {
			log.Warn("stream unavailable, degrading to no data", zap.String("stream", stream))
		} else {
			log.Warn("stream fetch failed", zap.String("stream", stream), zap.Error(err))
		}
	}

	return data
}

// fetchStart derives the raw fetch range start: the stream anchors bound how
// much is new, but never less than the fixed lookback that guarantees the
// night-window resolver has context even on the very first run.
func (c *Coordinator) fetchStart(now time.Time, anchors map[string]string) time.Time {
	start := now.Add(-FetchLookback)
	for _, cursor := range anchors {
		if t, err := time.Parse(time.RFC3339, cursor); err == nil && t.Before(start) {
			start = t
		}
	}
	return start
}

// aggregateDay computes every signal for one calendar day. ref is the
// reference instant: end of day for closed days, now for today.
func (c *Coordinator) aggregateDay(data fetchData, dayStart, ref time.Time) (map[string]metricValue, *aggregate.NightWindow) {
	values := make(map[string]metricValue)

	// Resolve the night window from asleep intervals in the lookback.
	var candidates []healthsource.IntervalEvent
	for _, ev := range data.intervals {
		if !ev.End.After(ref.Add(-NightLookback)) || ev.End.After(ref) {
			continue
		}
		candidates = append(candidates, ev)
	}
	night := aggregate.ResolveNightWindow(candidates)

	// Night-scoped observations belong to the calendar day the night ended
	// on, which is earlier than the re-aggregation day when a sleep block
	// ends before midnight.
	nightDay := ""
	if night != nil {
		nightDay = baseline.DayKey(night.Window.End.In(c.loc))
	}

	// Night-scoped weighted signals.
	for _, sig := range nightSignals {
		var wv aggregate.WeightedValue
		if night != nil {
			wv = aggregate.WeightedAverage(data.samples[sig.Stream], night.Window)
		}
		capped, tags := aggregate.ApplyOutlierPolicy(wv.Value, wv.SampleCount, sig.Valid)
		values[sig.Name] = metricValue{value: capped, count: wv.SampleCount, tags: tags, day: nightDay}
	}

	// Sleep stage durations.
	stageNames := map[healthsource.SleepStage]string{
		healthsource.StageDeep:  report.SignalSleepDeep,
		healthsource.StageREM:   report.SignalSleepREM,
		healthsource.StageCore:  report.SignalSleepCore,
		healthsource.StageAwake: report.SignalSleepAwake,
	}
	if night != nil {
		stages := aggregate.StageDurations(candidates, night.Window)
		for stage, name := range stageNames {
			if mins, ok := stages[stage]; ok {
				m := mins
				values[name] = metricValue{value: &m, count: night.RawSampleCount, day: nightDay}
			} else {
				values[name] = metricValue{count: 0, tags: []aggregate.QualityTag{aggregate.TagMissingData}}
			}
		}
		if total, ok := aggregate.AsleepMinutes(stages); ok {
			t := total
			values[report.SignalSleepTotal] = metricValue{value: &t, count: night.RawSampleCount, day: nightDay}
		} else {
			values[report.SignalSleepTotal] = metricValue{tags: []aggregate.QualityTag{aggregate.TagMissingData}}
		}
	} else {
		for _, name := range stageNames {
			values[name] = metricValue{tags: []aggregate.QualityTag{aggregate.TagMissingData}}
		}
		values[report.SignalSleepTotal] = metricValue{tags: []aggregate.QualityTag{aggregate.TagMissingData}}
	}

	// Calendar-day resting heart rate.
	dayKey := baseline.DayKey(dayStart)
	rhr := data.reduced[StreamRestingHR][dayKey]
	rhrCount := 0
	if rhr != nil {
		rhrCount = 1
	}
	capped, tags := aggregate.ApplyOutlierPolicy(rhr, rhrCount, restingHRValid)
	values[report.SignalRestingHR] = metricValue{value: capped, count: rhrCount, tags: tags, day: dayKey}

	return values, night
}

// streamFailed reports whether the stream feeding a signal failed this run.
// A failed stream's metrics are excluded from baseline updates so the next
// run can retry from the same anchor.
func (c *Coordinator) streamFailed(data fetchData, signal string) bool {
	stream, ok := signalStream[signal]
	if !ok {
		return false
	}
	_, failed := data.failed[stream]
	return failed
}

// advanceableAnchors returns the cursors to persist: only streams whose fetch
// succeeded advance, and never backward.
func (c *Coordinator) advanceableAnchors(anchors map[string]string, data fetchData) map[string]string {
	out := make(map[string]string)
	for stream, cursor := range data.cursors {
		if _, failed := data.failed[stream]; failed {
			continue
		}
		if cursor == "" {
			continue
		}
		out[stream] = maxCursor(anchors[stream], cursor)
	}
	return out
}

// sampleCursor returns the newest sample boundary seen, falling back to the
// previous cursor when the batch is empty.
func sampleCursor(samples []healthsource.Sample, prev string) string {
	cursor := prev
	for _, s := range samples {
		c := s.End.UTC().Format(time.RFC3339)
		if c > cursor {
			cursor = c
		}
	}
	return cursor
}

func intervalCursor(events []healthsource.IntervalEvent, prev string) string {
	cursor := prev
	for _, ev := range events {
		c := ev.End.UTC().Format(time.RFC3339)
		if c > cursor {
			cursor = c
		}
	}
	return cursor
}

// maxCursor keeps anchor advancement monotonic. RFC3339 UTC strings compare
// lexicographically in time order.
func maxCursor(a, b string) string {
	if a > b {
		return a
	}
	return b
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// sortedTags renders quality tags as a stable string slice, never nil, so
// repeated runs marshal identically.
func sortedTags(tags []aggregate.QualityTag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
