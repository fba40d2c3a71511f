package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse/internal/healthsource"
	"pulse/internal/report"
	"pulse/internal/store"
)

// testNow is a morning instant after a full night of data.
var testNow = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

// newTestCoordinator wires a Coordinator against an in-memory source and
// store, with a fixed clock.
func newTestCoordinator(t *testing.T, mem *healthsource.Memory) (*Coordinator, *store.Store) {
	t.Helper()
	st := store.NewTestStore(t)
	c := New(mem, st, zap.NewNop(), time.UTC, "test")
	c.now = func() time.Time { return testNow }
	return c, st
}

// seedNight populates one complete night plus daytime activity.
func seedNight(mem *healthsource.Memory) {
	// Night: core 23:50-03:00, rem 03:00-06:10, merged [23:50, 06:10).
	mem.AddIntervals(StreamSleep,
		healthsource.IntervalEvent{Start: at(1, 23, 50), End: at(2, 3, 0), Stage: healthsource.StageCore},
		healthsource.IntervalEvent{Start: at(2, 3, 0), End: at(2, 6, 10), Stage: healthsource.StageREM},
	)
	mem.AddSamples(StreamHRV,
		healthsource.Sample{Start: at(2, 0, 0), End: at(2, 1, 0), Value: 45},
		healthsource.Sample{Start: at(2, 1, 0), End: at(2, 7, 0), Value: 55},
	)
	mem.AddSamples(StreamRestingHR,
		healthsource.Sample{Start: at(2, 8, 0), End: at(2, 8, 0), Value: 55},
	)
	mem.AddSamples(StreamSteps,
		healthsource.Sample{Start: at(2, 8, 0), End: at(2, 8, 30), Value: 1000},
		healthsource.Sample{Start: at(2, 8, 30), End: at(2, 8, 45), Value: 2000},
	)
	mem.AddSamples(StreamBodyMass,
		healthsource.Sample{Start: at(1, 7, 0), End: at(1, 7, 0), Value: 72.4},
	)
}

func TestRefreshFullNight(t *testing.T) {
	mem := healthsource.NewMemory()
	seedNight(mem)
	c, st := newTestCoordinator(t, mem)

	rep, err := c.Refresh(context.Background())
	require.NoError(t, err)

	// Night window resolved from merged sleep segments.
	require.NotNil(t, rep.Windows.NightStart)
	assert.True(t, rep.Windows.NightStart.Equal(at(1, 23, 50)))
	assert.True(t, rep.Windows.NightEnd.Equal(at(2, 6, 10)))
	assert.Equal(t, 2, rep.Windows.NightSampleCount)

	// HRV weighted by in-window overlap: the first sample contributes its
	// full hour, the second only until the window end at 06:10.
	hrv := rep.ReadinessSignals[report.SignalHRV]
	require.NotNil(t, hrv.Value)
	want := (45*3600.0 + 55*18600.0) / 22200.0
	assert.InDelta(t, want, *hrv.Value, 1e-9)
	assert.Equal(t, 2, hrv.SampleCount)
	assert.Empty(t, hrv.Quality)
	assert.Equal(t, "ms", hrv.Unit)
	assert.Equal(t, "warming", hrv.BaselineStatus)

	// Resting HR comes from the day-range discrete average.
	rhr := rep.ReadinessSignals[report.SignalRestingHR]
	require.NotNil(t, rhr.Value)
	assert.Equal(t, 55.0, *rhr.Value)

	// Sleep stage minutes, absent stages stay null.
	total := rep.ReadinessSignals[report.SignalSleepTotal]
	require.NotNil(t, total.Value)
	assert.InDelta(t, 380, *total.Value, 1e-9)
	deep := rep.ReadinessSignals[report.SignalSleepDeep]
	assert.Nil(t, deep.Value)
	assert.Equal(t, []string{"missing_data"}, deep.Quality)
	rem := rep.ReadinessSignals[report.SignalSleepREM]
	require.NotNil(t, rem.Value)
	assert.InDelta(t, 190, *rem.Value, 1e-9)

	// Activity and health.
	require.NotNil(t, rep.Activity.Steps)
	assert.Equal(t, 3000.0, *rep.Activity.Steps)
	require.NotNil(t, rep.Health.BodyMassKg)
	assert.Equal(t, 72.4, *rep.Health.BodyMassKg)

	// No flags on a clean run.
	assert.False(t, rep.Flags.MissingHRV)
	assert.False(t, rep.Flags.LowSleepConfidence)
	assert.False(t, rep.Flags.PermissionsPartial)
	assert.False(t, rep.Flags.NotCommitted)

	// The run committed: baselines hold today's HRV, anchors advanced to the
	// newest sample boundary.
	obs, err := st.GetObservations(report.SignalHRV, 0)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "2024-03-02", obs[0].Day)
	assert.InDelta(t, want, obs[0].Value, 1e-9)

	anchors, err := st.GetAnchors()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02T07:00:00Z", anchors[StreamHRV])
	assert.Equal(t, "2024-03-02T06:10:00Z", anchors[StreamSleep])
	assert.Equal(t, "2024-03-02T09:00:00Z", anchors[StreamSteps])

	// The persisted report matches what was returned.
	js, err := st.GetLastReportJSON()
	require.NoError(t, err)
	wantJS, err := rep.Marshal()
	require.NoError(t, err)
	assert.Equal(t, wantJS, js)
}

func TestRefreshIdempotent(t *testing.T) {
	mem := healthsource.NewMemory()
	seedNight(mem)
	c, st := newTestCoordinator(t, mem)

	first, err := c.Refresh(context.Background())
	require.NoError(t, err)
	second, err := c.Refresh(context.Background())
	require.NoError(t, err)

	// Metric results are byte-identical across re-runs with no new data;
	// only run identity differs.
	first.Meta = report.Meta{}
	second.Meta = report.Meta{}
	js1, err := first.Marshal()
	require.NoError(t, err)
	js2, err := second.Marshal()
	require.NoError(t, err)
	assert.Equal(t, js1, js2)

	// Same-day upsert, never a duplicate observation.
	count, err := st.CountObservations(report.SignalHRV)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRefreshNightEndingBeforeMidnight(t *testing.T) {
	mem := healthsource.NewMemory()
	// The whole night falls before midnight on March 1. Both the March 1
	// and March 2 re-aggregation passes see it; it must land in the
	// baselines exactly once, on the day it ended.
	mem.AddIntervals(StreamSleep,
		healthsource.IntervalEvent{Start: at(1, 21, 30), End: at(1, 23, 30), Stage: healthsource.StageCore},
	)
	mem.AddSamples(StreamHRV,
		healthsource.Sample{Start: at(1, 21, 30), End: at(1, 23, 30), Value: 48},
	)
	c, st := newTestCoordinator(t, mem)

	rep, err := c.Refresh(context.Background())
	require.NoError(t, err)

	obs, err := st.GetObservations(report.SignalHRV, 0)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "2024-03-01", obs[0].Day)
	assert.Equal(t, 48.0, obs[0].Value)

	count, err := st.CountObservations(report.SignalSleepTotal)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The report still surfaces the most recent night and its HRV.
	require.NotNil(t, rep.Windows.NightStart)
	assert.True(t, rep.Windows.NightStart.Equal(at(1, 21, 30)))
	assert.True(t, rep.Windows.NightEnd.Equal(at(1, 23, 30)))
	hrv := rep.ReadinessSignals[report.SignalHRV]
	require.NotNil(t, hrv.Value)
	assert.Equal(t, 48.0, *hrv.Value)
}

func TestRefreshFailingStream(t *testing.T) {
	mem := healthsource.NewMemory()
	seedNight(mem)
	mem.SetFailing(StreamHRV, true)
	c, st := newTestCoordinator(t, mem)

	rep, err := c.Refresh(context.Background())
	require.NoError(t, err)

	// The failed stream degrades to no data, flagged but not fatal.
	hrv := rep.ReadinessSignals[report.SignalHRV]
	assert.Nil(t, hrv.Value)
	assert.Equal(t, []string{"missing_data"}, hrv.Quality)
	assert.True(t, rep.Flags.MissingHRV)
	assert.True(t, rep.Flags.PermissionsPartial)

	// Sibling streams still populate.
	require.NotNil(t, rep.ReadinessSignals[report.SignalSleepTotal].Value)
	require.NotNil(t, rep.Activity.Steps)

	// No baseline update and no anchor advance for the failed stream, so the
	// next run retries from the same position.
	count, err := st.CountObservations(report.SignalHRV)
	require.NoError(t, err)
	assert.Zero(t, count)
	anchors, err := st.GetAnchors()
	require.NoError(t, err)
	_, ok := anchors[StreamHRV]
	assert.False(t, ok)
	assert.Contains(t, anchors, StreamSleep)

	// Recovery: the stream comes back and the same day fills in.
	mem.SetFailing(StreamHRV, false)
	rep, err = c.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep.ReadinessSignals[report.SignalHRV].Value)
	count, err = st.CountObservations(report.SignalHRV)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRefreshNoSleepData(t *testing.T) {
	mem := healthsource.NewMemory()
	// Activity only, no sleep intervals at all.
	mem.AddSamples(StreamSteps,
		healthsource.Sample{Start: at(2, 8, 0), End: at(2, 8, 30), Value: 4000},
	)
	c, _ := newTestCoordinator(t, mem)

	rep, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Nil(t, rep.Windows.NightStart)
	assert.Nil(t, rep.Windows.NightEnd)
	assert.True(t, rep.Flags.LowSleepConfidence)
	assert.False(t, rep.Flags.PermissionsPartial)

	// Sleep-bounded metrics are null, never zero.
	for _, name := range []string{
		report.SignalHRV,
		report.SignalSleepTotal,
		report.SignalSleepDeep,
	} {
		sig := rep.ReadinessSignals[name]
		assert.Nil(t, sig.Value, name)
		assert.Equal(t, []string{"missing_data"}, sig.Quality, name)
	}

	// The day's activity is unaffected.
	require.NotNil(t, rep.Activity.Steps)
	assert.Equal(t, 4000.0, *rep.Activity.Steps)
}

func TestRefreshOutlierCapped(t *testing.T) {
	mem := healthsource.NewMemory()
	mem.AddIntervals(StreamSleep,
		healthsource.IntervalEvent{Start: at(1, 23, 0), End: at(2, 6, 0), Stage: healthsource.StageCore},
	)
	// Implausibly low HRV for the whole night.
	mem.AddSamples(StreamHRV,
		healthsource.Sample{Start: at(2, 0, 0), End: at(2, 5, 0), Value: 4.9},
	)
	c, st := newTestCoordinator(t, mem)

	rep, err := c.Refresh(context.Background())
	require.NoError(t, err)

	hrv := rep.ReadinessSignals[report.SignalHRV]
	require.NotNil(t, hrv.Value)
	assert.Equal(t, 5.0, *hrv.Value)
	assert.Equal(t, []string{"outlier_capped"}, hrv.Quality)
	assert.False(t, rep.Flags.MissingHRV)

	// The capped value, not the raw one, feeds the baseline.
	obs, err := st.GetObservations(report.SignalHRV, 0)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 5.0, obs[0].Value)
}

func TestRefreshHRZones(t *testing.T) {
	mem := healthsource.NewMemory()
	seedNight(mem)
	mem.AddSamples(StreamHeartRate,
		healthsource.Sample{Start: at(2, 7, 0), End: at(2, 7, 0), Value: 100},   // z1
		healthsource.Sample{Start: at(2, 7, 10), End: at(2, 7, 10), Value: 140}, // z3
		healthsource.Sample{Start: at(2, 7, 15), End: at(2, 7, 15), Value: 140},
	)
	mem.AddSamples(StreamWorkouts,
		healthsource.Sample{Start: at(2, 7, 0), End: at(2, 7, 45), Value: 1},
	)
	c, _ := newTestCoordinator(t, mem)

	rep, err := c.Refresh(context.Background())
	require.NoError(t, err)

	require.NotNil(t, rep.Activity.HRZoneMinutes)
	assert.InDelta(t, 10, rep.Activity.HRZoneMinutes["z1"], 1e-9)
	assert.InDelta(t, 5, rep.Activity.HRZoneMinutes["z3"], 1e-9)

	require.NotNil(t, rep.Activity.WorkoutCount)
	assert.Equal(t, 1, *rep.Activity.WorkoutCount)
	require.NotNil(t, rep.Activity.WorkoutMinutes)
	assert.InDelta(t, 45, *rep.Activity.WorkoutMinutes, 1e-9)
}

func TestRefreshHRZonesInsufficient(t *testing.T) {
	mem := healthsource.NewMemory()
	seedNight(mem)
	mem.AddSamples(StreamHeartRate,
		healthsource.Sample{Start: at(2, 7, 0), End: at(2, 7, 0), Value: 120},
	)
	c, _ := newTestCoordinator(t, mem)

	rep, err := c.Refresh(context.Background())
	require.NoError(t, err)

	// A single reading yields no breakdown, serialized as null.
	assert.Nil(t, rep.Activity.HRZoneMinutes)
}

func TestRefreshBaselineWarmsUp(t *testing.T) {
	mem := healthsource.NewMemory()
	seedNight(mem)
	c, st := newTestCoordinator(t, mem)

	// Pre-seed 29 prior days so today's observation is the 30th.
	var ups []store.ObservationUpsert
	for i := 1; i <= 29; i++ {
		ups = append(ups, store.ObservationUpsert{
			MetricID: report.SignalHRV,
			Day:      testNow.AddDate(0, 0, -i).Format("2006-01-02"),
			Value:    50,
		})
	}
	require.NoError(t, st.CommitRun(store.RunCommit{Observations: ups}))

	rep, err := c.Refresh(context.Background())
	require.NoError(t, err)

	hrv := rep.ReadinessSignals[report.SignalHRV]
	assert.Equal(t, "stable", hrv.BaselineStatus)
	require.NotNil(t, hrv.Baseline30dMean)
	require.NotNil(t, hrv.DeltaVs30d)
	require.NotNil(t, hrv.Value)

	// 29 days at 50 plus today's value.
	todays := *hrv.Value
	wantMean := (29*50 + todays) / 30
	assert.InDelta(t, wantMean, *hrv.Baseline30dMean, 1e-9)
	assert.InDelta(t, todays-wantMean, *hrv.DeltaVs30d, 1e-9)
	// Today's value differs from the seeded history, so the rolling
	// deviation is positive and a z-score exists.
	require.NotNil(t, hrv.ZScore30d)
}
