package service

import (
	"fmt"
	"time"

	"pulse/internal/aggregate"
	"pulse/internal/baseline"
	"pulse/internal/healthsource"
	"pulse/internal/report"
)

// assemble builds the report for the current day from the computed metric
// values, the resolved night window and the fetched raw data. Baseline
// figures are recomputed from the (already updated) observation series, so
// the report always reflects today's contribution.
func (c *Coordinator) assemble(now time.Time, runID string, values map[string]metricValue, night *aggregate.NightWindow, data fetchData, series map[string][]baseline.Observation) (*report.Report, error) {
	dayStart := startOfDay(now)
	dayEnd := dayStart.Add(24 * time.Hour)
	ref := dayEnd
	if ref.After(now) {
		ref = now
	}
	_, offsetSec := now.Zone()

	rep := &report.Report{
		Meta: report.Meta{
			GeneratedAt:           now.UTC(),
			TimezoneOffsetMinutes: offsetSec / 60,
			AppVersion:            c.version,
			RunID:                 runID,
		},
		Windows: report.Windows{
			DayStart: dayStart,
			DayEnd:   dayEnd,
		},
		ReadinessSignals: make(map[string]report.Signal),
	}

	if night != nil {
		ns, ne := night.Window.Start, night.Window.End
		rep.Windows.NightStart = &ns
		rep.Windows.NightEnd = &ne
		rep.Windows.NightSampleCount = night.RawSampleCount
	}

	for name := range signalStream {
		sig, err := c.buildSignal(name, values[name], series)
		if err != nil {
			return nil, err
		}
		rep.ReadinessSignals[name] = sig
	}

	dayKey := baseline.DayKey(dayStart)
	rep.Activity = report.Activity{
		Steps:            data.reduced[StreamSteps][dayKey],
		ActiveEnergyKcal: data.reduced[StreamActiveEnergy][dayKey],
		ExerciseMinutes:  data.reduced[StreamExercise][dayKey],
		HRZoneMinutes:    dayHRZones(data.samples[StreamHeartRate], dayStart, ref),
	}
	rep.Activity.WorkoutMinutes, rep.Activity.WorkoutCount = dayWorkouts(data.samples[StreamWorkouts], dayStart, ref)

	rep.Health.BodyMassKg = aggregate.MostRecent(data.samples[StreamBodyMass])

	rep.Flags = report.Flags{
		MissingHRV:             values[report.SignalHRV].value == nil,
		MissingRestingHR:       values[report.SignalRestingHR].value == nil,
		MissingRespiratoryRate: values[report.SignalRespiratoryRate].value == nil,
		MissingWristTemp:       values[report.SignalWristTemp].value == nil,
		LowSleepConfidence:     night == nil,
		PermissionsPartial:     len(data.failed) > 0,
	}

	return rep, nil
}

// buildSignal attaches baseline context to one computed metric. Series not
// touched by this run (today's value was null) are loaded from the store so
// the report still carries their historical figures.
func (c *Coordinator) buildSignal(name string, mv metricValue, series map[string][]baseline.Observation) (report.Signal, error) {
	obs, ok := series[name]
	if !ok {
		loaded, err := c.store.GetObservations(name, 0)
		if err != nil {
			return report.Signal{}, fmt.Errorf("loading %s observations: %w", name, err)
		}
		obs = loaded
		series[name] = obs
	}
	figures := baseline.Compute(obs)

	sig := report.Signal{
		Value:           mv.value,
		Unit:            signalUnits[name],
		SampleCount:     mv.count,
		Quality:         sortedTags(mv.tags),
		Baseline7dEMA:   figures.EMA7,
		Baseline30dMean: figures.Mean30,
		Baseline30dStd:  figures.Std30,
		BaselineStatus:  string(figures.Status),
	}
	if mv.value != nil {
		sig.DeltaVs30d, sig.ZScore30d = baseline.Deviation(*mv.value, figures)
	}
	return sig, nil
}

// dayHRZones attributes heart rate time-in-zone for the day. Zone keys are
// "z1" through "z5"; a nil map (under two samples in the day) serializes as
// JSON null rather than an empty object.
func dayHRZones(samples []healthsource.Sample, dayStart, ref time.Time) map[string]float64 {
	var day []healthsource.Sample
	for _, s := range samples {
		if !s.Start.Before(dayStart) && s.Start.Before(ref) {
			day = append(day, s)
		}
	}
	zones := aggregate.HeartRateZones(day)
	if zones == nil {
		return nil
	}
	out := make(map[string]float64, len(zones))
	for z, mins := range zones {
		out[fmt.Sprintf("z%d", z)] = mins
	}
	return out
}

// dayWorkouts sums workout durations started during the day. Both fields are
// null when no workout was recorded.
func dayWorkouts(samples []healthsource.Sample, dayStart, ref time.Time) (*float64, *int) {
	var minutes float64
	count := 0
	for _, s := range samples {
		if s.Start.Before(dayStart) || !s.Start.Before(ref) {
			continue
		}
		minutes += s.End.Sub(s.Start).Minutes()
		count++
	}
	if count == 0 {
		return nil, nil
	}
	return &minutes, &count
}
