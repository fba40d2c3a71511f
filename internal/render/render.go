// Package render formats a report for the terminal. Output is one-shot, not
// interactive: the program prints the summary and exits.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"pulse/internal/report"
)

// signalOrder fixes the display order of readiness signals.
var signalOrder = []struct {
	Key   string
	Label string
}{
	{report.SignalHRV, "HRV"},
	{report.SignalRestingHR, "Resting HR"},
	{report.SignalRespiratoryRate, "Respiratory Rate"},
	{report.SignalWristTemp, "Wrist Temp"},
	{report.SignalSleepTotal, "Sleep"},
	{report.SignalSleepDeep, "  Deep"},
	{report.SignalSleepREM, "  REM"},
	{report.SignalSleepCore, "  Core"},
	{report.SignalSleepAwake, "  Awake"},
}

// Summary renders the full daily summary. trendHistory is an optional series
// of recent daily HRV observations, oldest first, for the trend chart.
func Summary(rep *report.Report, trendHistory []float64) string {
	var sections []string

	title := titleStyle.Render("Daily Readiness")
	generated := mutedStyle.Render(fmt.Sprintf("generated %s", humanize.Time(rep.Meta.GeneratedAt)))
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", generated))

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, nightCard(rep), "  ", activityCard(rep))
	sections = append(sections, topRow)

	sections = append(sections, readinessCard(rep))

	if len(trendHistory) > 2 {
		sections = append(sections, trendCard(trendHistory))
	}

	if flags := raisedFlags(rep); len(flags) > 0 {
		sections = append(sections, warningStyle.Render("⚠ "+strings.Join(flags, ", ")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func nightCard(rep *report.Report) string {
	title := cardTitleStyle.Render("Last Night")

	var lines []string
	if rep.Windows.NightStart == nil {
		lines = append(lines, mutedStyle.Render("No sleep data found"))
	} else {
		start := rep.Windows.NightStart.Local()
		end := rep.Windows.NightEnd.Local()
		lines = append(lines,
			renderMetric("In bed", fmt.Sprintf("%s – %s", start.Format("15:04"), end.Format("15:04")), ""),
			renderMetric("Duration", formatMinutes(end.Sub(start).Minutes()), ""),
			renderMetric("Sleep samples", humanize.Comma(int64(rep.Windows.NightSampleCount)), ""),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(40).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func activityCard(rep *report.Report) string {
	title := cardTitleStyle.Render("Today")

	lines := []string{
		renderMetric("Steps", formatCount(rep.Activity.Steps), ""),
		renderMetric("Active energy", formatValue(rep.Activity.ActiveEnergyKcal, "kcal"), ""),
		renderMetric("Exercise", formatValue(rep.Activity.ExerciseMinutes, "min"), ""),
		renderMetric("Workouts", formatWorkouts(rep.Activity.WorkoutCount, rep.Activity.WorkoutMinutes), ""),
	}
	if zones := formatZones(rep.Activity.HRZoneMinutes); zones != "" {
		lines = append(lines, "", mutedStyle.Render(zones))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(40).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func readinessCard(rep *report.Report) string {
	title := cardTitleStyle.Render("Readiness Signals")

	var lines []string
	for _, entry := range signalOrder {
		sig, ok := rep.ReadinessSignals[entry.Key]
		if !ok {
			continue
		}
		lines = append(lines, renderMetric(entry.Label, signalValue(sig), signalTrend(sig)))
	}
	if mass := rep.Health.BodyMassKg; mass != nil {
		lines = append(lines, "", renderMetric("Body mass", fmt.Sprintf("%.1f kg", *mass), ""))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(60).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func trendCard(history []float64) string {
	title := cardTitleStyle.Render(fmt.Sprintf("HRV - Last %d Days", len(history)))

	graph := asciigraph.Plot(history,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Precision(0),
	)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}

// signalValue formats a signal's value with unit, marking capped values.
func signalValue(sig report.Signal) string {
	if sig.Value == nil {
		return "—"
	}
	s := fmt.Sprintf("%.1f %s", *sig.Value, sig.Unit)
	if sig.Unit == "min" {
		s = formatMinutes(*sig.Value)
	}
	for _, q := range sig.Quality {
		if q == "outlier_capped" {
			s += " (capped)"
		}
	}
	return s
}

// signalTrend formats the deviation against the 30-day baseline. Warming
// baselines show their status instead of a delta.
func signalTrend(sig report.Signal) string {
	if sig.BaselineStatus != "stable" {
		if sig.BaselineStatus == "cold" {
			return ""
		}
		return sig.BaselineStatus
	}
	if sig.DeltaVs30d == nil {
		return ""
	}
	trend := fmt.Sprintf("%+.1f vs 30d", *sig.DeltaVs30d)
	if sig.ZScore30d != nil {
		trend += fmt.Sprintf(" (z %+.1f)", *sig.ZScore30d)
	}
	return trend
}

func formatValue(v *float64, unit string) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.0f %s", *v, unit)
}

func formatCount(v *float64) string {
	if v == nil {
		return "—"
	}
	return humanize.Comma(int64(*v))
}

func formatWorkouts(count *int, minutes *float64) string {
	if count == nil {
		return "—"
	}
	return fmt.Sprintf("%d (%s)", *count, formatMinutes(*minutes))
}

// formatMinutes renders a duration in minutes as "7h 23m".
func formatMinutes(mins float64) string {
	d := time.Duration(mins * float64(time.Minute)).Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// formatZones renders time-in-zone as a single compact line.
func formatZones(zones map[string]float64) string {
	if len(zones) == 0 {
		return ""
	}
	keys := make([]string, 0, len(zones))
	for k := range zones {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %.0fm", k, zones[k]))
	}
	return "HR zones: " + strings.Join(parts, "  ")
}

// raisedFlags lists the report flags currently set, in a fixed order.
func raisedFlags(rep *report.Report) []string {
	var out []string
	f := rep.Flags
	for _, entry := range []struct {
		set  bool
		name string
	}{
		{f.MissingHRV, "missing HRV"},
		{f.MissingRestingHR, "missing resting HR"},
		{f.MissingRespiratoryRate, "missing respiratory rate"},
		{f.MissingWristTemp, "missing wrist temp"},
		{f.LowSleepConfidence, "low sleep confidence"},
		{f.PermissionsPartial, "some streams unavailable"},
		{f.NotCommitted, "results not persisted"},
		{f.AggregationError, "showing last stored report"},
	} {
		if entry.set {
			out = append(out, entry.name)
		}
	}
	return out
}
