package aggregate

// QualityTag annotates a computed value with a caveat without discarding it.
type QualityTag string

const (
	// TagOutlierCapped marks a value that fell outside its metric's valid
	// range and was clamped to the nearest bound.
	TagOutlierCapped QualityTag = "outlier_capped"
	// TagMissingData marks a metric that produced no value this run.
	TagMissingData QualityTag = "missing_data"
)

// ValidRange is a per-metric physiological validity range, inclusive at both
// bounds.
type ValidRange struct {
	Min float64
	Max float64
}

// ApplyOutlierPolicy classifies a computed value against an optional valid
// range. It runs after aggregation and before the baseline update:
//
//   - sample count zero -> value stays nil, tagged missing_data, and the
//     caller must skip the baseline update for this metric;
//   - value outside the range -> clamped to the nearest bound and tagged
//     outlier_capped; clamping is non-fatal and the clamped value still
//     feeds the baseline;
//   - otherwise the value passes through untouched with no tags.
//
// Metrics without a documented range (r == nil) are never capped.
func ApplyOutlierPolicy(value *float64, sampleCount int, r *ValidRange) (*float64, []QualityTag) {
	if sampleCount == 0 || value == nil {
		return nil, []QualityTag{TagMissingData}
	}
	if r == nil {
		return value, nil
	}
	v := *value
	switch {
	case v < r.Min:
		capped := r.Min
		return &capped, []QualityTag{TagOutlierCapped}
	case v > r.Max:
		capped := r.Max
		return &capped, []QualityTag{TagOutlierCapped}
	}
	return value, nil
}
