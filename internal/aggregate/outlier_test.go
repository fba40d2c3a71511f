package aggregate

import "testing"

func TestApplyOutlierPolicy(t *testing.T) {
	hrvRange := &ValidRange{Min: 5, Max: 250}
	tempRange := &ValidRange{Min: -2, Max: 2}

	tests := []struct {
		name        string
		value       *float64
		sampleCount int
		r           *ValidRange
		wantValue   *float64
		wantTags    []QualityTag
	}{
		{
			name:        "zero samples stays nil with missing_data",
			value:       nil,
			sampleCount: 0,
			r:           hrvRange,
			wantValue:   nil,
			wantTags:    []QualityTag{TagMissingData},
		},
		{
			name:        "below minimum capped to bound",
			value:       floatPtr(4.9),
			sampleCount: 3,
			r:           hrvRange,
			wantValue:   floatPtr(5),
			wantTags:    []QualityTag{TagOutlierCapped},
		},
		{
			name:        "above maximum capped to bound",
			value:       floatPtr(400),
			sampleCount: 3,
			r:           hrvRange,
			wantValue:   floatPtr(250),
			wantTags:    []QualityTag{TagOutlierCapped},
		},
		{
			name:        "in-range value untouched",
			value:       floatPtr(120),
			sampleCount: 10,
			r:           hrvRange,
			wantValue:   floatPtr(120),
			wantTags:    nil,
		},
		{
			name:        "boundary value is valid, not capped",
			value:       floatPtr(5),
			sampleCount: 1,
			r:           hrvRange,
			wantValue:   floatPtr(5),
			wantTags:    nil,
		},
		{
			name:        "negative range caps on the low side",
			value:       floatPtr(-3.1),
			sampleCount: 2,
			r:           tempRange,
			wantValue:   floatPtr(-2),
			wantTags:    []QualityTag{TagOutlierCapped},
		},
		{
			name:        "no documented range passes anything through",
			value:       floatPtr(1e6),
			sampleCount: 1,
			r:           nil,
			wantValue:   floatPtr(1e6),
			wantTags:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tags := ApplyOutlierPolicy(tt.value, tt.sampleCount, tt.r)

			if (got == nil) != (tt.wantValue == nil) {
				t.Fatalf("value = %v, want %v", got, tt.wantValue)
			}
			if got != nil && *got != *tt.wantValue {
				t.Errorf("value = %v, want %v", *got, *tt.wantValue)
			}

			if len(tags) != len(tt.wantTags) {
				t.Fatalf("tags = %v, want %v", tags, tt.wantTags)
			}
			for i := range tags {
				if tags[i] != tt.wantTags[i] {
					t.Errorf("tag %d = %q, want %q", i, tags[i], tt.wantTags[i])
				}
			}
		})
	}
}
