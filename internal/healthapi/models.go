package healthapi

import "time"

// Wire types for the health bridge REST API.

// sampleJSON is one quantity sample as returned by /v1/samples
type sampleJSON struct {
	Metric       string    `json:"metric"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Value        float64   `json:"value"`
	SourceDevice string    `json:"source_device,omitempty"`
}

// intervalJSON is one categorical interval as returned by /v1/intervals
type intervalJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Stage string    `json:"stage"`
}

// reduceJSON is the result envelope of /v1/reduce. Value is null when the
// range holds no samples.
type reduceJSON struct {
	Value *float64 `json:"value"`
}
