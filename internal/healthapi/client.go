// Package healthapi implements healthsource.Source against the health bridge,
// a small local REST service that fronts the platform health store. The
// aggregation core never talks to the platform directly; this is the single
// place its query capabilities are implemented for real.
package healthapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"pulse/internal/healthsource"
)

// Client is a health bridge API client
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewClient creates a new bridge client authenticated by the token source
func NewClient(baseURL string, tokenSource oauth2.TokenSource) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  oauth2.NewClient(context.Background(), tokenSource),
		rateLimiter: NewRateLimiter(),
	}
}

// FetchSamples implements healthsource.Source
func (c *Client) FetchSamples(ctx context.Context, metricID string, start, end time.Time) ([]healthsource.Sample, error) {
	params := rangeParams(metricID, start, end)

	resp, err := c.get(ctx, "/v1/samples", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []sampleJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding samples: %w", err)
	}

	samples := make([]healthsource.Sample, 0, len(raw))
	for _, s := range raw {
		samples = append(samples, healthsource.Sample{
			MetricID:     metricID,
			Start:        s.Start,
			End:          s.End,
			Value:        s.Value,
			SourceDevice: s.SourceDevice,
		})
	}
	return samples, nil
}

// FetchIntervals implements healthsource.Source
func (c *Client) FetchIntervals(ctx context.Context, metricID string, start, end time.Time) ([]healthsource.IntervalEvent, error) {
	params := rangeParams(metricID, start, end)

	resp, err := c.get(ctx, "/v1/intervals", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []intervalJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding intervals: %w", err)
	}

	events := make([]healthsource.IntervalEvent, 0, len(raw))
	for _, ev := range raw {
		events = append(events, healthsource.IntervalEvent{
			Start: ev.Start,
			End:   ev.End,
			Stage: healthsource.SleepStage(ev.Stage),
		})
	}
	return events, nil
}

// Reduce implements healthsource.Source. The bridge applies the platform's own
// range semantics, so cumulative statistics are already restricted to the
// exact range.
func (c *Client) Reduce(ctx context.Context, metricID string, start, end time.Time, reducer healthsource.Reducer) (*float64, error) {
	params := rangeParams(metricID, start, end)
	params.Set("reducer", string(reducer))

	resp, err := c.get(ctx, "/v1/reduce", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw reduceJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding reduce result: %w", err)
	}
	return raw.Value, nil
}

// RateLimitStatus returns the remaining request budget
func (c *Client) RateLimitStatus() (remaining int) {
	return c.rateLimiter.Status()
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The bridge being down is a transient condition, not a fault of
		// the requesting run.
		return nil, fmt.Errorf("%w: %v", healthsource.ErrUnavailable, err)
	}

	// Update rate limiter from response headers
	c.rateLimiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", healthsource.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

func rangeParams(metricID string, start, end time.Time) url.Values {
	params := url.Values{}
	params.Set("metric", metricID)
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))
	return params
}
