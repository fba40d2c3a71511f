package healthapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// The bridge enforces 300 requests per 15-minute window. A refresh run issues
// roughly one request per stream, so the limiter mostly just paces bursts.

// RateLimiter manages bridge API rate limits
type RateLimiter struct {
	mu sync.Mutex

	limit    int
	usage    int
	resetsAt time.Time

	// Minimum interval between requests
	minInterval time.Duration
	lastRequest time.Time
}

// NewRateLimiter creates a new rate limiter with the bridge's limits
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limit:       300,
		resetsAt:    time.Now().Add(15 * time.Minute),
		minInterval: 50 * time.Millisecond,
	}
}

// Wait blocks until a request can be made without exceeding rate limits
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	// Reset window if expired
	if now.After(r.resetsAt) {
		r.usage = 0
		r.resetsAt = now.Add(15 * time.Minute)
	}

	if r.usage >= r.limit {
		waitTime := time.Until(r.resetsAt)
		r.mu.Unlock()
		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			r.mu.Lock()
			return ctx.Err()
		}
		r.mu.Lock()
		r.usage = 0
		r.resetsAt = time.Now().Add(15 * time.Minute)
	}

	// Enforce minimum interval between requests
	elapsed := time.Since(r.lastRequest)
	if elapsed < r.minInterval {
		waitTime := r.minInterval - elapsed
		r.mu.Unlock()
		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			r.mu.Lock()
			return ctx.Err()
		}
		r.mu.Lock()
	}

	r.usage++
	r.lastRequest = time.Now()

	return nil
}

// UpdateFromHeaders updates rate limit state from bridge response headers
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if usage := h.Get("X-RateLimit-Usage"); usage != "" {
		if n, err := strconv.Atoi(usage); err == nil {
			r.usage = n
		}
	}
	if limit := h.Get("X-RateLimit-Limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			r.limit = n
		}
	}
}

// Status returns the remaining request budget in the current window
func (r *RateLimiter) Status() (remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit - r.usage
}
