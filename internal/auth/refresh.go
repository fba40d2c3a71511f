package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// expiryBuffer is how close to expiry a bridge token may get before it is
// refreshed. Refreshing slightly early keeps a long aggregation run from
// racing the bridge's clock mid-request.
const expiryBuffer = 60 * time.Second

// TokenSource hands out valid bridge access tokens, exchanging the refresh
// token when the stored one is about to lapse. Every newly minted token is
// passed to onRefresh before use, so the local store never lags behind what
// the bridge considers current.
type TokenSource struct {
	mu        sync.Mutex
	config    *oauth2.Config
	current   *oauth2.Token
	onRefresh func(*oauth2.Token) error
}

// NewTokenSource wraps a stored token. onRefresh may be nil when persistence
// is not wanted.
func NewTokenSource(cfg *oauth2.Config, token *oauth2.Token, onRefresh func(*oauth2.Token) error) *TokenSource {
	return &TokenSource{config: cfg, current: token, onRefresh: onRefresh}
}

// Token implements oauth2.TokenSource. The stored token is returned as long
// as it has more than expiryBuffer of life left; otherwise the refresh grant
// runs, the result is persisted and becomes the new current token.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !expiringSoon(ts.current) {
		return ts.current, nil
	}

	refreshed, err := ts.config.TokenSource(context.Background(), ts.current).Token()
	if err != nil {
		return nil, err
	}
	if ts.onRefresh != nil {
		if err := ts.onRefresh(refreshed); err != nil {
			return nil, err
		}
	}
	ts.current = refreshed
	return refreshed, nil
}

// IsExpired reports whether the stored token is already inside the refresh
// buffer.
func (ts *TokenSource) IsExpired() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return expiringSoon(ts.current)
}

// CurrentToken returns the stored token without triggering a refresh.
func (ts *TokenSource) CurrentToken() *oauth2.Token {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.current
}

func expiringSoon(t *oauth2.Token) bool {
	return time.Until(t.Expiry) <= expiryBuffer
}
