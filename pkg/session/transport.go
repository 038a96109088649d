package session

import (
	"context"
	"net/http"
	"time"

	"github.com/citizone/authserver/types"
	"golang.org/x/sync/singleflight"
)

// Refresher exchanges the current token for a fresh grant.
type Refresher interface {
	Refresh(ctx context.Context, current string) (types.Grant, error)
}

// Transport wraps every outbound call with session handling: it attaches
// the cached bearer token before sending and performs at most one refresh
// and one replay after an authentication-rejected response.
//
// Concurrent failing calls share a single in-flight refresh; none issues
// its own. On refresh failure the cache is cleared and each caller gets its
// original 401 back.
type Transport struct {
	base      http.RoundTripper
	cache     *Cache
	refresher Refresher
	now       func() time.Time
	group     singleflight.Group
}

func NewTransport(base http.RoundTripper, cache *Cache, refresher Refresher) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, cache: cache, refresher: refresher, now: time.Now}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.attempt(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// Authentication failure. One refresh attempt for this call, then one
	// replay; the replayed response is returned as-is, so the sequence can
	// never loop.
	retry, ok := cloneForRetry(req)
	if !ok {
		return resp, nil
	}
	if err := t.refreshOnce(req.Context()); err != nil {
		// Surface the original failure.
		return resp, nil
	}

	resp.Body.Close()
	return t.attempt(retry)
}

// attempt sends the request with the cached token attached, or without any
// token when the cache is empty or already expired. An expired cache never
// triggers a preemptive refresh.
func (t *Transport) attempt(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	snap := t.cache.Snapshot()
	if snap.Authenticated && !t.now().After(snap.ExpiresAt) {
		out.Header.Set("Authorization", "Bearer "+snap.Token)
	} else {
		out.Header.Del("Authorization")
	}
	return t.base.RoundTrip(out)
}

// refreshOnce funnels all callers through a single in-flight refresh. The
// refresh itself runs on a detached context: a caller abandoning its
// request must not cancel the refresh other callers are waiting on, and the
// cache transition stays a single atomic replacement either way.
func (t *Transport) refreshOnce(ctx context.Context) error {
	ch := t.group.DoChan("refresh", func() (any, error) {
		snap := t.cache.Snapshot()
		grant, err := t.refresher.Refresh(context.WithoutCancel(ctx), snap.Token)
		if err != nil {
			t.cache.Clear()
			return nil, err
		}
		if grant.User == (types.UserSnapshot{}) {
			// Refresh responses carry only the token; keep the user we had.
			grant.User = snap.User
		}
		t.cache.Set(grant)
		return nil, nil
	})

	select {
	case result := <-ch:
		return result.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cloneForRetry produces a replayable copy of the request. Requests with a
// one-shot body that cannot be reproduced are not replayed.
func cloneForRetry(req *http.Request) (*http.Request, bool) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	clone.Body = body
	return clone, true
}
