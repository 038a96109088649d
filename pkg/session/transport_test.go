package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/citizone/authserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRefresher struct {
	mu    sync.Mutex
	calls int
	grant types.Grant
	err   error
	delay time.Duration
}

func (s *stubRefresher) Refresh(_ context.Context, _ string) (types.Grant, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.grant, s.err
}

func (s *stubRefresher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newSessionClient(cache *Cache, refresher Refresher) *http.Client {
	return &http.Client{Transport: NewTransport(nil, cache, refresher)}
}

func TestTransportAttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	cache := NewCache(nil)
	cache.Set(grantExpiring(time.Hour))
	client := newSessionClient(cache, &stubRefresher{})

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-abc", gotAuth)
}

func TestTransportSendsNoTokenWhenCacheExpired(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	cache := NewCache(nil)
	cache.Set(grantExpiring(-time.Minute))
	refresher := &stubRefresher{}
	client := newSessionClient(cache, refresher)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotAuth, "expired token must not be sent")
	assert.Zero(t, refresher.callCount(), "expiry alone must not trigger a refresh")
}

func TestTransportRefreshesOnceAndReplays(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-fresh", r.Header.Get("Authorization"))
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	cache := NewCache(nil)
	cache.Set(grantExpiring(time.Hour))
	refresher := &stubRefresher{grant: types.Grant{Token: "tok-fresh", ExpiresAt: time.Now().Add(time.Hour)}}
	client := newSessionClient(cache, refresher)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 1, refresher.callCount())

	snap := cache.Snapshot()
	assert.Equal(t, "tok-fresh", snap.Token)
	assert.Equal(t, "Ada Lovelace", snap.User.Name, "user snapshot survives a token-only refresh")
}

func TestTransportRetriesAtMostOnce(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cache := NewCache(nil)
	cache.Set(grantExpiring(time.Hour))
	refresher := &stubRefresher{grant: types.Grant{Token: "tok-fresh", ExpiresAt: time.Now().Add(time.Hour)}}
	client := newSessionClient(cache, refresher)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests), "original plus exactly one replay")
	assert.Equal(t, 1, refresher.callCount())
}

func TestTransportRefreshFailureClearsCacheAndSurfacesOriginal(t *testing.T) {
	var auths []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	cache := NewCache(nil)
	cache.Set(grantExpiring(time.Hour))
	refresher := &stubRefresher{err: errors.New("refresh rejected")}
	client := newSessionClient(cache, refresher)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "the original failure is surfaced")
	assert.False(t, cache.Snapshot().Authenticated, "failed refresh empties the cache")

	resp, err = client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, auths, 2)
	assert.Empty(t, auths[1], "subsequent calls carry no stale token")
}

func TestTransportConcurrent401sShareOneRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-stale" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	cache := NewCache(nil)
	cache.Set(types.Grant{Token: "tok-stale", ExpiresAt: time.Now().Add(time.Hour)})
	refresher := &stubRefresher{
		grant: types.Grant{Token: "tok-fresh", ExpiresAt: time.Now().Add(time.Hour)},
		delay: 20 * time.Millisecond,
	}
	client := newSessionClient(cache, refresher)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(server.URL)
			if assert.NoError(t, err) {
				resp.Body.Close()
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, refresher.callCount(), "concurrent failures share a single refresh")
	assert.Equal(t, "tok-fresh", cache.Snapshot().Token)
}

func TestTransportReplaysRequestBody(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		first := len(bodies) == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	cache := NewCache(nil)
	cache.Set(grantExpiring(time.Hour))
	refresher := &stubRefresher{grant: types.Grant{Token: "tok-fresh", ExpiresAt: time.Now().Add(time.Hour)}}
	client := newSessionClient(cache, refresher)

	resp, err := client.Post(server.URL, "application/json", strings.NewReader(`{"n":1}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1], "the replay carries the same body")
}
