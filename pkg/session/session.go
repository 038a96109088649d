package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/citizone/authserver/types"
)

// Options configures a Session. The zero value is usable with a BaseURL.
type Options struct {
	// BaseURL of the auth server, e.g. "https://api.example.com".
	BaseURL string
	// Store persists the token across restarts. Nil keeps it in memory only.
	Store TokenStore
	// MonitorInterval overrides DefaultMonitorInterval when positive.
	MonitorInterval time.Duration
	// Base is the underlying transport for wrapped calls. Nil uses
	// http.DefaultTransport.
	Base http.RoundTripper
}

// Session bundles the cache, expiry monitor and refreshing transport into a
// single client-side unit.
type Session struct {
	cache     *Cache
	monitor   *Monitor
	transport *Transport
}

func New(opts Options) *Session {
	cache := NewCache(opts.Store)
	refresher := &HTTPRefresher{
		Endpoint: strings.TrimRight(opts.BaseURL, "/") + "/auth/refresh-token",
		Client:   &http.Client{Transport: opts.Base},
	}
	return &Session{
		cache:     cache,
		monitor:   NewMonitor(cache, opts.MonitorInterval),
		transport: NewTransport(opts.Base, cache, refresher),
	}
}

// Client returns an http.Client whose calls carry the session token and
// refresh it transparently.
func (s *Session) Client() *http.Client {
	return &http.Client{Transport: s.transport}
}

// SetGrant installs the grant returned by a login or OTP verification.
func (s *Session) SetGrant(grant types.Grant) {
	s.cache.Set(grant)
}

// Logout drops the session locally.
func (s *Session) Logout() {
	s.cache.Clear()
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	return s.cache.Snapshot()
}

// Resume loads a previously persisted token from the store, if the store
// supports it and holds one that has not expired yet.
func (s *Session) Resume() bool {
	loader, ok := s.cache.store.(interface {
		Load() (string, time.Time, error)
	})
	if !ok {
		return false
	}
	token, expiresAt, err := loader.Load()
	if err != nil || token == "" || time.Now().After(expiresAt) {
		return false
	}
	s.cache.Set(types.Grant{Token: token, ExpiresAt: expiresAt})
	return true
}

// Start runs the expiry monitor until ctx is done.
func (s *Session) Start(ctx context.Context) {
	go s.monitor.Run(ctx)
}
