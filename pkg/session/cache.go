// Package session is the consumer-side session layer: it caches the bearer
// token with its absolute expiry, proactively clears it on a timer, and
// transparently refreshes it once when a call is rejected.
package session

import (
	"log"
	"sync"
	"time"

	"github.com/citizone/authserver/types"
)

// Snapshot is the client-held session state. Readers always receive a copy;
// the cache replaces the whole value on every transition, so a concurrent
// reader never observes a torn state.
type Snapshot struct {
	Token         string
	ExpiresAt     time.Time
	User          types.UserSnapshot
	Authenticated bool
}

// TokenStore persists the token across restarts (the cookie analog). The
// cache writes on Set and deletes on Clear; state transitions themselves
// are pure and do no I/O beyond this port.
type TokenStore interface {
	Write(token string, expiresAt time.Time) error
	Delete() error
}

type nopStore struct{}

func (nopStore) Write(string, time.Time) error { return nil }
func (nopStore) Delete() error                 { return nil }

// Cache holds the session snapshot. It is the single writer of session
// state; the monitor and transport only call into it.
type Cache struct {
	mu    sync.RWMutex
	cur   Snapshot
	store TokenStore
}

func NewCache(store TokenStore) *Cache {
	if store == nil {
		store = nopStore{}
	}
	return &Cache{store: store}
}

// Set replaces the session wholesale with a fresh grant.
func (c *Cache) Set(grant types.Grant) {
	c.mu.Lock()
	c.cur = Snapshot{
		Token:         grant.Token,
		ExpiresAt:     grant.ExpiresAt,
		User:          grant.User,
		Authenticated: true,
	}
	c.mu.Unlock()

	if err := c.store.Write(grant.Token, grant.ExpiresAt); err != nil {
		log.Printf("WARN: session store write failed: %v", err)
	}
}

// Clear drops the session and removes the persisted token.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.cur = Snapshot{}
	c.mu.Unlock()

	if err := c.store.Delete(); err != nil {
		log.Printf("WARN: session store delete failed: %v", err)
	}
}

// Snapshot returns a copy of the current session state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// IsExpired reports whether an authenticated session has passed its expiry.
// An empty cache is not "expired"; there is nothing to clear.
func (c *Cache) IsExpired(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Authenticated && now.After(c.cur.ExpiresAt)
}
