package session

import (
	"context"
	"time"
)

// DefaultMonitorInterval is how often the monitor checks for expiry.
const DefaultMonitorInterval = time.Minute

// Monitor clears an expired session on a fixed wall-clock interval,
// independent of request traffic. This is the proactive half of expiry
// handling; the transport's 401 path is the reactive half.
type Monitor struct {
	cache    *Cache
	interval time.Duration
	now      func() time.Time
}

func NewMonitor(cache *Cache, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{cache: cache, interval: interval, now: time.Now}
}

// Run ticks until ctx is done, clearing the cache whenever the stored
// expiry has passed.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.cache.IsExpired(m.now()) {
				m.cache.Clear()
			}
		}
	}
}
