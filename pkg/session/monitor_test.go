package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitorClearsExpiredSessionWithoutTraffic(t *testing.T) {
	cache := NewCache(nil)
	cache.Set(grantExpiring(10 * time.Millisecond))

	monitor := NewMonitor(cache, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	assert.Eventually(t, func() bool {
		return !cache.Snapshot().Authenticated
	}, time.Second, 5*time.Millisecond, "expired session should be cleared with no requests made")
}

func TestMonitorLeavesLiveSessionAlone(t *testing.T) {
	cache := NewCache(nil)
	cache.Set(grantExpiring(time.Hour))

	monitor := NewMonitor(cache, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.True(t, cache.Snapshot().Authenticated)
}

func TestMonitorDefaultInterval(t *testing.T) {
	monitor := NewMonitor(NewCache(nil), 0)
	assert.Equal(t, DefaultMonitorInterval, monitor.interval)
}
