package otp

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_RangeAndShape(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := Generate()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}

func TestHash_Deterministic(t *testing.T) {
	assert.Equal(t, Hash("123456"), Hash("123456"))
	assert.NotEqual(t, Hash("123456"), Hash("123457"))
	assert.Len(t, Hash("123456"), 64)
}

func TestIssue(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	manager := NewManager(5 * time.Minute)

	code, issued, err := manager.Issue(now)
	require.NoError(t, err)
	assert.Equal(t, Hash(code), issued.Digest)
	assert.Equal(t, now.Add(5*time.Minute), issued.ExpiresAt)
}

func TestNewManager_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewManager(0).TTL)
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(5 * time.Minute)
	digest := Hash("654321")

	assert.True(t, Verify("654321", digest, expiry, now))
	assert.False(t, Verify("123456", digest, expiry, now))

	// The expiry instant itself still verifies; one nanosecond past does not.
	assert.True(t, Verify("654321", digest, expiry, expiry))
	assert.False(t, Verify("654321", digest, expiry, expiry.Add(time.Nanosecond)))

	// Both conditions must hold.
	assert.False(t, Verify("123456", digest, expiry, expiry.Add(time.Hour)))
}
