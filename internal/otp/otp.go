// Package otp generates, hashes, and time-bounds one-time codes for the
// phone authentication flow.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"
)

const (
	codeBase   = 100000
	codeSpan   = 900000
	DefaultTTL = 5 * time.Minute
)

// Generate returns a uniformly random 6-digit code in [100000, 999999].
// The fixed base offset makes a leading zero impossible by construction.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(codeBase+n.Int64(), 10), nil
}

// Hash returns the hex sha256 digest of code. The digest is deterministic
// and unsalted, matching what verification compares against.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Issued is the stored half of an outstanding code: its digest and the
// absolute time past which it no longer verifies.
type Issued struct {
	Digest    string
	ExpiresAt time.Time
}

// Manager issues codes with a fixed time-to-live.
type Manager struct {
	TTL time.Duration
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{TTL: ttl}
}

// Issue generates a fresh code and returns it alongside the digest/expiry
// pair to persist. The plaintext code goes to the delivery channel only.
func (m *Manager) Issue(now time.Time) (string, Issued, error) {
	code, err := Generate()
	if err != nil {
		return "", Issued{}, err
	}
	return code, Issued{Digest: Hash(code), ExpiresAt: now.Add(m.TTL)}, nil
}

// Verify reports whether code matches digest and now is not past expiresAt.
func Verify(code, digest string, expiresAt, now time.Time) bool {
	return Hash(code) == digest && !now.After(expiresAt)
}
