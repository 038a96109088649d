// Package password hashes and verifies user passwords with bcrypt.
//
// Hashing is performed by the auth service exactly once per password value,
// before the record reaches the store; the store itself is policy-free.
package password

import "golang.org/x/crypto/bcrypt"

// Hash returns the bcrypt digest of plaintext. bcrypt embeds a per-record
// random salt and is deliberately slow.
func Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Compare reports whether plaintext matches digest. bcrypt's comparison does
// not short-circuit on the first mismatching byte.
func Compare(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
