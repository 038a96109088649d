package types

import "time"

// Grant is the session bundle returned to a caller on successful
// authentication: a bearer token, its absolute expiry, and a minimal
// snapshot of the authenticated user.
type Grant struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserSnapshot `json:"user"`
}

// UserSnapshot is the subset of user fields a client keeps alongside its
// session token.
type UserSnapshot struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Snapshot reduces a user to the fields a session client holds.
func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{ID: u.ID, Name: u.Name(), Email: u.Email}
}
