package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate the email or phone
// uniqueness invariant.
var ErrConflict = errors.New("duplicate identity")
