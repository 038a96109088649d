package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

// FileStore persists the token and expiry as a small JSON file, the way a
// browser client would keep them in a cookie.
type FileStore struct {
	Path string
}

type storedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (f *FileStore) Write(token string, expiresAt time.Time) error {
	data, err := json.Marshal(storedToken{Token: token, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0o600)
}

func (f *FileStore) Delete() error {
	err := os.Remove(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads a previously persisted token so a restarted client can resume
// its session. A missing file is not an error; it returns an empty token.
func (f *FileStore) Load() (string, time.Time, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}

	var stored storedToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", time.Time{}, err
	}
	return stored.Token, stored.ExpiresAt, nil
}
