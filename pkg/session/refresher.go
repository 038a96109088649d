package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/citizone/authserver/types"
)

// HTTPRefresher calls the server's refresh endpoint with the current token.
// Its client must not be the session-wrapped one, or a rejected refresh
// would recurse into another refresh.
type HTTPRefresher struct {
	Endpoint string
	Client   *http.Client
}

func (r *HTTPRefresher) Refresh(ctx context.Context, current string) (types.Grant, error) {
	if current == "" {
		return types.Grant{}, errors.New("no token to refresh")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, nil)
	if err != nil {
		return types.Grant{}, err
	}
	req.Header.Set("Authorization", "Bearer "+current)

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return types.Grant{}, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return types.Grant{}, fmt.Errorf("refresh rejected: %s", resp.Status)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Token     string    `json:"token"`
			ExpiresAt time.Time `json:"expiresAt"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return types.Grant{}, err
	}
	if !envelope.Success || envelope.Data.Token == "" {
		return types.Grant{}, errors.New("refresh response missing token")
	}

	return types.Grant{Token: envelope.Data.Token, ExpiresAt: envelope.Data.ExpiresAt}, nil
}
