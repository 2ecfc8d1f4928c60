package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"gochat/internal/chat/models"
	"gochat/internal/common"
)

// PlatformVerifier asks the identity platform who owns a token. Concurrent
// checks of the same token share one upstream request.
type PlatformVerifier struct {
	baseURL string
	anonKey string
	timeout time.Duration
	client  *http.Client
	group   singleflight.Group
	log     zerolog.Logger
}

func NewPlatformVerifier(baseURL, anonKey string, timeout time.Duration, log zerolog.Logger) *PlatformVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PlatformVerifier{
		baseURL: baseURL,
		anonKey: anonKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "identity").Logger(),
	}
}

type platformUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

func (v *PlatformVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	token, err := checkToken(token)
	if err != nil {
		return nil, err
	}

	// the shared lookup runs detached; each caller waits on its own context
	ch := v.group.DoChan(token, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
		defer cancel()
		return v.fetchUser(fetchCtx, token)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		v.log.Debug().Msg("coalesced token check")
	}

	p := res.Val.(*Principal)
	// callers get their own copy
	out := *p
	return &out, nil
}

func (v *PlatformVerifier) fetchUser(ctx context.Context, token string) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build identity request: %v", common.ErrStorageUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.anonKey != "" {
		req.Header.Set("apikey", v.anonKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Error().Err(err).Msg("identity platform unreachable")
		return nil, fmt.Errorf("%w: identity platform unreachable", common.ErrStorageUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: token rejected", common.ErrUnauthenticated)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: token rejected with status %d", common.ErrUnauthenticated, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		v.log.Error().Int("status", resp.StatusCode).Msg("identity platform error")
		return nil, fmt.Errorf("%w: identity platform returned %d", common.ErrStorageUnavailable, resp.StatusCode)
	}

	var user platformUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: decode identity response: %v", common.ErrStorageUnavailable, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: no user for token", common.ErrUnauthenticated)
	}

	return &Principal{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: models.DisplayNameFromMetadata(user.UserMetadata, user.Email),
	}, nil
}
