// Package identity turns a caller's bearer token into a Principal
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"gochat/internal/common"
	"gochat/internal/config"
)

// Principal is the authenticated caller.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Verifier validates a bearer token. Rejected tokens wrap
// common.ErrUnauthenticated; an unreachable platform wraps
// common.ErrStorageUnavailable.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// NewVerifier picks the verifier for cfg.Platform.IdentityMode.
func NewVerifier(cfg *config.Config, log zerolog.Logger) (Verifier, error) {
	switch cfg.Platform.IdentityMode {
	case config.IdentityJWT:
		return NewJWTVerifier([]byte(cfg.Platform.JWTSecret), cfg.Platform.JWTAudience), nil
	case config.IdentityRemote, "":
		return NewPlatformVerifier(cfg.Platform.URL, cfg.Platform.AnonKey, cfg.Platform.Timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", cfg.Platform.IdentityMode)
	}
}

func checkToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: missing token", common.ErrUnauthenticated)
	}
	return token, nil
}

type principalKey struct{}

// WithPrincipal stores an already verified caller on ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller stored by WithPrincipal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
