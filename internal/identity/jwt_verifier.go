package identity

import (
	"context"
	"fmt"

	"gochat/internal/chat/models"
	"gochat/internal/common"
)

// JWTVerifier checks platform access tokens locally against the shared
// HS256 secret, without a round trip to the platform.
type JWTVerifier struct {
	secret   []byte
	audience string
}

func NewJWTVerifier(secret []byte, audience string) *JWTVerifier {
	return &JWTVerifier{secret: secret, audience: audience}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	token, err := checkToken(token)
	if err != nil {
		return nil, err
	}

	claims, err := common.ParsePlatformToken(token, v.secret, v.audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthenticated, err)
	}

	return &Principal{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: models.DisplayNameFromMetadata(claims.UserMetadata, claims.Email),
	}, nil
}
