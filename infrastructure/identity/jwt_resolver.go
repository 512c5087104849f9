package identity

import (
	"context"
	"errors"
	"fmt"

	apperrors "kgraph-backend/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// minCredentialLength rejects obviously malformed credentials before any
// parsing happens.
const minCredentialLength = 16

// JWTResolver resolves HS256 bearer tokens into an authenticated identity.
// Resolution is entirely local: no remote call is made for any credential,
// valid or not.
type JWTResolver struct {
	secret []byte
	issuer string
}

// NewJWTResolver creates a new JWT resolver
func NewJWTResolver(secret, issuer string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), issuer: issuer}
}

// Resolve verifies the credential and returns the identity it carries.
func (r *JWTResolver) Resolve(_ context.Context, credential string) (string, error) {
	if len(credential) < minCredentialLength {
		return "", apperrors.NewAuthenticationError("credential too short")
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(r.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperrors.NewAuthenticationError("token has expired").WithCause(err)
		}
		return "", apperrors.NewAuthenticationError("invalid token").WithCause(err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", apperrors.NewAuthenticationError("token carries no subject")
	}
	return subject, nil
}
