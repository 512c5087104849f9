package auth

import (
	"context"

	apperrors "kgraph-backend/pkg/errors"
)

type contextKey string

const credentialKey contextKey = "bearerCredential"

// SetCredential stores the raw bearer credential in the request context. The
// credential is resolved into an identity later, together with the requested
// namespace, by the access resolver.
func SetCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey, credential)
}

// GetCredential extracts the bearer credential from the request context.
func GetCredential(ctx context.Context) (string, error) {
	credential, ok := ctx.Value(credentialKey).(string)
	if !ok || credential == "" {
		return "", apperrors.NewAuthenticationError("missing credential")
	}
	return credential, nil
}
