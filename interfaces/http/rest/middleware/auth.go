package middleware

import (
	"net/http"
	"strings"

	"kgraph-backend/pkg/auth"
	"kgraph-backend/pkg/common"
	apperrors "kgraph-backend/pkg/errors"
)

// RequireBearer extracts the bearer credential and stashes it in the request
// context. The credential is not verified here; verification happens together
// with namespace resolution so one decision covers both.
func RequireBearer() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractBearer(r)
			if credential == "" {
				common.RespondError(w, http.StatusUnauthorized,
					string(apperrors.ErrorTypeAuthentication), "Missing authorization header")
				return
			}

			ctx := auth.SetCredential(r.Context(), credential)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer pulls the token out of the Authorization header.
func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}
