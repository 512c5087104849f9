package handlers

import (
	"net/http"

	"kgraph-backend/application/services"
	"kgraph-backend/pkg/auth"
	"kgraph-backend/pkg/common"
	apperrors "kgraph-backend/pkg/errors"
)

// namespaceHeader names the tenant partition a request operates on.
const namespaceHeader = "X-Namespace-ID"

// requestNamespace reads the namespace id from the header, falling back to
// the query parameter.
func requestNamespace(r *http.Request) string {
	if ns := r.Header.Get(namespaceHeader); ns != "" {
		return ns
	}
	return r.URL.Query().Get("namespace")
}

// resolveScope authenticates the request and resolves access to its
// namespace. On failure the response has already been written and ok is
// false.
func resolveScope(w http.ResponseWriter, r *http.Request, access *services.AccessService) (services.Scope, bool) {
	namespaceID := requestNamespace(r)
	if namespaceID == "" {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "X-Namespace-ID header is required")
		return services.Scope{}, false
	}

	credential, err := auth.GetCredential(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return services.Scope{}, false
	}

	decision, err := access.Resolve(r.Context(), credential, namespaceID)
	if err != nil {
		common.RespondAppError(w, err)
		return services.Scope{}, false
	}
	if !decision.Granted {
		common.RespondError(w, http.StatusForbidden,
			string(apperrors.ErrorTypeAccessDenied), decision.Reason)
		return services.Scope{}, false
	}

	return decision.Scope(namespaceID), true
}

// resolveIdentity authenticates the request without a namespace. Event chains
// are keyed by user and project rather than by namespace, so their endpoints
// only need the caller's identity.
func resolveIdentity(w http.ResponseWriter, r *http.Request, access *services.AccessService) (string, bool) {
	credential, err := auth.GetCredential(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return "", false
	}

	decision, err := access.Resolve(r.Context(), credential, "")
	if err != nil {
		common.RespondAppError(w, err)
		return "", false
	}
	if !decision.Granted {
		common.RespondError(w, http.StatusForbidden,
			string(apperrors.ErrorTypeAccessDenied), decision.Reason)
		return "", false
	}

	return decision.EffectiveIdentity, true
}
