package handlers

import (
	"encoding/json"
	"net/http"

	"kgraph-backend/application/services"
	"kgraph-backend/pkg/common"
	apperrors "kgraph-backend/pkg/errors"

	"go.uber.org/zap"
)

// SearchHandler handles similarity search HTTP requests
type SearchHandler struct {
	access *services.AccessService
	search *services.SearchService
	logger *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(
	access *services.AccessService,
	search *services.SearchService,
	logger *zap.Logger,
) *SearchHandler {
	return &SearchHandler{
		access: access,
		search: search,
		logger: logger,
	}
}

// SearchRequest represents the request body for a similarity search
type SearchRequest struct {
	Vector     []float32 `json:"vector"`
	Limit      int       `json:"limit,omitempty"`
	Threshold  float64   `json:"threshold,omitempty"`
	Categories []string  `json:"categories,omitempty"`
}

// Search handles POST /search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Invalid request body: "+err.Error())
		return
	}

	hits, err := h.search.Search(r.Context(), scope, req.Vector, services.SearchOptions{
		Limit:      req.Limit,
		Threshold:  req.Threshold,
		Categories: req.Categories,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, hits)
}
