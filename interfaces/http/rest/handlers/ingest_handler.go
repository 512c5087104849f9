package handlers

import (
	"encoding/json"
	"net/http"

	"kgraph-backend/application/services"
	"kgraph-backend/domain/core/entities"
	"kgraph-backend/pkg/common"
	apperrors "kgraph-backend/pkg/errors"

	"go.uber.org/zap"
)

// IngestHandler handles document batch HTTP requests
type IngestHandler struct {
	access *services.AccessService
	ingest *services.IngestService
	logger *zap.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(
	access *services.AccessService,
	ingest *services.IngestService,
	logger *zap.Logger,
) *IngestHandler {
	return &IngestHandler{
		access: access,
		ingest: ingest,
		logger: logger,
	}
}

// IngestRequest represents the request body for a document batch
type IngestRequest struct {
	Documents []entities.Document `json:"documents"`
}

// Ingest handles POST /documents
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Invalid request body: "+err.Error())
		return
	}

	result, err := h.ingest.Ingest(r.Context(), scope, req.Documents)
	if err != nil {
		h.logger.Error("Document batch failed",
			zap.String("namespaceID", scope.NamespaceID),
			zap.Int("documents", len(req.Documents)),
			zap.Error(err),
		)
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}
