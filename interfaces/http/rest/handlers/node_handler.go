package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"kgraph-backend/application/services"
	"kgraph-backend/pkg/common"
	apperrors "kgraph-backend/pkg/errors"
	"kgraph-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NodeHandler handles node and relationship HTTP requests
type NodeHandler struct {
	access *services.AccessService
	graph  *services.GraphService
	logger *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	access *services.AccessService,
	graph *services.GraphService,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		access: access,
		graph:  graph,
		logger: logger,
	}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Category string                 `json:"category" validate:"required"`
	Props    map[string]interface{} `json:"props"`
}

// UpsertNodeRequest represents the request body for upserting a node
type UpsertNodeRequest struct {
	Category       string                 `json:"category" validate:"required"`
	ID             string                 `json:"id" validate:"required"`
	Props          map[string]interface{} `json:"props"`
	IncrementUsage bool                   `json:"incrementUsage"`
}

// UpdateNodeRequest represents the request body for updating a node
type UpdateNodeRequest struct {
	Props map[string]interface{} `json:"props" validate:"required"`
}

// CreateRelationshipRequest represents the request body for linking two nodes
type CreateRelationshipRequest struct {
	From  string                 `json:"from" validate:"required"`
	To    string                 `json:"to" validate:"required"`
	Type  string                 `json:"type" validate:"required"`
	Props map[string]interface{} `json:"props"`
}

// ScopedQueryRequest represents the request body for the query escape hatch
type ScopedQueryRequest struct {
	Query  string                 `json:"query" validate:"required"`
	Params map[string]interface{} `json:"params"`
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Validation error: "+err.Error())
		return
	}

	if _, err := h.graph.EnsureNamespace(r.Context(), scope.NamespaceID, scope.Identity); err != nil {
		common.RespondAppError(w, err)
		return
	}

	node, err := h.graph.CreateNode(r.Context(), scope, req.Category, req.Props)
	if err != nil {
		h.logger.Error("Failed to create node",
			zap.String("namespaceID", scope.NamespaceID),
			zap.Error(err),
		)
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, node)
}

// UpsertNode handles POST /nodes/upsert
func (h *NodeHandler) UpsertNode(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	var req UpsertNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Validation error: "+err.Error())
		return
	}

	if _, err := h.graph.EnsureNamespace(r.Context(), scope.NamespaceID, scope.Identity); err != nil {
		common.RespondAppError(w, err)
		return
	}

	result, err := h.graph.MergeNode(r.Context(), scope, req.Category, req.ID, req.Props, req.IncrementUsage)
	if err != nil {
		h.logger.Error("Failed to upsert node",
			zap.String("namespaceID", scope.NamespaceID),
			zap.String("nodeID", req.ID),
			zap.Error(err),
		)
		common.RespondAppError(w, err)
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	common.RespondJSON(w, status, result)
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	nodeID := chi.URLParam(r, "nodeID")
	node, err := h.graph.GetNode(r.Context(), scope, nodeID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if node == nil {
		common.RespondError(w, http.StatusNotFound,
			string(apperrors.ErrorTypeNotFound), "node not found")
		return
	}

	common.RespondJSON(w, http.StatusOK, node)
}

// UpdateNode handles PUT /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	h.applyNodeUpdate(w, r, false)
}

// PatchNode handles PATCH /nodes/{nodeID}; unlike PUT it stamps the edit
// metadata and marks the node out of sync with its source document.
func (h *NodeHandler) PatchNode(w http.ResponseWriter, r *http.Request) {
	h.applyNodeUpdate(w, r, true)
}

func (h *NodeHandler) applyNodeUpdate(w http.ResponseWriter, r *http.Request, stampEdit bool) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Invalid request body: "+err.Error())
		return
	}
	if len(req.Props) == 0 {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "props must not be empty")
		return
	}

	nodeID := chi.URLParam(r, "nodeID")
	var node interface{}
	var err error
	if stampEdit {
		node, err = h.graph.PatchNode(r.Context(), scope, nodeID, req.Props, scope.Identity)
	} else {
		node, err = h.graph.UpdateNode(r.Context(), scope, nodeID, req.Props)
	}
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	nodeID := chi.URLParam(r, "nodeID")
	if err := h.graph.DeleteNode(r.Context(), scope, nodeID); err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{"id": nodeID, "message": "node deleted"})
}

// ListNodes handles GET /nodes
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	filters := queryFiltersFromRequest(r)
	result, err := h.graph.QueryNodes(r.Context(), scope, filters)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// CreateRelationship handles POST /relationships
func (h *NodeHandler) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	var req CreateRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Validation error: "+err.Error())
		return
	}

	rel, err := h.graph.CreateRelationship(r.Context(), scope, req.From, req.To, req.Type, req.Props)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, rel)
}

// GetRelationships handles GET /nodes/{nodeID}/relationships
func (h *NodeHandler) GetRelationships(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	nodeID := chi.URLParam(r, "nodeID")
	relType := r.URL.Query().Get("type")
	rels, err := h.graph.GetRelationships(r.Context(), scope, nodeID, relType)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, rels)
}

// DeleteRelationship handles DELETE /relationships
func (h *NodeHandler) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	q := r.URL.Query()
	from, to, relType := q.Get("from"), q.Get("to"), q.Get("type")
	if from == "" || to == "" || relType == "" {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "from, to and type are required")
		return
	}

	if err := h.graph.DeleteRelationship(r.Context(), scope, from, to, relType); err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "relationship deleted"})
}

// RunQuery handles POST /query, the scoped read escape hatch
func (h *NodeHandler) RunQuery(w http.ResponseWriter, r *http.Request) {
	scope, ok := resolveScope(w, r, h.access)
	if !ok {
		return
	}

	var req ScopedQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Validation error: "+err.Error())
		return
	}

	rows, err := h.graph.RunScopedQuery(r.Context(), scope, req.Query, req.Params)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, rows)
}

// queryFiltersFromRequest builds node listing filters from query parameters.
// Property equality filters use the prop.<key>=<value> form.
func queryFiltersFromRequest(r *http.Request) services.QueryFilters {
	q := r.URL.Query()

	filters := services.QueryFilters{
		Categories: q["category"],
		OrderBy:    q.Get("orderBy"),
		Ascending:  q.Get("order") == "asc",
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filters.Offset = offset
	}

	for key, values := range q {
		if !strings.HasPrefix(key, "prop.") || len(values) == 0 {
			continue
		}
		if filters.Equals == nil {
			filters.Equals = make(map[string]interface{})
		}
		filters.Equals[strings.TrimPrefix(key, "prop.")] = values[0]
	}
	return filters
}
