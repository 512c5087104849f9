package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"kgraph-backend/application/services"
	"kgraph-backend/domain/core/entities"
	"kgraph-backend/pkg/common"
	apperrors "kgraph-backend/pkg/errors"
	"kgraph-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// EventHandler handles event chain and session cursor HTTP requests
type EventHandler struct {
	access *services.AccessService
	events *services.EventService
	logger *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(
	access *services.AccessService,
	events *services.EventService,
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{
		access: access,
		events: events,
		logger: logger,
	}
}

// CreateEventRequest represents the request body for logging an event
type CreateEventRequest struct {
	Org         string   `json:"org" validate:"required"`
	Project     string   `json:"project" validate:"required"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Files       []string `json:"files,omitempty"`
	Impact      string   `json:"impact,omitempty"`
	Branch      string   `json:"branch,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Shared      bool     `json:"shared"`
	CommitHash  string   `json:"commitHash,omitempty"`
}

// CreateCursorRequest represents the request body for opening a session cursor
type CreateCursorRequest struct {
	Org             string                 `json:"org" validate:"required"`
	Project         string                 `json:"project" validate:"required"`
	Branch          string                 `json:"branch,omitempty"`
	CurrentEventID  string                 `json:"current_event_id" validate:"required"`
	ContextSnapshot map[string]interface{} `json:"context_snapshot,omitempty"`
}

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	identity, ok := resolveIdentity(w, r, h.access)
	if !ok {
		return
	}

	var req CreateEventRequest
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

	var timestamp time.Time
	if req.Timestamp != "" {
		timestamp = utils.ParseRFC3339(req.Timestamp)
		if timestamp.IsZero() {
			common.RespondError(w, http.StatusBadRequest,
				string(apperrors.ErrorTypeValidation), "timestamp must be RFC3339")
			return
		}
	}

	event := &entities.Event{
		User:        identity,
		Org:         req.Org,
		Project:     req.Project,
		Timestamp:   timestamp,
		Category:    req.Category,
		Description: req.Description,
		Files:       req.Files,
		Impact:      req.Impact,
		Branch:      req.Branch,
		Tags:        req.Tags,
		Shared:      req.Shared,
		CommitHash:  req.CommitHash,
	}

	created, err := h.events.CreateEvent(r.Context(), event)
	if err != nil {
		h.logger.Error("Failed to create event",
			zap.String("user", identity),
			zap.String("project", req.Project),
			zap.Error(err),
		)
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, created)
}

// CreateCursor handles POST /cursors
func (h *EventHandler) CreateCursor(w http.ResponseWriter, r *http.Request) {
	identity, ok := resolveIdentity(w, r, h.access)
	if !ok {
		return
	}

	var req CreateCursorRequest
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

	cursor := &entities.SessionCursor{
		UserID:          identity,
		Org:             req.Org,
		Project:         req.Project,
		Branch:          req.Branch,
		CurrentEventID:  req.CurrentEventID,
		ContextSnapshot: req.ContextSnapshot,
	}

	created, err := h.events.CreateSessionCursor(r.Context(), cursor)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, created)
}

// UpdateCursor handles PATCH /cursors/{cursorID}
func (h *EventHandler) UpdateCursor(w http.ResponseWriter, r *http.Request) {
	identity, ok := resolveIdentity(w, r, h.access)
	if !ok {
		return
	}

	var updates services.CursorUpdates
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "Invalid request body: "+err.Error())
		return
	}

	cursorID := chi.URLParam(r, "cursorID")
	cursor, err := h.events.UpdateSessionCursor(r.Context(), cursorID, updates, identity)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, cursor)
}

// GetCursor handles GET /cursors; it returns the caller's most recently
// active cursor for a project, or 404 when none exists.
func (h *EventHandler) GetCursor(w http.ResponseWriter, r *http.Request) {
	identity, ok := resolveIdentity(w, r, h.access)
	if !ok {
		return
	}

	q := r.URL.Query()
	project := q.Get("project")
	if project == "" {
		common.RespondError(w, http.StatusBadRequest,
			string(apperrors.ErrorTypeValidation), "project is required")
		return
	}

	cursor, err := h.events.GetSessionCursor(r.Context(), identity, project, q.Get("branch"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if cursor == nil {
		common.RespondError(w, http.StatusNotFound,
			string(apperrors.ErrorTypeNotFound), "no session cursor for project")
		return
	}

	common.RespondJSON(w, http.StatusOK, cursor)
}

// ReadEvents handles GET /cursors/{cursorID}/events, walking the chain
// backward from the cursor position.
func (h *EventHandler) ReadEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := resolveIdentity(w, r, h.access); !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			common.RespondError(w, http.StatusBadRequest,
				string(apperrors.ErrorTypeValidation), "limit must be an integer")
			return
		}
		limit = parsed
	}

	cursorID := chi.URLParam(r, "cursorID")
	events, err := h.events.ReadEventsBackward(r.Context(), cursorID, limit)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, events)
}
