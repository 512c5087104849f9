package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"kgraph-backend/application/ports"
	"kgraph-backend/domain/core/entities"
	apperrors "kgraph-backend/pkg/errors"
	"kgraph-backend/pkg/utils"

	"go.uber.org/zap"
)

const (
	defaultReadLimit = 20
	maxReadLimit     = 100
)

// CursorUpdates is the subset of session-cursor fields a caller may change.
// Nil fields are left untouched.
type CursorUpdates struct {
	CurrentEventID    *string                `json:"current_event_id,omitempty"`
	LastLoadedEventID *string                `json:"last_loaded_event_id,omitempty"`
	Status            *string                `json:"status,omitempty"`
	ContextSnapshot   map[string]interface{} `json:"context_snapshot,omitempty"`
}

// EventService maintains the append-only event chains and the session cursors
// that track read positions within them.
//
// Chain linking is not serialized: two events created concurrently for the
// same (user, org, project, branch) may both observe the same most-recent
// prior event and fork the chain. The workload is append-mostly with a single
// writer per chain; multi-writer chains need a store-level conditional write
// this service does not provide.
type EventService struct {
	store  ports.GraphStore
	logger *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(store ports.GraphStore, logger *zap.Logger) *EventService {
	return &EventService{store: store, logger: logger}
}

// CreateEvent writes an immutable event and links it into its chain. The
// identity link is best-effort: a missing identity node never blocks the
// write.
func (s *EventService) CreateEvent(ctx context.Context, event *entities.Event) (*entities.Event, error) {
	if event.Org == "" || event.Project == "" {
		return nil, apperrors.NewValidationError("org and project are required")
	}
	if event.ID == "" {
		event.ID = entities.GenerateNodeID("event")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = utils.NowUTC()
	}
	event.Timestamp = event.Timestamp.UTC()

	// The event write and the chain link commit together, so a failed link
	// never leaves an unlinked event behind.
	results, err := s.store.ExecuteBatch(ctx, []ports.Statement{
		{
			Query:  `CREATE (e:Event) SET e = $props RETURN properties(e) AS props`,
			Params: map[string]interface{}{"props": eventProps(event)},
		},
		chainLinkStatement(event),
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || len(results[0]) == 0 {
		return nil, apperrors.NewInternalError("event write returned no row")
	}
	rows := results[0]

	s.linkEventToIdentity(ctx, event.ID, event.User)

	s.logger.Info("Event created",
		zap.String("eventID", event.ID),
		zap.String("user", event.User),
		zap.String("org", event.Org),
		zap.String("project", event.Project),
		zap.String("branch", event.Branch),
	)
	return eventFromProps(rows[0]["props"]), nil
}

// linkEventToIdentity attaches a LOGGED_BY edge when the identity node
// exists. Failures are logged and swallowed; this is a side link, not part of
// the primary write.
func (s *EventService) linkEventToIdentity(ctx context.Context, eventID, user string) {
	if user == "" {
		return
	}
	_, err := s.store.RunWrite(ctx,
		`MATCH (u:Identity {id: $user})
		 MATCH (e:Event {id: $eventId})
		 MERGE (e)-[:LOGGED_BY]->(u)`,
		map[string]interface{}{"user": user, "eventId": eventID},
	)
	if err != nil {
		s.logger.Warn("Best-effort identity link failed",
			zap.String("eventID", eventID),
			zap.String("user", user),
			zap.Error(err),
		)
	}
}

// chainLinkStatement links the most recent prior event of the same chain to
// the new one via NEXT. A new chain simply starts with this event.
func chainLinkStatement(event *entities.Event) ports.Statement {
	return ports.Statement{
		Query: `MATCH (prev:Event {user: $user, org: $org, project: $project})
		 WHERE prev.id <> $id AND coalesce(prev.branch, '') = coalesce($branch, '')
		 WITH prev ORDER BY prev.timestamp DESC LIMIT 1
		 MATCH (e:Event {id: $id})
		 CREATE (prev)-[:NEXT]->(e)`,
		Params: map[string]interface{}{
			"user":    event.User,
			"org":     event.Org,
			"project": event.Project,
			"branch":  event.Branch,
			"id":      event.ID,
		},
	}
}

// CreateSessionCursor creates a cursor positioned at an existing event within
// the same org and project scope.
func (s *EventService) CreateSessionCursor(ctx context.Context, cursor *entities.SessionCursor) (*entities.SessionCursor, error) {
	if cursor.Org == "" || cursor.Project == "" {
		return nil, apperrors.NewValidationError("org and project are required")
	}
	if cursor.CurrentEventID == "" {
		return nil, apperrors.NewValidationError("current_event_id is required")
	}
	if cursor.ID == "" {
		cursor.ID = entities.GenerateNodeID("cursor")
	}
	if cursor.Status == "" {
		cursor.Status = entities.CursorStatusActive
	}

	now := utils.NowRFC3339()
	props := cursorProps(cursor, now)

	rows, err := s.store.RunWrite(ctx,
		`MATCH (e:Event {id: $eventId, org: $org, project: $project})
		 CREATE (c:SessionCursor)
		 SET c = $props
		 CREATE (c)-[:POSITIONED_AT]->(e)
		 RETURN properties(c) AS props`,
		map[string]interface{}{
			"eventId": cursor.CurrentEventID,
			"org":     cursor.Org,
			"project": cursor.Project,
			"props":   props,
		},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewValidationError("current_event_id must exist")
	}

	s.linkCursorToIdentity(ctx, cursor.ID, cursor.UserID)

	s.logger.Info("Session cursor created",
		zap.String("cursorID", cursor.ID),
		zap.String("user", cursor.UserID),
		zap.String("project", cursor.Project),
	)
	return cursorFromProps(rows[0]["props"]), nil
}

func (s *EventService) linkCursorToIdentity(ctx context.Context, cursorID, user string) {
	if user == "" {
		return
	}
	_, err := s.store.RunWrite(ctx,
		`MATCH (u:Identity {id: $user})
		 MATCH (c:SessionCursor {id: $cursorId})
		 MERGE (c)-[:OWNED_BY]->(u)`,
		map[string]interface{}{"user": user, "cursorId": cursorID},
	)
	if err != nil {
		s.logger.Warn("Best-effort identity link failed",
			zap.String("cursorID", cursorID),
			zap.String("user", user),
			zap.Error(err),
		)
	}
}

// UpdateSessionCursor applies a partial update on behalf of the actor. Only
// the owning identity may update a cursor; a missing cursor and a cursor
// owned by someone else produce the same error so existence is not leaked.
// When the current event changes, the POSITIONED_AT edge is repointed in the
// same statement that validates the new target, so there is never a moment
// with zero or two live edges.
func (s *EventService) UpdateSessionCursor(ctx context.Context, cursorID string, updates CursorUpdates, actor string) (*entities.SessionCursor, error) {
	if updates.Status != nil &&
		*updates.Status != entities.CursorStatusActive &&
		*updates.Status != entities.CursorStatusPaused {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid status: %q", *updates.Status))
	}

	props := map[string]interface{}{
		"lastActive": utils.NowRFC3339(),
	}
	if updates.LastLoadedEventID != nil {
		props["lastLoadedEventId"] = *updates.LastLoadedEventID
	}
	if updates.Status != nil {
		props["status"] = *updates.Status
	}
	if updates.ContextSnapshot != nil {
		snapshot, err := json.Marshal(updates.ContextSnapshot)
		if err != nil {
			return nil, apperrors.NewValidationError("context_snapshot is not serializable")
		}
		props["contextSnapshot"] = string(snapshot)
	}

	params := map[string]interface{}{
		"cursorId": cursorID,
		"actor":    actor,
		"props":    props,
	}

	var query string
	if updates.CurrentEventID != nil {
		props["currentEventId"] = *updates.CurrentEventID
		params["eventId"] = *updates.CurrentEventID
		query = `MATCH (c:SessionCursor {id: $cursorId, userId: $actor})
		 MATCH (e:Event {id: $eventId})
		 WHERE e.org = c.org AND e.project = c.project
		 OPTIONAL MATCH (c)-[old:POSITIONED_AT]->()
		 DELETE old
		 CREATE (c)-[:POSITIONED_AT]->(e)
		 SET c += $props
		 RETURN properties(c) AS props`
	} else {
		query = `MATCH (c:SessionCursor {id: $cursorId, userId: $actor})
		 SET c += $props
		 RETURN properties(c) AS props`
	}

	rows, err := s.store.RunWrite(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, s.classifyCursorUpdateFailure(ctx, cursorID, actor, updates)
	}
	return cursorFromProps(rows[0]["props"]), nil
}

// classifyCursorUpdateFailure decides, on the error path only, whether a
// zero-row update means an invalid target event or an unknown/foreign cursor.
// The latter two stay merged.
func (s *EventService) classifyCursorUpdateFailure(ctx context.Context, cursorID, actor string, updates CursorUpdates) error {
	if updates.CurrentEventID != nil {
		rows, err := s.store.Run(ctx,
			`MATCH (c:SessionCursor {id: $cursorId, userId: $actor}) RETURN c.id AS id`,
			map[string]interface{}{"cursorId": cursorID, "actor": actor},
		)
		if err == nil && len(rows) > 0 {
			return apperrors.NewValidationError("current_event_id must exist")
		}
	}
	return apperrors.NewNotFoundError("session cursor")
}

// GetSessionCursor returns the most-recently-active cursor matching (user,
// project, branch), or nil when none exists.
func (s *EventService) GetSessionCursor(ctx context.Context, userID, projectID, branch string) (*entities.SessionCursor, error) {
	rows, err := s.store.Run(ctx,
		`MATCH (c:SessionCursor {userId: $userId, project: $project})
		 WHERE coalesce(c.branch, '') = coalesce($branch, '')
		 RETURN properties(c) AS props
		 ORDER BY c.lastActive DESC
		 LIMIT 1`,
		map[string]interface{}{
			"userId":  userID,
			"project": projectID,
			"branch":  branch,
		},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return cursorFromProps(rows[0]["props"]), nil
}

// ReadEventsBackward walks the chain from the cursor's current event toward
// older events, up to limit hops, and returns them newest-first. NEXT points
// old→new, so the walk follows incoming NEXT edges.
func (s *EventService) ReadEventsBackward(ctx context.Context, cursorID string, limit int) ([]*entities.Event, error) {
	if limit <= 0 {
		limit = defaultReadLimit
	}
	if limit > maxReadLimit {
		limit = maxReadLimit
	}

	rows, err := s.store.Run(ctx,
		fmt.Sprintf(`MATCH (c:SessionCursor {id: $cursorId})-[:POSITIONED_AT]->(cur:Event)
		 MATCH (e:Event)-[:NEXT*0..%d]->(cur)
		 WHERE e.org = c.org AND e.project = c.project
		   AND (coalesce(c.branch, '') = '' OR coalesce(e.branch, '') = c.branch)
		 RETURN DISTINCT properties(e) AS props`, limit-1),
		map[string]interface{}{"cursorId": cursorID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if err := s.requireCursor(ctx, cursorID); err != nil {
			return nil, err
		}
		return []*entities.Event{}, nil
	}

	seen := make(map[string]bool, len(rows))
	events := make([]*entities.Event, 0, len(rows))
	for _, row := range rows {
		event := eventFromProps(row["props"])
		if event.ID == "" || seen[event.ID] {
			continue
		}
		seen[event.ID] = true
		events = append(events, event)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *EventService) requireCursor(ctx context.Context, cursorID string) error {
	rows, err := s.store.Run(ctx,
		`MATCH (c:SessionCursor {id: $cursorId}) RETURN c.id AS id`,
		map[string]interface{}{"cursorId": cursorID},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperrors.NewNotFoundError("session cursor")
	}
	return nil
}

func eventProps(event *entities.Event) map[string]interface{} {
	props := map[string]interface{}{
		"id":        event.ID,
		"user":      event.User,
		"org":       event.Org,
		"project":   event.Project,
		"timestamp": utils.FormatRFC3339(event.Timestamp),
		"shared":    event.Shared,
	}
	if event.Category != "" {
		props["category"] = event.Category
	}
	if event.Description != "" {
		props["description"] = event.Description
	}
	if len(event.Files) > 0 {
		props["files"] = event.Files
	}
	if event.Impact != "" {
		props["impact"] = event.Impact
	}
	if event.Branch != "" {
		props["branch"] = event.Branch
	}
	if len(event.Tags) > 0 {
		props["tags"] = event.Tags
	}
	if event.CommitHash != "" {
		props["commitHash"] = event.CommitHash
	}
	return props
}

func eventFromProps(value interface{}) *entities.Event {
	props, _ := value.(map[string]interface{})
	event := &entities.Event{}
	if props == nil {
		return event
	}
	event.ID, _ = props["id"].(string)
	event.User, _ = props["user"].(string)
	event.Org, _ = props["org"].(string)
	event.Project, _ = props["project"].(string)
	event.Category, _ = props["category"].(string)
	event.Description, _ = props["description"].(string)
	event.Impact, _ = props["impact"].(string)
	event.Branch, _ = props["branch"].(string)
	event.CommitHash, _ = props["commitHash"].(string)
	event.Shared, _ = props["shared"].(bool)
	if ts, ok := props["timestamp"].(string); ok {
		event.Timestamp = utils.ParseRFC3339(ts)
	}
	event.Files = toStringSlice(props["files"])
	event.Tags = toStringSlice(props["tags"])
	return event
}

func cursorProps(cursor *entities.SessionCursor, now string) map[string]interface{} {
	props := map[string]interface{}{
		"id":             cursor.ID,
		"userId":         cursor.UserID,
		"org":            cursor.Org,
		"project":        cursor.Project,
		"currentEventId": cursor.CurrentEventID,
		"status":         cursor.Status,
		"started":        now,
		"lastActive":     now,
	}
	if cursor.Branch != "" {
		props["branch"] = cursor.Branch
	}
	if cursor.LastLoadedEventID != "" {
		props["lastLoadedEventId"] = cursor.LastLoadedEventID
	}
	if cursor.ContextSnapshot != nil {
		if snapshot, err := json.Marshal(cursor.ContextSnapshot); err == nil {
			props["contextSnapshot"] = string(snapshot)
		}
	}
	return props
}

func cursorFromProps(value interface{}) *entities.SessionCursor {
	props, _ := value.(map[string]interface{})
	cursor := &entities.SessionCursor{}
	if props == nil {
		return cursor
	}
	cursor.ID, _ = props["id"].(string)
	cursor.UserID, _ = props["userId"].(string)
	cursor.Org, _ = props["org"].(string)
	cursor.Project, _ = props["project"].(string)
	cursor.Branch, _ = props["branch"].(string)
	cursor.CurrentEventID, _ = props["currentEventId"].(string)
	cursor.LastLoadedEventID, _ = props["lastLoadedEventId"].(string)
	cursor.Status, _ = props["status"].(string)
	if started, ok := props["started"].(string); ok {
		cursor.Started = utils.ParseRFC3339(started)
	}
	if lastActive, ok := props["lastActive"].(string); ok {
		cursor.LastActive = utils.ParseRFC3339(lastActive)
	}
	if snapshot, ok := props["contextSnapshot"].(string); ok && snapshot != "" {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(snapshot), &decoded); err == nil {
			cursor.ContextSnapshot = decoded
		}
	}
	return cursor
}

func toStringSlice(value interface{}) []string {
	switch tv := value.(type) {
	case []string:
		return tv
	case []interface{}:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
