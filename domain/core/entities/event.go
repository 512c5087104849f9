package entities

import "time"

// Cursor status values.
const (
	CursorStatusActive = "active"
	CursorStatusPaused = "paused"
)

// Event represents an immutable record in a per-(user, org, project, branch)
// chain. Events are created once and never updated or deleted; chain order is
// expressed by a NEXT relationship from the previous latest event to the new
// one.
type Event struct {
	ID          string    `json:"id"`
	User        string    `json:"user"`
	Org         string    `json:"org"`
	Project     string    `json:"project"`
	Timestamp   time.Time `json:"timestamp"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Files       []string  `json:"files,omitempty"`
	Impact      string    `json:"impact,omitempty"`
	Branch      string    `json:"branch,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Shared      bool      `json:"shared"`
	CommitHash  string    `json:"commitHash,omitempty"`
}

// ChainKey returns the chain identity of the event. Two events belong to the
// same chain when their keys are equal.
func (e *Event) ChainKey() [4]string {
	return [4]string{e.User, e.Org, e.Project, e.Branch}
}

// SessionCursor represents a mutable pointer into an event chain. A cursor is
// always linked to exactly one Event via POSITIONED_AT; the edge is repointed,
// never duplicated, when CurrentEventID changes. Cursors are paused rather
// than deleted.
type SessionCursor struct {
	ID                string                 `json:"id"`
	UserID            string                 `json:"userId"`
	Org               string                 `json:"org"`
	Project           string                 `json:"project"`
	Branch            string                 `json:"branch,omitempty"`
	CurrentEventID    string                 `json:"currentEventId"`
	LastLoadedEventID string                 `json:"lastLoadedEventId,omitempty"`
	Started           time.Time              `json:"started"`
	LastActive        time.Time              `json:"lastActive"`
	Status            string                 `json:"status"`
	ContextSnapshot   map[string]interface{} `json:"contextSnapshot,omitempty"`
}
