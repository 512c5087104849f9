package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"kgraph-backend/domain/core/entities"
	apperrors "kgraph-backend/pkg/errors"
	"kgraph-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEventRequiresOrgAndProject(t *testing.T) {
	svc := NewEventService(&fakeStore{}, testLogger())

	_, err := svc.CreateEvent(context.Background(), &entities.Event{Org: "acme"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateEventLinksIntoChain(t *testing.T) {
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			if strings.Contains(query, "CREATE (e:Event)") {
				return []map[string]interface{}{{"props": params["props"]}}, nil
			}
			return nil, nil
		},
	}
	svc := NewEventService(store, testLogger())

	event, err := svc.CreateEvent(context.Background(), &entities.Event{
		User: "alice", Org: "acme", Project: "rocket", Branch: "main",
		Description: "fixed the flaky launch sequence",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	var sawChainLink, sawIdentityLink bool
	for _, write := range store.writes {
		if strings.Contains(write.Query, "CREATE (prev)-[:NEXT]->(e)") {
			sawChainLink = true
			// The chain is keyed by user, org, project and branch.
			assert.Equal(t, "alice", write.Params["user"])
			assert.Equal(t, "main", write.Params["branch"])
		}
		if strings.Contains(write.Query, "MERGE (e)-[:LOGGED_BY]->(u)") {
			sawIdentityLink = true
		}
	}
	assert.True(t, sawChainLink)
	assert.True(t, sawIdentityLink)
}

func TestCreateEventWriteAndChainLinkShareOneUnitOfWork(t *testing.T) {
	// If the chain link fails, the event write must roll back with it; an
	// event outside its chain would be invisible to every backward read.
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			if strings.Contains(query, "CREATE (e:Event)") {
				return []map[string]interface{}{{"props": params["props"]}}, nil
			}
			return nil, nil
		},
	}
	svc := NewEventService(store, testLogger())

	_, err := svc.CreateEvent(context.Background(), &entities.Event{
		User: "alice", Org: "acme", Project: "rocket",
	})
	require.NoError(t, err)

	require.Len(t, store.batches, 1)
	require.Len(t, store.batches[0], 2)
	assert.Contains(t, store.batches[0][0].Query, "CREATE (e:Event)")
	assert.Contains(t, store.batches[0][1].Query, "CREATE (prev)-[:NEXT]->(e)")
}

func TestCreateSessionCursorValidatesTargetEvent(t *testing.T) {
	// The create statement matches the target event in the same org and
	// project; zero rows means the target does not exist there.
	svc := NewEventService(&fakeStore{}, testLogger())

	_, err := svc.CreateSessionCursor(context.Background(), &entities.SessionCursor{
		UserID: "alice", Org: "acme", Project: "rocket", CurrentEventID: "event_missing",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "current_event_id must exist")
}

func TestCreateSessionCursorDefaults(t *testing.T) {
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			if strings.Contains(query, "CREATE (c:SessionCursor)") {
				return []map[string]interface{}{{"props": params["props"]}}, nil
			}
			return nil, nil
		},
	}
	svc := NewEventService(store, testLogger())

	cursor, err := svc.CreateSessionCursor(context.Background(), &entities.SessionCursor{
		UserID: "alice", Org: "acme", Project: "rocket", CurrentEventID: "event_1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, cursor.ID)
	assert.Equal(t, entities.CursorStatusActive, cursor.Status)
	assert.False(t, cursor.Started.IsZero())
}

func TestUpdateSessionCursorRepointsAtomically(t *testing.T) {
	var captured recordedCall
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			captured = recordedCall{Query: query, Params: params}
			return []map[string]interface{}{{"props": map[string]interface{}{"id": "cursor_1"}}}, nil
		},
	}
	svc := NewEventService(store, testLogger())

	eventID := "event_7"
	_, err := svc.UpdateSessionCursor(context.Background(), "cursor_1",
		CursorUpdates{CurrentEventID: &eventID}, "alice")
	require.NoError(t, err)

	// Old edge removal, target validation and new edge creation share one
	// statement.
	assert.Contains(t, captured.Query, "OPTIONAL MATCH (c)-[old:POSITIONED_AT]->()")
	assert.Contains(t, captured.Query, "DELETE old")
	assert.Contains(t, captured.Query, "CREATE (c)-[:POSITIONED_AT]->(e)")
	assert.Equal(t, "alice", captured.Params["actor"])
}

func TestUpdateSessionCursorRejectsInvalidStatus(t *testing.T) {
	svc := NewEventService(&fakeStore{}, testLogger())

	bad := "sleeping"
	_, err := svc.UpdateSessionCursor(context.Background(), "cursor_1",
		CursorUpdates{Status: &bad}, "alice")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateSessionCursorForeignCursorLooksMissing(t *testing.T) {
	// The cursor exists but belongs to someone else; the caller must not be
	// able to tell that apart from a cursor that does not exist.
	svc := NewEventService(&fakeStore{}, testLogger())

	status := entities.CursorStatusPaused
	_, err := svc.UpdateSessionCursor(context.Background(), "cursor_1",
		CursorUpdates{Status: &status}, "mallory")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateSessionCursorBadTargetEvent(t *testing.T) {
	store := &fakeStore{
		runFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			if strings.Contains(query, "MATCH (c:SessionCursor {id: $cursorId, userId: $actor})") {
				return []map[string]interface{}{{"id": "cursor_1"}}, nil
			}
			return nil, nil
		},
	}
	svc := NewEventService(store, testLogger())

	eventID := "event_missing"
	_, err := svc.UpdateSessionCursor(context.Background(), "cursor_1",
		CursorUpdates{CurrentEventID: &eventID}, "alice")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestGetSessionCursorNilWhenAbsent(t *testing.T) {
	svc := NewEventService(&fakeStore{}, testLogger())

	cursor, err := svc.GetSessionCursor(context.Background(), "alice", "rocket", "")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestReadEventsBackwardNewestFirstAndDeduplicated(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := func(id string, offset time.Duration) map[string]interface{} {
		return map[string]interface{}{"props": map[string]interface{}{
			"id":        id,
			"org":       "acme",
			"project":   "rocket",
			"timestamp": utils.FormatRFC3339(base.Add(offset)),
		}}
	}
	store := &fakeStore{
		runFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			if strings.Contains(query, "POSITIONED_AT") {
				return []map[string]interface{}{
					row("event_b", time.Minute),
					row("event_a", 0),
					row("event_c", 2*time.Minute),
					row("event_b", time.Minute), // duplicate from overlapping paths
				}, nil
			}
			return nil, nil
		},
	}
	svc := NewEventService(store, testLogger())

	events, err := svc.ReadEventsBackward(context.Background(), "cursor_1", 10)
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, "event_c", events[0].ID)
	assert.Equal(t, "event_b", events[1].ID)
	assert.Equal(t, "event_a", events[2].ID)
}

func TestReadEventsBackwardTruncatesToLimit(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		runFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			if strings.Contains(query, "POSITIONED_AT") {
				rows := make([]map[string]interface{}, 0, 5)
				for i := 0; i < 5; i++ {
					rows = append(rows, map[string]interface{}{"props": map[string]interface{}{
						"id":        string(rune('a' + i)),
						"timestamp": utils.FormatRFC3339(base.Add(time.Duration(i) * time.Minute)),
					}})
				}
				return rows, nil
			}
			return nil, nil
		},
	}
	svc := NewEventService(store, testLogger())

	events, err := svc.ReadEventsBackward(context.Background(), "cursor_1", 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestReadEventsBackwardMissingCursor(t *testing.T) {
	svc := NewEventService(&fakeStore{}, testLogger())

	_, err := svc.ReadEventsBackward(context.Background(), "cursor_ghost", 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReadEventsBackwardEmptyChain(t *testing.T) {
	store := &fakeStore{
		runFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			if strings.Contains(query, "RETURN c.id AS id") {
				return []map[string]interface{}{{"id": "cursor_1"}}, nil
			}
			return nil, nil
		},
	}
	svc := NewEventService(store, testLogger())

	events, err := svc.ReadEventsBackward(context.Background(), "cursor_1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
