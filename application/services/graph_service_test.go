package services

import (
	"context"
	"strings"
	"testing"

	"kgraph-backend/domain/core/entities"
	apperrors "kgraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScope = Scope{NamespaceID: "ns-1", Identity: "alice"}

// namespaceAwareStore answers the namespace existence probe positively and
// routes everything else through the configured handlers.
func namespaceAwareStore(runFn, runWriteFn func(query string, params map[string]interface{}) ([]map[string]interface{}, error)) *fakeStore {
	store := &fakeStore{runWriteFn: runWriteFn}
	store.runFn = func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
		if strings.Contains(query, "RETURN ns.id AS id") {
			return []map[string]interface{}{{"id": "ns-1"}}, nil
		}
		if runFn != nil {
			return runFn(query, params)
		}
		return nil, nil
	}
	return store
}

func TestEnsureNamespaceReportsCreation(t *testing.T) {
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			return []map[string]interface{}{{"created": true}}, nil
		},
	}
	svc := NewGraphService(store, testLogger())

	created, err := svc.EnsureNamespace(context.Background(), "ns-1", "alice")
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, store.writes, 1)
	assert.Contains(t, store.writes[0].Query, "MERGE (ns:Namespace")
	assert.Equal(t, "alice", store.writes[0].Params["owner"])
}

func TestCreateNodeRejectsInvalidCategory(t *testing.T) {
	svc := NewGraphService(&fakeStore{}, testLogger())

	_, err := svc.CreateNode(context.Background(), testScope, "Bad Category!", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateNodeMissingNamespace(t *testing.T) {
	svc := NewGraphService(&fakeStore{}, testLogger())

	_, err := svc.CreateNode(context.Background(), testScope, "Doc", map[string]interface{}{"title": "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNamespaceNotFound(err))
}

func TestCreateNodeGeneratesID(t *testing.T) {
	var captured map[string]interface{}
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			captured = params
			return []map[string]interface{}{{"props": map[string]interface{}{
				"id":       params["id"],
				"category": "Doc",
			}}}, nil
		},
	}
	svc := NewGraphService(store, testLogger())

	node, err := svc.CreateNode(context.Background(), testScope, "Doc", map[string]interface{}{"title": "x"})
	require.NoError(t, err)

	id, _ := captured["id"].(string)
	assert.True(t, strings.HasPrefix(id, "Doc_"))
	assert.Equal(t, id, node.ID)

	// The id never travels inside the property bag.
	props, _ := captured["props"].(map[string]interface{})
	_, hasID := props["id"]
	assert.False(t, hasID)
}

func TestMergeNodeIsAtomicUpsert(t *testing.T) {
	var captured recordedCall
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			captured = recordedCall{Query: query, Params: params}
			return []map[string]interface{}{{"isNew": true}}, nil
		},
	}
	svc := NewGraphService(store, testLogger())

	result, err := svc.MergeNode(context.Background(), testScope, "ADR", "ADR-001", map[string]interface{}{"title": "t"}, false)
	require.NoError(t, err)

	assert.True(t, result.IsNew)
	assert.Equal(t, "ADR-001", result.ID)
	// Create and update must be a single statement, not read-then-write.
	assert.Contains(t, captured.Query, "MERGE (ns)-[:CONTAINS]->(n:ADR")
	assert.Contains(t, captured.Query, "ON CREATE SET")
	assert.Contains(t, captured.Query, "ON MATCH SET")
	assert.NotContains(t, captured.Query, "usageCount")
}

func TestMergeNodeIncrementsUsage(t *testing.T) {
	var captured string
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			captured = query
			return []map[string]interface{}{{"isNew": false}}, nil
		},
	}
	svc := NewGraphService(store, testLogger())

	result, err := svc.MergeNode(context.Background(), testScope, "Pattern", "pat-1", nil, true)
	require.NoError(t, err)

	assert.False(t, result.IsNew)
	assert.Contains(t, captured, "n.usageCount = coalesce(n.usageCount, 0) + 1")
	assert.Contains(t, captured, "n.lastUsedAt")
}

func TestMergeNodeRequiresID(t *testing.T) {
	svc := NewGraphService(&fakeStore{}, testLogger())

	_, err := svc.MergeNode(context.Background(), testScope, "Doc", "", nil, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPatchNodeStampsSyncState(t *testing.T) {
	var captured map[string]interface{}
	store := namespaceAwareStore(nil, func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
		captured = params["props"].(map[string]interface{})
		return []map[string]interface{}{{"props": map[string]interface{}{"id": "n-1"}}}, nil
	})
	svc := NewGraphService(store, testLogger())

	_, err := svc.PatchNode(context.Background(), testScope, "n-1",
		map[string]interface{}{"content": "updated text"}, "alice")
	require.NoError(t, err)

	assert.Equal(t, false, captured[entities.PropSynced])
	assert.Equal(t, "alice", captured[entities.PropEditedBy])
	assert.NotEmpty(t, captured[entities.PropEditedAt])
	assert.Equal(t, ContentHash("updated text"), captured[entities.PropContentHash])
}

func TestUpdateNodeDoesNotStampSyncState(t *testing.T) {
	var captured map[string]interface{}
	store := namespaceAwareStore(nil, func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
		captured = params["props"].(map[string]interface{})
		return []map[string]interface{}{{"props": map[string]interface{}{"id": "n-1"}}}, nil
	})
	svc := NewGraphService(store, testLogger())

	_, err := svc.UpdateNode(context.Background(), testScope, "n-1", map[string]interface{}{"title": "t"})
	require.NoError(t, err)

	_, stamped := captured[entities.PropSynced]
	assert.False(t, stamped)
}

func TestUpdateNodeDistinguishesMissingNodeFromMissingNamespace(t *testing.T) {
	store := namespaceAwareStore(nil, nil)
	svc := NewGraphService(store, testLogger())

	_, err := svc.UpdateNode(context.Background(), testScope, "ghost", map[string]interface{}{"title": "t"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	empty := &fakeStore{}
	svc = NewGraphService(empty, testLogger())
	_, err = svc.UpdateNode(context.Background(), testScope, "ghost", map[string]interface{}{"title": "t"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNamespaceNotFound(err))
}

func TestQueryNodesCategoryFilterIsAnySemantics(t *testing.T) {
	var countQuery string
	store := namespaceAwareStore(func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
		if strings.Contains(query, "count(n)") {
			countQuery = query
			return []map[string]interface{}{{"total": int64(2)}}, nil
		}
		return []map[string]interface{}{
			{"props": map[string]interface{}{"id": "a", "category": "ADR"}},
			{"props": map[string]interface{}{"id": "b", "category": "Pattern"}},
		}, nil
	}, nil)
	svc := NewGraphService(store, testLogger())

	result, err := svc.QueryNodes(context.Background(), testScope, QueryFilters{
		Categories: []string{"ADR", "Pattern"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalCount)
	assert.Len(t, result.Nodes, 2)
	// ANY of the categories, never all of them.
	assert.Contains(t, countQuery, "n.category IN $categories")
}

func TestQueryNodesSortDirection(t *testing.T) {
	var pageQuery string
	store := namespaceAwareStore(func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
		if strings.Contains(query, "count(n)") {
			return []map[string]interface{}{{"total": int64(0)}}, nil
		}
		pageQuery = query
		return nil, nil
	}, nil)
	svc := NewGraphService(store, testLogger())

	// Newest-first by default.
	_, err := svc.QueryNodes(context.Background(), testScope, QueryFilters{})
	require.NoError(t, err)
	assert.Contains(t, pageQuery, "ORDER BY n.createdAt DESC")

	// An explicit ascending request holds even without an orderBy property.
	_, err = svc.QueryNodes(context.Background(), testScope, QueryFilters{Ascending: true})
	require.NoError(t, err)
	assert.Contains(t, pageQuery, "ORDER BY n.createdAt SKIP")
}

func TestQueryNodesRejectsUnsafePropertyNames(t *testing.T) {
	store := namespaceAwareStore(nil, nil)
	svc := NewGraphService(store, testLogger())

	_, err := svc.QueryNodes(context.Background(), testScope, QueryFilters{
		Equals: map[string]interface{}{"title` OR 1=1": "x"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.QueryNodes(context.Background(), testScope, QueryFilters{
		OrderBy: "createdAt; DROP",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestQueryNodesCapsLimit(t *testing.T) {
	var pageParams map[string]interface{}
	store := namespaceAwareStore(func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
		if strings.Contains(query, "count(n)") {
			return []map[string]interface{}{{"total": int64(0)}}, nil
		}
		pageParams = params
		return nil, nil
	}, nil)
	svc := NewGraphService(store, testLogger())

	_, err := svc.QueryNodes(context.Background(), testScope, QueryFilters{Limit: 100000})
	require.NoError(t, err)
	assert.Equal(t, 500, pageParams["limit"])

	_, err = svc.QueryNodes(context.Background(), testScope, QueryFilters{})
	require.NoError(t, err)
	assert.Equal(t, 50, pageParams["limit"])
}

func TestQueryNodesMissingNamespace(t *testing.T) {
	svc := NewGraphService(&fakeStore{}, testLogger())

	_, err := svc.QueryNodes(context.Background(), testScope, QueryFilters{})
	require.Error(t, err)
	assert.True(t, apperrors.IsNamespaceNotFound(err))
}

func TestCreateRelationshipFailsClosedOnForeignEndpoint(t *testing.T) {
	// Namespace exists but the write matches nothing: one endpoint is outside
	// the namespace.
	store := namespaceAwareStore(nil, nil)
	svc := NewGraphService(store, testLogger())

	_, err := svc.CreateRelationship(context.Background(), testScope, "inside", "outside", "REFERENCES", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "both nodes must exist")
}

func TestCreateRelationshipRejectsInvalidType(t *testing.T) {
	svc := NewGraphService(&fakeStore{}, testLogger())

	_, err := svc.CreateRelationship(context.Background(), testScope, "a", "b", "BAD TYPE", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestDeleteNodeMissingNamespace(t *testing.T) {
	svc := NewGraphService(&fakeStore{}, testLogger())

	err := svc.DeleteNode(context.Background(), testScope, "n-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNamespaceNotFound(err))
}

func TestDeleteNodeAbsentNodeIsNoOp(t *testing.T) {
	store := namespaceAwareStore(nil, func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
		return []map[string]interface{}{{"deleted": int64(0)}}, nil
	})
	svc := NewGraphService(store, testLogger())

	err := svc.DeleteNode(context.Background(), testScope, "ghost")
	assert.NoError(t, err)
}

func TestRunScopedQueryInjectsScopeParams(t *testing.T) {
	var captured map[string]interface{}
	store := &fakeStore{
		runWriteFn: func(query string, params map[string]interface{}) ([]map[string]interface{}, error) {
			captured = params
			return nil, nil
		},
	}
	svc := NewGraphService(store, testLogger())

	_, err := svc.RunScopedQuery(context.Background(), testScope,
		"MATCH (n) RETURN n", map[string]interface{}{"custom": 1})
	require.NoError(t, err)

	assert.Equal(t, "ns-1", captured["namespaceId"])
	assert.Equal(t, "alice", captured["identity"])
	assert.Equal(t, 1, captured["custom"])
}
