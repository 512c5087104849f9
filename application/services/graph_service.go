package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"kgraph-backend/application/ports"
	"kgraph-backend/domain/core/entities"
	apperrors "kgraph-backend/pkg/errors"
	"kgraph-backend/pkg/utils"

	"go.uber.org/zap"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

var propertyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// QueryFilters describes a filtered node listing. Multiple categories mean
// the node may carry ANY of them, not all.
type QueryFilters struct {
	Categories []string
	Equals     map[string]interface{}
	Limit      int
	Offset     int
	OrderBy    string
	// Ascending flips the sort direction; listings are newest-first by
	// default.
	Ascending bool
}

// QueryResult is one page of a filtered listing. TotalCount and Nodes are two
// independent reads over the same predicate; under concurrent writes they may
// disagree slightly.
type QueryResult struct {
	Nodes      []*entities.Node `json:"nodes"`
	TotalCount int              `json:"totalCount"`
	ElapsedMS  int64            `json:"elapsedTime"`
}

// MergeResult reports the outcome of an upsert.
type MergeResult struct {
	ID    string `json:"id"`
	IsNew bool   `json:"isNew"`
}

// GraphService is the tenant-scoped CRUD engine. Every operation injects the
// (namespace, effective identity) scope into the statement it runs, so a node
// outside the caller's namespace is unreachable even by exact id.
type GraphService struct {
	store  ports.GraphStore
	logger *zap.Logger
}

// NewGraphService creates a new graph service
func NewGraphService(store ports.GraphStore, logger *zap.Logger) *GraphService {
	return &GraphService{store: store, logger: logger}
}

// EnsureNamespace performs the "namespace absent → created with caller as
// owner" transition. It is called before the first write into a namespace and
// is a no-op when the root already exists.
func (s *GraphService) EnsureNamespace(ctx context.Context, namespaceID, owner string) (bool, error) {
	now := utils.NowRFC3339()
	rows, err := s.store.RunWrite(ctx,
		`MERGE (ns:Namespace {id: $namespaceId})
		 ON CREATE SET ns.owner = $owner, ns.createdAt = $now
		 RETURN ns.createdAt = $now AS created`,
		map[string]interface{}{
			"namespaceId": namespaceID,
			"owner":       owner,
			"now":         now,
		},
	)
	if err != nil {
		return false, err
	}
	created := len(rows) > 0 && rows[0]["created"] == true
	if created {
		s.logger.Info("Namespace created",
			zap.String("namespaceID", namespaceID),
			zap.String("owner", owner),
		)
	}
	return created, nil
}

// CreateNode creates a typed node under the namespace root. The id is taken
// from the property bag when supplied, generated otherwise, and always
// stripped from the bag before the write.
func (s *GraphService) CreateNode(ctx context.Context, scope Scope, category string, data map[string]interface{}) (*entities.Node, error) {
	if !entities.ValidCategory(category) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid category: %q", category))
	}

	id, props := splitID(data)
	if id == "" {
		id = entities.GenerateNodeID(category)
	}

	rows, err := s.store.RunWrite(ctx,
		fmt.Sprintf(`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})
		 CREATE (n:%s {id: $id})
		 SET n += $props, n.category = $category, n.createdAt = $now, n.updatedAt = $now
		 CREATE (ns)-[:CONTAINS]->(n)
		 RETURN properties(n) AS props`, category),
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"id":          id,
			"category":    category,
			"props":       props,
			"now":         utils.NowRFC3339(),
		},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNamespaceNotFoundError(scope.NamespaceID)
	}

	node := nodeFromProps(rows[0]["props"])
	s.logger.Info("Node created",
		zap.String("namespaceID", scope.NamespaceID),
		zap.String("category", category),
		zap.String("nodeID", node.ID),
	)
	return node, nil
}

// GetNode returns the node with the given id, or nil when no node in the
// namespace carries it. Not found is not an error here.
func (s *GraphService) GetNode(ctx context.Context, scope Scope, id string) (*entities.Node, error) {
	rows, err := s.store.Run(ctx,
		`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(n {id: $id})
		 RETURN properties(n) AS props`,
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"id":          id,
		},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return nodeFromProps(rows[0]["props"]), nil
}

// MergeNode upserts a node by (category, id) under the namespace as one
// atomic statement; a read-then-write here would duplicate nodes under
// concurrent callers. On match the new properties merge over existing ones,
// nothing is deleted. With incrementUsage the usage counter advances on every
// merge.
func (s *GraphService) MergeNode(ctx context.Context, scope Scope, category, id string, data map[string]interface{}, incrementUsage bool) (MergeResult, error) {
	if !entities.ValidCategory(category) {
		return MergeResult{}, apperrors.NewValidationError(fmt.Sprintf("invalid category: %q", category))
	}
	if id == "" {
		return MergeResult{}, apperrors.NewValidationError("id is required for merge")
	}

	_, props := splitID(data)

	onCreate := "n.category = $category, n.createdAt = $now"
	onMatch := "n.updatedAt = $now"
	if incrementUsage {
		onCreate += ", n.usageCount = 1, n.lastUsedAt = $now"
		onMatch += ", n.usageCount = coalesce(n.usageCount, 0) + 1, n.lastUsedAt = $now"
	}

	rows, err := s.store.RunWrite(ctx,
		fmt.Sprintf(`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})
		 MERGE (ns)-[:CONTAINS]->(n:%s {id: $id})
		 ON CREATE SET %s
		 ON MATCH SET %s
		 SET n += $props, n.updatedAt = $now
		 RETURN n.createdAt = $now AS isNew`, category, onCreate, onMatch),
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"id":          id,
			"category":    category,
			"props":       props,
			"now":         utils.NowRFC3339(),
		},
	)
	if err != nil {
		return MergeResult{}, err
	}
	if len(rows) == 0 {
		return MergeResult{}, apperrors.NewNamespaceNotFoundError(scope.NamespaceID)
	}

	isNew, _ := rows[0]["isNew"].(bool)
	return MergeResult{ID: id, IsNew: isNew}, nil
}

// UpdateNode merges partial fields over an existing node.
func (s *GraphService) UpdateNode(ctx context.Context, scope Scope, id string, partial map[string]interface{}) (*entities.Node, error) {
	_, props := splitID(partial)
	return s.applyUpdate(ctx, scope, id, props)
}

// PatchNode merges partial fields and stamps sync state: the node becomes
// unsynced, the edit is attributed to the actor, and a content hash is
// computed when the update carries content.
func (s *GraphService) PatchNode(ctx context.Context, scope Scope, id string, partial map[string]interface{}, actor string) (*entities.Node, error) {
	_, props := splitID(partial)
	props[entities.PropSynced] = false
	props[entities.PropEditedAt] = utils.NowRFC3339()
	props[entities.PropEditedBy] = actor
	if content, ok := props[entities.PropContent].(string); ok {
		props[entities.PropContentHash] = ContentHash(content)
	}
	return s.applyUpdate(ctx, scope, id, props)
}

func (s *GraphService) applyUpdate(ctx context.Context, scope Scope, id string, props map[string]interface{}) (*entities.Node, error) {
	rows, err := s.store.RunWrite(ctx,
		`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(n {id: $id})
		 SET n += $props, n.updatedAt = $now
		 RETURN properties(n) AS props`,
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"id":          id,
			"props":       props,
			"now":         utils.NowRFC3339(),
		},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if err := s.requireNamespace(ctx, scope); err != nil {
			return nil, err
		}
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("node %s", id))
	}
	return nodeFromProps(rows[0]["props"]), nil
}

// DeleteNode detach-deletes the node and all of its relationships. Deleting a
// node that does not exist is not distinguished from a no-op.
func (s *GraphService) DeleteNode(ctx context.Context, scope Scope, id string) error {
	rows, err := s.store.RunWrite(ctx,
		`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(n {id: $id})
		 DETACH DELETE n
		 RETURN count(*) AS deleted`,
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"id":          id,
		},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 || toInt(rows[0]["deleted"]) == 0 {
		// Only the missing-root case is an error.
		return s.requireNamespace(ctx, scope)
	}
	s.logger.Info("Node deleted",
		zap.String("namespaceID", scope.NamespaceID),
		zap.String("nodeID", id),
	)
	return nil
}

// QueryNodes runs a filtered listing. The count and the page are independent
// reads over the same predicate.
func (s *GraphService) QueryNodes(ctx context.Context, scope Scope, filters QueryFilters) (*QueryResult, error) {
	if err := s.requireNamespace(ctx, scope); err != nil {
		return nil, err
	}

	start := time.Now()

	params := map[string]interface{}{
		"namespaceId": scope.NamespaceID,
		"owner":       scope.Identity,
	}

	var conditions []string
	if len(filters.Categories) > 0 {
		for _, category := range filters.Categories {
			if !entities.ValidCategory(category) {
				return nil, apperrors.NewValidationError(fmt.Sprintf("invalid category: %q", category))
			}
		}
		conditions = append(conditions, "n.category IN $categories")
		params["categories"] = filters.Categories
	}
	i := 0
	for key, value := range filters.Equals {
		if !propertyPattern.MatchString(key) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid property name: %q", key))
		}
		pk := fmt.Sprintf("fk%d", i)
		pv := fmt.Sprintf("fv%d", i)
		conditions = append(conditions, fmt.Sprintf("n[$%s] = $%s", pk, pv))
		params[pk] = key
		params[pv] = value
		i++
	}

	match := `MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(n)`
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countRows, err := s.store.Run(ctx, match+where+` RETURN count(n) AS total`, params)
	if err != nil {
		return nil, err
	}
	total := 0
	if len(countRows) > 0 {
		total = toInt(countRows[0]["total"])
	}

	orderBy := filters.OrderBy
	if orderBy == "" {
		orderBy = "createdAt"
	}
	if !propertyPattern.MatchString(orderBy) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid orderBy property: %q", orderBy))
	}
	direction := " DESC"
	if filters.Ascending {
		direction = ""
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	params["limit"] = limit
	params["offset"] = filters.Offset

	pageRows, err := s.store.Run(ctx,
		match+where+fmt.Sprintf(` RETURN properties(n) AS props ORDER BY n.%s%s SKIP $offset LIMIT $limit`, orderBy, direction),
		params,
	)
	if err != nil {
		return nil, err
	}

	nodes := make([]*entities.Node, 0, len(pageRows))
	for _, row := range pageRows {
		nodes = append(nodes, nodeFromProps(row["props"]))
	}

	return &QueryResult{
		Nodes:      nodes,
		TotalCount: total,
		ElapsedMS:  time.Since(start).Milliseconds(),
	}, nil
}

// CreateRelationship creates a typed edge between two nodes that both resolve
// within the namespace. If either endpoint is outside the namespace nothing
// is written.
func (s *GraphService) CreateRelationship(ctx context.Context, scope Scope, fromID, toID, relType string, props map[string]interface{}) (*entities.Relationship, error) {
	if !entities.ValidRelationshipType(relType) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid relationship type: %q", relType))
	}
	if props == nil {
		props = map[string]interface{}{}
	}

	now := utils.NowRFC3339()
	rows, err := s.store.RunWrite(ctx,
		fmt.Sprintf(`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(a {id: $fromId})
		 MATCH (ns)-[:CONTAINS]->(b {id: $toId})
		 CREATE (a)-[r:%s]->(b)
		 SET r += $props, r.createdAt = $now
		 RETURN a.id AS fromId, b.id AS toId, type(r) AS relType, properties(r) AS props`, relType),
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"fromId":      fromID,
			"toId":        toID,
			"props":       props,
			"now":         now,
		},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if err := s.requireNamespace(ctx, scope); err != nil {
			return nil, err
		}
		return nil, apperrors.NewValidationError("both nodes must exist within the namespace")
	}
	return relationshipFromRow(rows[0]), nil
}

// GetRelationships returns the edges touching a node, in either direction,
// restricted to endpoints inside the namespace. An empty relType matches all
// types.
func (s *GraphService) GetRelationships(ctx context.Context, scope Scope, nodeID, relType string) ([]*entities.Relationship, error) {
	typeFilter := ""
	if relType != "" {
		if !entities.ValidRelationshipType(relType) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid relationship type: %q", relType))
		}
		typeFilter = ":" + relType
	}

	rows, err := s.store.Run(ctx,
		fmt.Sprintf(`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(n {id: $nodeId})
		 MATCH (n)-[r%s]-(m)
		 WHERE (ns)-[:CONTAINS]->(m)
		 RETURN startNode(r).id AS fromId, endNode(r).id AS toId, type(r) AS relType, properties(r) AS props`, typeFilter),
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"nodeId":      nodeID,
		},
	)
	if err != nil {
		return nil, err
	}

	rels := make([]*entities.Relationship, 0, len(rows))
	for _, row := range rows {
		rels = append(rels, relationshipFromRow(row))
	}
	return rels, nil
}

// DeleteRelationship removes the typed edge between two nodes in the
// namespace.
func (s *GraphService) DeleteRelationship(ctx context.Context, scope Scope, fromID, toID, relType string) error {
	if !entities.ValidRelationshipType(relType) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid relationship type: %q", relType))
	}

	_, err := s.store.RunWrite(ctx,
		fmt.Sprintf(`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(a {id: $fromId})
		 MATCH (ns)-[:CONTAINS]->(b {id: $toId})
		 MATCH (a)-[r:%s]->(b)
		 DELETE r`, relType),
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"fromId":      fromID,
			"toId":        toID,
		},
	)
	return err
}

// RunScopedQuery executes an arbitrary statement with the namespace and
// identity parameters injected. This is a narrow trust boundary for advanced
// callers who also control the statement text; it is not a general public
// API, and a statement that ignores $namespaceId can reach nothing outside
// what the store itself exposes to it.
func (s *GraphService) RunScopedQuery(ctx context.Context, scope Scope, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	merged := make(map[string]interface{}, len(params)+2)
	for k, v := range params {
		merged[k] = v
	}
	merged["namespaceId"] = scope.NamespaceID
	merged["identity"] = scope.Identity
	return s.store.RunWrite(ctx, query, merged)
}

// requireNamespace fails with NamespaceNotFound when the scope does not
// resolve to an existing namespace root.
func (s *GraphService) requireNamespace(ctx context.Context, scope Scope) error {
	rows, err := s.store.Run(ctx,
		`MATCH (ns:Namespace {id: $namespaceId, owner: $owner}) RETURN ns.id AS id`,
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
		},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperrors.NewNamespaceNotFoundError(scope.NamespaceID)
	}
	return nil
}

// ContentHash computes the canonical hash of a content field.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// splitID separates the id from a property bag, returning a copy of the bag
// without it.
func splitID(data map[string]interface{}) (string, map[string]interface{}) {
	props := make(map[string]interface{}, len(data))
	id := ""
	for k, v := range data {
		if k == "id" {
			if s, ok := v.(string); ok {
				id = s
			}
			continue
		}
		props[k] = v
	}
	return id, props
}

// nodeFromProps rebuilds a Node from a stored property map.
func nodeFromProps(value interface{}) *entities.Node {
	props, _ := value.(map[string]interface{})
	if props == nil {
		props = map[string]interface{}{}
	}

	node := &entities.Node{Props: make(map[string]interface{}, len(props))}
	for k, v := range props {
		switch k {
		case "id":
			node.ID, _ = v.(string)
		case "category":
			node.Category, _ = v.(string)
		case "createdAt":
			if s, ok := v.(string); ok {
				node.CreatedAt = utils.ParseRFC3339(s)
			}
		case "updatedAt":
			if s, ok := v.(string); ok {
				node.UpdatedAt = utils.ParseRFC3339(s)
			}
		default:
			node.Props[k] = v
		}
	}
	return node
}

func relationshipFromRow(row map[string]interface{}) *entities.Relationship {
	rel := &entities.Relationship{}
	rel.FromID, _ = row["fromId"].(string)
	rel.ToID, _ = row["toId"].(string)
	rel.Type, _ = row["relType"].(string)
	if props, ok := row["props"].(map[string]interface{}); ok {
		rel.Props = make(map[string]interface{}, len(props))
		for k, v := range props {
			if k == "createdAt" {
				if s, ok := v.(string); ok {
					rel.CreatedAt = utils.ParseRFC3339(s)
				}
				continue
			}
			rel.Props[k] = v
		}
	}
	return rel
}

func toInt(v interface{}) int {
	switch tv := v.(type) {
	case int:
		return tv
	case int64:
		return int(tv)
	case float64:
		return int(tv)
	default:
		return 0
	}
}
