package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"kgraph-backend/application/ports"
	"kgraph-backend/domain/core/entities"
	apperrors "kgraph-backend/pkg/errors"

	"go.uber.org/zap"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// defaultSearchCategories is used when the caller names no categories.
var defaultSearchCategories = []string{"Doc"}

// SearchOptions tunes a similarity search.
type SearchOptions struct {
	Limit      int
	Threshold  float64
	Categories []string
}

// SearchHit is one similarity result.
type SearchHit struct {
	Node     *entities.Node `json:"node"`
	Score    float64        `json:"score"`
	Category string         `json:"category"`
}

// SearchService queries per-category vector indexes, restricted to the
// caller's namespace. A category without a maintained index fails only that
// category's sub-query.
type SearchService struct {
	store  ports.GraphStore
	logger *zap.Logger
}

// NewSearchService creates a new search service
func NewSearchService(store ports.GraphStore, logger *zap.Logger) *SearchService {
	return &SearchService{store: store, logger: logger}
}

// Search runs the query vector against each requested category's index,
// unions the namespace-reachable results, filters by threshold, and returns
// them best-first.
func (s *SearchService) Search(ctx context.Context, scope Scope, vector []float32, opts SearchOptions) ([]SearchHit, error) {
	if len(vector) == 0 {
		return nil, apperrors.NewValidationError("query vector is required")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = defaultSearchCategories
	}

	var candidates []SearchHit
	for _, category := range categories {
		if !entities.ValidCategory(category) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid category: %q", category))
		}
		hits, err := s.store.VectorQuery(ctx, indexNameFor(category), vector, limit)
		if err != nil {
			// A category without a maintained index must not abort the
			// other sub-queries.
			s.logger.Warn("Vector sub-query failed",
				zap.String("category", category),
				zap.Error(err),
			)
			continue
		}
		for _, hit := range hits {
			candidates = append(candidates, SearchHit{
				Node:     nodeFromProps(hit.Props),
				Score:    hit.Score,
				Category: category,
			})
		}
	}
	if len(candidates) == 0 {
		return []SearchHit{}, nil
	}

	allowed, err := s.reachableIDs(ctx, scope, candidates)
	if err != nil {
		return nil, err
	}

	results := make([]SearchHit, 0, len(candidates))
	for _, hit := range candidates {
		if !allowed[hit.Node.ID] {
			continue
		}
		if hit.Score < opts.Threshold {
			continue
		}
		results = append(results, hit)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// reachableIDs restricts candidate ids to nodes reachable from the caller's
// namespace root.
func (s *SearchService) reachableIDs(ctx context.Context, scope Scope, candidates []SearchHit) (map[string]bool, error) {
	ids := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, hit := range candidates {
		if hit.Node.ID == "" || seen[hit.Node.ID] {
			continue
		}
		seen[hit.Node.ID] = true
		ids = append(ids, hit.Node.ID)
	}

	rows, err := s.store.Run(ctx,
		`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(n)
		 WHERE n.id IN $ids
		 RETURN n.id AS id`,
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"ids":         ids,
		},
	)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(rows))
	for _, row := range rows {
		if id, ok := row["id"].(string); ok {
			allowed[id] = true
		}
	}
	return allowed, nil
}

// indexNameFor maps a category to its vector index.
func indexNameFor(category string) string {
	return strings.ToLower(category) + "_embedding"
}
