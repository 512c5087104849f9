package services

import (
	"context"
	"fmt"

	"kgraph-backend/application/ports"
	"kgraph-backend/domain/core/entities"
	apperrors "kgraph-backend/pkg/errors"
	"kgraph-backend/pkg/utils"

	"go.uber.org/zap"
)

const (
	// MaxBatchSize bounds one ingest request; larger batches are rejected
	// before any processing starts.
	MaxBatchSize = 500

	// DefaultChunkSize is how many documents go to the embedding provider
	// per call.
	DefaultChunkSize = 20

	// embedContentLimit caps how much of a document's content is sent for
	// embedding.
	embedContentLimit = 2000

	pipelineActor = "document-pipeline"
	embedPurpose  = "document-ingest"
)

// IngestService reconciles batches of externally authored documents into the
// graph. Per-document problems (missing match-only target, embedding failure)
// are warnings inside a successful job; only request-shape problems fail the
// batch.
type IngestService struct {
	store      ports.GraphStore
	graph      *GraphService
	embedder   ports.EmbeddingProvider
	chunkSize  int
	summaryMax int
	logger     *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	store ports.GraphStore,
	graph *GraphService,
	embedder ports.EmbeddingProvider,
	chunkSize int,
	summaryMax int,
	logger *zap.Logger,
) *IngestService {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if summaryMax <= 0 {
		summaryMax = DefaultSummaryMaxLength
	}
	return &IngestService{
		store:      store,
		graph:      graph,
		embedder:   embedder,
		chunkSize:  chunkSize,
		summaryMax: summaryMax,
		logger:     logger,
	}
}

// Ingest processes one document batch under the given scope. Chunks go to the
// embedding provider strictly sequentially to bound concurrent load; a failed
// chunk degrades to vector-less writes and at most one warning for the whole
// batch.
func (s *IngestService) Ingest(ctx context.Context, scope Scope, docs []entities.Document) (*entities.IngestResult, error) {
	if scope.NamespaceID == "" {
		return nil, apperrors.NewValidationError("namespace id is required")
	}
	if len(docs) == 0 {
		return nil, apperrors.NewValidationError("document batch is empty")
	}
	if len(docs) > MaxBatchSize {
		return nil, apperrors.NewValidationError(fmt.Sprintf("document batch exceeds maximum size of %d", MaxBatchSize))
	}

	if _, err := s.graph.EnsureNamespace(ctx, scope.NamespaceID, scope.Identity); err != nil {
		return nil, err
	}

	result := &entities.IngestResult{
		Parsed:   len(docs),
		Total:    len(docs),
		Warnings: []string{},
	}
	addWarning := func(warning string) {
		for _, existing := range result.Warnings {
			if existing == warning {
				return
			}
		}
		result.Warnings = append(result.Warnings, warning)
	}

	vectors := s.embedAll(ctx, docs, result, addWarning)

	for i, doc := range docs {
		if !entities.ValidCategory(doc.Category) {
			addWarning(fmt.Sprintf("document %s has invalid category %q; skipped", doc.ID, doc.Category))
			continue
		}
		if !entities.CheckCanonicalID(doc.Category, doc.ID) {
			// Advisory only; the document is still processed.
			addWarning(fmt.Sprintf("document %s does not match the canonical %s id format", doc.ID, doc.Category))
		}

		props := s.documentProps(doc)
		if vector, ok := vectors[i]; ok {
			props[entities.PropEmbedding] = vector
		}

		var err error
		switch entities.PolicyFor(doc.Category) {
		case entities.PolicyMatchOnly:
			var matched bool
			matched, err = s.enrichExisting(ctx, scope, doc, props)
			if err == nil && !matched {
				addWarning(fmt.Sprintf("no existing %s node for document %s; skipped", doc.Category, doc.ID))
				continue
			}
		default:
			_, err = s.graph.MergeNode(ctx, scope, doc.Category, doc.ID, props, false)
		}
		if err != nil {
			s.logger.Error("Failed to reconcile document",
				zap.String("namespaceID", scope.NamespaceID),
				zap.String("documentID", doc.ID),
				zap.Error(err),
			)
			addWarning(fmt.Sprintf("failed to write document %s", doc.ID))
			continue
		}
		result.Uploaded++
	}

	s.logger.Info("Document batch reconciled",
		zap.String("namespaceID", scope.NamespaceID),
		zap.Int("total", result.Total),
		zap.Int("uploaded", result.Uploaded),
		zap.Int("embedded", result.Embedded),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// embedAll sends the batch through the embedding provider in fixed-size
// sequential chunks and returns the vectors by document index. Any failure is
// non-fatal: the affected chunk proceeds without vectors.
func (s *IngestService) embedAll(ctx context.Context, docs []entities.Document, result *entities.IngestResult, addWarning func(string)) map[int][]float32 {
	vectors := make(map[int][]float32)
	embedWarned := false

	for start := 0; start < len(docs); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(docs) {
			end = len(docs)
		}
		chunk := docs[start:end]

		texts := make([]string, len(chunk))
		for i, doc := range chunk {
			content := truncateRuneSafe(doc.Content, embedContentLimit)
			texts[i] = doc.Title + "\n\n" + content
		}

		embedded, err := s.embedder.Embed(ctx, texts, embedPurpose)
		if err != nil || len(embedded) != len(chunk) {
			if err == nil {
				err = fmt.Errorf("expected %d vectors, got %d", len(chunk), len(embedded))
			}
			s.logger.Warn("Embedding chunk failed, proceeding without vectors",
				zap.Int("chunkStart", start),
				zap.Int("chunkSize", len(chunk)),
				zap.Error(err),
			)
			if !embedWarned {
				addWarning(fmt.Sprintf("embedding unavailable for this batch: %v", err))
				embedWarned = true
			}
			continue
		}

		for i := range chunk {
			vectors[start+i] = embedded[i]
		}
		result.Embedded += len(chunk)
	}
	return vectors
}

// documentProps builds the content-bearing property set for a document,
// including its derived summary and sync state.
func (s *IngestService) documentProps(doc entities.Document) map[string]interface{} {
	contentHash := doc.ContentHash
	if contentHash == "" {
		contentHash = ContentHash(doc.Content)
	}

	props := map[string]interface{}{
		entities.PropContent:     doc.Content,
		entities.PropSummary:     Summarize(doc.Content, s.summaryMax),
		entities.PropContentHash: contentHash,
		entities.PropSynced:      true,
		entities.PropSyncedAt:    utils.NowRFC3339(),
		entities.PropEditedBy:    pipelineActor,
	}
	if doc.Title != "" {
		props["title"] = doc.Title
	}
	if doc.SourcePath != "" {
		props[entities.PropSourcePath] = doc.SourcePath
	}
	for k, v := range doc.Metadata {
		if k == "id" {
			continue
		}
		props[k] = v
	}
	return props
}

// enrichExisting applies the match-only policy: enrich the node when it
// exists, never create it. Fields owned by the node's originating subsystem
// are untouched because only the content-bearing set is merged.
func (s *IngestService) enrichExisting(ctx context.Context, scope Scope, doc entities.Document, props map[string]interface{}) (bool, error) {
	rows, err := s.store.RunWrite(ctx,
		fmt.Sprintf(`MATCH (ns:Namespace {id: $namespaceId, owner: $owner})-[:CONTAINS]->(n:%s {id: $id})
		 SET n += $props, n.updatedAt = $now
		 RETURN n.id AS id`, doc.Category),
		map[string]interface{}{
			"namespaceId": scope.NamespaceID,
			"owner":       scope.Identity,
			"id":          doc.ID,
			"props":       props,
			"now":         utils.NowRFC3339(),
		},
	)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
