package di

import (
	"context"

	"kgraph-backend/application/ports"
	"kgraph-backend/application/services"
	"kgraph-backend/infrastructure/config"
	"kgraph-backend/infrastructure/directory"
	"kgraph-backend/infrastructure/embedding"
	"kgraph-backend/infrastructure/identity"
	neo4jstore "kgraph-backend/infrastructure/persistence/neo4j"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Store         *neo4jstore.Store
	AccessService *services.AccessService
	GraphService  *services.GraphService
	EventService  *services.EventService
	IngestService *services.IngestService
	SearchService *services.SearchService
}

// Close releases resources held by the container.
func (c *Container) Close(ctx context.Context) error {
	return c.Store.Close(ctx)
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideStore creates the Neo4j-backed graph store
func ProvideStore(cfg *config.Config, logger *zap.Logger) (*neo4jstore.Store, error) {
	return neo4jstore.NewStore(neo4jstore.Config{
		URI:                cfg.Neo4jURI,
		Username:           cfg.Neo4jUsername,
		Password:           cfg.Neo4jPassword,
		Database:           cfg.Neo4jDatabase,
		MaxPoolSize:        cfg.Neo4jMaxPoolSize,
		AcquisitionTimeout: cfg.Neo4jAcquisitionTimeout,
	}, logger)
}

// ProvideGraphStore exposes the store through its port interface
func ProvideGraphStore(store *neo4jstore.Store) ports.GraphStore {
	return store
}

// ProvideIdentityResolver creates the JWT identity resolver
func ProvideIdentityResolver(cfg *config.Config) ports.IdentityResolver {
	return identity.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer)
}

// ProvideTeamDirectory creates the team directory client
func ProvideTeamDirectory(cfg *config.Config, logger *zap.Logger) ports.TeamDirectory {
	return directory.NewHTTPDirectory(cfg.TeamDirectoryURL, logger)
}

// ProvideEmbeddingProvider creates the embedding provider client
func ProvideEmbeddingProvider(cfg *config.Config, logger *zap.Logger) ports.EmbeddingProvider {
	return embedding.NewClient(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, logger)
}

// ProvideAccessService creates the access resolution service
func ProvideAccessService(
	store ports.GraphStore,
	resolver ports.IdentityResolver,
	teamDirectory ports.TeamDirectory,
	logger *zap.Logger,
) *services.AccessService {
	return services.NewAccessService(store, resolver, teamDirectory, logger)
}

// ProvideGraphService creates the scoped graph service
func ProvideGraphService(store ports.GraphStore, logger *zap.Logger) *services.GraphService {
	return services.NewGraphService(store, logger)
}

// ProvideEventService creates the event stream service
func ProvideEventService(store ports.GraphStore, logger *zap.Logger) *services.EventService {
	return services.NewEventService(store, logger)
}

// ProvideIngestService creates the document reconciliation service
func ProvideIngestService(
	store ports.GraphStore,
	graph *services.GraphService,
	embedder ports.EmbeddingProvider,
	cfg *config.Config,
	logger *zap.Logger,
) *services.IngestService {
	return services.NewIngestService(store, graph, embedder, cfg.IngestChunkSize, cfg.SummaryMaxLength, logger)
}

// ProvideSearchService creates the similarity search service
func ProvideSearchService(store ports.GraphStore, logger *zap.Logger) *services.SearchService {
	return services.NewSearchService(store, logger)
}
