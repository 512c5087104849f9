package neo4j

import (
	"context"
	"fmt"
	"time"

	"kgraph-backend/application/ports"
	apperrors "kgraph-backend/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.uber.org/zap"
)

// Config holds connection settings for the backing graph store.
type Config struct {
	URI                string
	Username           string
	Password           string
	Database           string
	MaxPoolSize        int
	AcquisitionTimeout time.Duration
}

// Store implements ports.GraphStore on top of the Neo4j driver. One Store owns
// one pooled driver; sessions are acquired per operation and released on every
// exit path. Connection acquisition waits at most AcquisitionTimeout before
// failing with an UNAVAILABLE error instead of queueing indefinitely.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewStore creates a Store with a bounded connection pool.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 10
	}
	if cfg.AcquisitionTimeout <= 0 {
		cfg.AcquisitionTimeout = 5 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *config.Config) {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
			c.ConnectionAcquisitionTimeout = cfg.AcquisitionTimeout
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	logger.Info("Graph store initialized",
		zap.String("uri", cfg.URI),
		zap.Int("maxPoolSize", cfg.MaxPoolSize),
	)

	return &Store{
		driver:   driver,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

// Run executes a read statement and returns its rows.
func (s *Store) Run(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, s.mapError("run", err)
	}
	return collectRows(ctx, result)
}

// RunWrite executes a write statement and returns its rows.
func (s *Store) RunWrite(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, s.mapError("runWrite", err)
	}
	return collectRows(ctx, result)
}

// ExecuteBatch executes all statements inside one explicit transaction. Either
// every statement commits or none does.
func (s *Store) ExecuteBatch(ctx context.Context, stmts []ports.Statement) ([][]map[string]interface{}, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		all := make([][]map[string]interface{}, 0, len(stmts))
		for _, stmt := range stmts {
			result, err := tx.Run(ctx, stmt.Query, stmt.Params)
			if err != nil {
				return nil, err
			}
			rows, err := collectTxRows(ctx, result)
			if err != nil {
				return nil, err
			}
			all = append(all, rows)
		}
		return all, nil
	})
	if err != nil {
		return nil, s.mapError("executeBatch", err)
	}
	return out.([][]map[string]interface{}), nil
}

// VectorQuery queries the named vector index for the nearest nodes.
func (s *Store) VectorQuery(ctx context.Context, index string, vector []float32, limit int) ([]ports.VectorHit, error) {
	rows, err := s.Run(ctx,
		`CALL db.index.vector.queryNodes($index, $limit, $vector)
		 YIELD node, score
		 RETURN properties(node) AS props, score`,
		map[string]interface{}{
			"index":  index,
			"limit":  limit,
			"vector": vector,
		},
	)
	if err != nil {
		return nil, err
	}

	hits := make([]ports.VectorHit, 0, len(rows))
	for _, row := range rows {
		hit := ports.VectorHit{}
		if props, ok := row["props"].(map[string]interface{}); ok {
			hit.Props = props
		}
		if score, ok := row["score"].(float64); ok {
			hit.Score = score
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close tears down the driver and its connection pool.
func (s *Store) Close(ctx context.Context) error {
	s.logger.Info("Closing graph store")
	return s.driver.Close(ctx)
}

// mapError converts driver errors into the application taxonomy. Connectivity
// problems, including pool-acquisition timeouts, surface as UNAVAILABLE so the
// caller can retry; everything else is passed through wrapped.
func (s *Store) mapError(operation string, err error) error {
	if neo4j.IsConnectivityError(err) {
		s.logger.Error("Graph store unreachable",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return apperrors.NewUnavailableError("graph-store", err)
	}
	return fmt.Errorf("graph store %s failed: %w", operation, err)
}

func collectRows(ctx context.Context, result neo4j.ResultWithContext) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	for result.Next(ctx) {
		rows = append(rows, coerceRow(result.Record().AsMap()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to consume result: %w", err)
	}
	return rows, nil
}

func collectTxRows(ctx context.Context, result neo4j.ResultWithContext) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	for result.Next(ctx) {
		rows = append(rows, coerceRow(result.Record().AsMap()))
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// coerceRow flattens driver-specific value types so callers only see plain
// maps and scalars.
func coerceRow(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		out[k] = coerceValue(v)
	}
	return out
}

func coerceValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case dbtype.Node:
		return tv.Props
	case dbtype.Relationship:
		return tv.Props
	case []interface{}:
		coerced := make([]interface{}, len(tv))
		for i, item := range tv {
			coerced[i] = coerceValue(item)
		}
		return coerced
	default:
		return v
	}
}
