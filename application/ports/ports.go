package ports

import "context"

// Statement is one parameterized statement for the backing graph store.
type Statement struct {
	Query  string
	Params map[string]interface{}
}

// VectorHit is one result from a vector-index query: the matched node's
// properties and its similarity score.
type VectorHit struct {
	Props map[string]interface{}
	Score float64
}

// GraphStore is the contract the core consumes from the backing graph engine:
// statement execution returning rows, a multi-statement unit of work, a
// per-category vector-similarity index query, and explicit teardown. Every
// method is an I/O boundary; connectivity failures surface as UNAVAILABLE
// errors from the implementation.
type GraphStore interface {
	// Run executes a read statement and returns its rows.
	Run(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error)

	// RunWrite executes a write statement and returns its rows.
	RunWrite(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error)

	// ExecuteBatch executes all statements in one unit of work and returns
	// the rows of each statement in order. Either all statements commit or
	// none do.
	ExecuteBatch(ctx context.Context, stmts []Statement) ([][]map[string]interface{}, error)

	// VectorQuery queries the named vector index for the nearest nodes.
	VectorQuery(ctx context.Context, index string, vector []float32, limit int) ([]VectorHit, error)

	// Close tears down the underlying connection pool.
	Close(ctx context.Context) error
}

// IdentityResolver turns a bearer credential into an authenticated identity.
// Malformed or too-short credentials must be rejected without a remote call.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

// TeamDirectory is the external team-membership directory.
type TeamDirectory interface {
	// TeamForNamespace returns the team id associated with a namespace, or
	// "" when the namespace has no team.
	TeamForNamespace(ctx context.Context, namespaceID string) (string, error)

	// Membership returns the member's role within a team, or "" when the
	// identity is not a member.
	Membership(ctx context.Context, teamID, identity string) (string, error)
}

// EmbeddingProvider computes embedding vectors for a batch of texts. It may
// fail entirely; callers treat any failure as non-fatal to the surrounding
// batch.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string, purpose string) ([][]float32, error)
}
