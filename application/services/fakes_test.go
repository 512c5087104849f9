package services

import (
	"context"

	"kgraph-backend/application/ports"

	"go.uber.org/zap"
)

// recordedCall captures one statement sent to the store.
type recordedCall struct {
	Query  string
	Params map[string]interface{}
}

// fakeStore is a closure-configurable GraphStore. Handlers receive every
// statement in order; unconfigured methods return no rows.
type fakeStore struct {
	runFn      func(query string, params map[string]interface{}) ([]map[string]interface{}, error)
	runWriteFn func(query string, params map[string]interface{}) ([]map[string]interface{}, error)
	vectorFn   func(index string, vector []float32, limit int) ([]ports.VectorHit, error)

	reads   []recordedCall
	writes  []recordedCall
	batches [][]recordedCall
}

func (f *fakeStore) Run(_ context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	f.reads = append(f.reads, recordedCall{Query: query, Params: params})
	if f.runFn != nil {
		return f.runFn(query, params)
	}
	return nil, nil
}

func (f *fakeStore) RunWrite(_ context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	f.writes = append(f.writes, recordedCall{Query: query, Params: params})
	if f.runWriteFn != nil {
		return f.runWriteFn(query, params)
	}
	return nil, nil
}

func (f *fakeStore) ExecuteBatch(ctx context.Context, stmts []ports.Statement) ([][]map[string]interface{}, error) {
	batch := make([]recordedCall, 0, len(stmts))
	for _, stmt := range stmts {
		batch = append(batch, recordedCall{Query: stmt.Query, Params: stmt.Params})
	}
	f.batches = append(f.batches, batch)

	results := make([][]map[string]interface{}, 0, len(stmts))
	for _, stmt := range stmts {
		rows, err := f.RunWrite(ctx, stmt.Query, stmt.Params)
		if err != nil {
			return nil, err
		}
		results = append(results, rows)
	}
	return results, nil
}

func (f *fakeStore) VectorQuery(_ context.Context, index string, vector []float32, limit int) ([]ports.VectorHit, error) {
	if f.vectorFn != nil {
		return f.vectorFn(index, vector, limit)
	}
	return nil, nil
}

func (f *fakeStore) Close(context.Context) error { return nil }

// fakeResolver maps credentials to identities.
type fakeResolver struct {
	identities map[string]string
	err        error
}

func (f *fakeResolver) Resolve(_ context.Context, credential string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.identities[credential], nil
}

// fakeDirectory is a static team directory.
type fakeDirectory struct {
	teams   map[string]string // namespaceID -> teamID
	members map[string]string // teamID + "/" + identity -> role
	err     error
}

func (f *fakeDirectory) TeamForNamespace(_ context.Context, namespaceID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.teams[namespaceID], nil
}

func (f *fakeDirectory) Membership(_ context.Context, teamID, identity string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.members[teamID+"/"+identity], nil
}

// fakeEmbedder returns a fixed-size vector per text, or fails entirely.
type fakeEmbedder struct {
	err   error
	calls [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1.0}
	}
	return vectors, nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
