// Package index defines the vector index contract. The index is an opaque
// approximate-search collaborator: it owns ranking, and the pipeline
// passes its match order through verbatim.
package index

import (
	"context"

	"github.com/tablechat/tablechat/internal/domain"
)

// Client is the vector index surface the pipeline depends on.
//
// Upsert with an empty slice is a no-op. Callers are responsible for
// splitting oversized batches; the client accepts whatever the backing
// index tolerates. Query requires a non-nil vector. Transport failures
// surface as domain.ErrIndexUnavailable and are never swallowed here;
// degrading is the orchestrator's call, not this client's.
type Client interface {
	Upsert(ctx context.Context, vectors []domain.IndexedVector) error
	Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.Match, error)
}

// Pinger is implemented by drivers that can report index reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
