package ingest

import (
	"context"

	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/embedding"
)

// Embedder turns chunk texts into vectors, degrading instead of failing.
type Embedder interface {
	Generate(ctx context.Context, texts []string) embedding.Result
}

// Index is the upsert side of the vector index.
type Index interface {
	Upsert(ctx context.Context, vectors []domain.IndexedVector) error
}
