package chat

import (
	"context"

	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/embedding"
)

// Embedder turns the query into a vector, degrading instead of failing.
type Embedder interface {
	Generate(ctx context.Context, texts []string) embedding.Result
}

// Index is the query side of the vector index.
type Index interface {
	Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.Match, error)
}

// Answerer produces the reply text. The bool reports whether the reply
// is a locally built fallback rather than a model completion.
type Answerer interface {
	Answer(ctx context.Context, query string, contextTexts []string) (string, bool)
}
