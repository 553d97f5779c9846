// Package chat orchestrates the question path: the query is embedded,
// nearby chunks are fetched from the index, and the answer generator
// replies grounded in those chunks.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/answer"
	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/embedding"
)

const defaultTopK = 5

// Config wires the chat dependencies.
type Config struct {
	Embedder Embedder
	Index    Index
	Answerer Answerer
	// TopK caps how many matches are retrieved per question. Zero means 5.
	TopK   int
	Logger *zap.Logger
}

// Service answers one question at a time against whatever has been
// ingested so far.
type Service struct {
	embedder Embedder
	index    Index
	answerer Answerer
	topK     int
	logger   *zap.Logger
}

func NewService(cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		embedder: cfg.Embedder,
		index:    cfg.Index,
		answerer: cfg.Answerer,
		topK:     cfg.TopK,
		logger:   cfg.Logger,
	}
}

// Ask runs the retrieval pipeline for one question. A missing query is
// the only hard error; an unreachable index degrades to answering with
// no retrieved context instead of failing the request.
func (s *Service) Ask(ctx context.Context, query string) (domain.ConversationTurn, error) {
	if strings.TrimSpace(query) == "" {
		return domain.ConversationTurn{}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	start := time.Now()

	res := s.embedder.Generate(ctx, []string{query})
	var vec domain.Vector
	if len(res.Vectors) > 0 {
		vec = res.Vectors[0]
	} else {
		// The query itself did not pass the embeddability rules, so it
		// never reached the scorer. Search with a synthesized vector
		// rather than refusing the question.
		vec = embedding.FallbackVector(query)
	}

	matches, err := s.index.Query(ctx, vec, s.topK)
	if err != nil {
		s.logger.Warn("index query failed, answering without context", zap.Error(err))
		matches = nil
	}
	contextTexts := answer.Assemble(matches)

	text, isFallback := s.answerer.Answer(ctx, query, contextTexts)
	s.logger.Info("question answered",
		zap.Int("matches", len(matches)),
		zap.Bool("fallback", isFallback),
		zap.Duration("took", time.Since(start)))

	return domain.ConversationTurn{Query: query, Answer: text, IsFallback: isFallback}, nil
}
