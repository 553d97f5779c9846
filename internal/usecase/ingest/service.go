// Package ingest orchestrates the upload path: rows are chunked,
// embedded, and written to the vector index in fixed-size batches.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/chunker"
	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/embedding"
	"github.com/tablechat/tablechat/internal/metrics"
)

const defaultBatchSize = 100

// Config wires the ingestion dependencies.
type Config struct {
	Embedder Embedder
	Index    Index
	// BatchSize caps the number of vectors per upsert call. Zero means 100.
	BatchSize int
	Logger    *zap.Logger
}

// Service runs the ingestion pipeline for one uploaded table at a time.
type Service struct {
	embedder  Embedder
	index     Index
	batchSize int
	logger    *zap.Logger
}

func NewService(cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
	}
}

// Summary reports what one ingestion run accomplished.
type Summary struct {
	// Indexed counts vectors confirmed written to the index.
	Indexed int
	// Chunks counts non-empty chunks produced from the table.
	Chunks int
	// Degraded is true when locally derived fallback vectors were used.
	Degraded bool
}

// Ingest chunks rows, embeds the chunk texts and upserts the results.
// Batches are written sequentially; the first failed batch aborts the
// rest and the error carries how many vectors made it in before the
// failure. There is no retry and no rollback of earlier batches.
func (s *Service) Ingest(ctx context.Context, rows []domain.Row, filename string, mode chunker.Mode) (Summary, error) {
	start := time.Now()

	chunks, err := chunker.Collect(rows, filename, mode)
	if err != nil {
		return Summary{}, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	res := s.embedder.Generate(ctx, texts)
	if res.Degraded {
		s.logger.Warn("embedding degraded, indexing fallback vectors",
			zap.String("filename", filename),
			zap.String("reason", res.Reason))
	}

	vectors := s.pair(chunks, res, filename)
	summary := Summary{Chunks: len(chunks), Degraded: res.Degraded}

	for len(vectors) > 0 {
		n := min(s.batchSize, len(vectors))
		if err := s.index.Upsert(ctx, vectors[:n]); err != nil {
			return summary, fmt.Errorf("upsert after %d vectors: %w", summary.Indexed, err)
		}
		summary.Indexed += n
		metrics.RowsUpsertedTotal.Add(float64(n))
		vectors = vectors[n:]
	}

	s.logger.Info("table ingested",
		zap.String("filename", filename),
		zap.Int("chunks", summary.Chunks),
		zap.Int("indexed", summary.Indexed),
		zap.Bool("degraded", summary.Degraded),
		zap.Duration("took", time.Since(start)))
	return summary, nil
}

// pair lines chunks up with their vectors. On success the generator
// returns vectors only for embeddable texts, in chunk order; when
// degraded it returns one vector per chunk regardless.
func (s *Service) pair(chunks []domain.Chunk, res embedding.Result, filename string) []domain.IndexedVector {
	out := make([]domain.IndexedVector, 0, len(res.Vectors))
	next := 0
	for _, c := range chunks {
		if !res.Degraded && !embedding.Embeddable(c.Text) {
			continue
		}
		if next >= len(res.Vectors) {
			break
		}
		out = append(out, domain.IndexedVector{
			ID:     c.ID,
			Values: res.Vectors[next],
			Metadata: domain.Metadata{
				Text:       c.Text,
				Filename:   filename,
				RowIndex:   c.SourceRow,
				UploadedAt: c.CreatedAt.UTC(),
			},
		})
		next++
	}
	return out
}
