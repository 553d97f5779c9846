// Package embedding converts chunk text into fixed-length vectors.
//
// The remote service scores sentence similarity against a reference
// sentence rather than returning true embeddings, so each vector is
// synthesized from (score, text length). That derivation is deterministic
// and reproducible but is NOT a general-purpose semantic embedding: it
// carries only a weak notion of similarity, sufficient for approximate
// retrieval within this system and nothing more.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/metrics"
)

// DefaultReference anchors the similarity scoring when none is configured.
const DefaultReference = "This is data from a CSV file containing movie information."

const (
	defaultBatchSize = 10
	defaultDelay     = 100 * time.Millisecond
)

// Scorer is the remote similarity-scoring capability.
type Scorer interface {
	Scores(ctx context.Context, reference string, sentences []string) ([]float64, error)
}

// Result is the outcome of one Generate call. Degraded output is tagged,
// not hidden behind an error: callers must handle the branch but the
// pipeline always proceeds.
type Result struct {
	Vectors []domain.Vector
	// Degraded is true when the remote service failed and Vectors holds
	// one deterministic fallback per originally-requested text.
	Degraded bool
	// Reason names the degradation cause; empty on the success path.
	Reason string
}

// Generator produces embeddings in throttled batches.
type Generator struct {
	scorer    Scorer
	reference string
	batchSize int
	delay     time.Duration
	logger    *zap.Logger
}

// Config holds generator settings. Zero BatchSize and Delay take the
// defaults; Delay is the deliberate inter-batch throttle for the remote
// service's rate limit, not an incidental wait.
type Config struct {
	Reference string
	BatchSize int
	Delay     time.Duration
	Logger    *zap.Logger
}

// NewGenerator creates an embedding generator.
func NewGenerator(scorer Scorer, cfg Config) *Generator {
	g := &Generator{
		scorer:    scorer,
		reference: cfg.Reference,
		batchSize: cfg.BatchSize,
		delay:     cfg.Delay,
		logger:    cfg.Logger,
	}
	if g.reference == "" {
		g.reference = DefaultReference
	}
	if g.batchSize <= 0 {
		g.batchSize = defaultBatchSize
	}
	if g.delay == 0 {
		g.delay = defaultDelay
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// bareTokenRE matches text made solely of digits, whitespace, and
// separators: numeric codes and IDs with no semantic signal.
var bareTokenRE = regexp.MustCompile(`^[\d\s\-/.,]+$`)

// Embeddable reports whether a text is worth spending remote embedding
// budget on. Degenerate rows (short fragments, URLs, bare numeric tokens)
// are dropped before batching.
func Embeddable(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 10 {
		return false
	}
	if strings.HasPrefix(trimmed, "http") {
		return false
	}
	return !bareTokenRE.MatchString(trimmed)
}

// Generate embeds the valid subset of texts, one vector per valid input in
// input order. Invalid texts are silently dropped. On any remote failure
// the call does not error: it returns one deterministic fallback vector
// per originally-requested text, tagged Degraded.
func (g *Generator) Generate(ctx context.Context, texts []string) Result {
	valid := make([]string, 0, len(texts))
	for _, t := range texts {
		if Embeddable(t) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return Result{}
	}

	vectors := make([]domain.Vector, 0, len(valid))
	for start := 0; start < len(valid); start += g.batchSize {
		if start > 0 {
			if err := g.throttle(ctx); err != nil {
				return g.degrade(texts, err)
			}
		}

		end := min(start+g.batchSize, len(valid))
		batch := valid[start:end]

		scores, err := g.scorer.Scores(ctx, g.reference, batch)
		if err != nil {
			metrics.EmbeddingBatchesTotal.WithLabelValues("error").Inc()
			return g.degrade(texts, err)
		}
		metrics.EmbeddingBatchesTotal.WithLabelValues("success").Inc()

		for i, score := range scores {
			vectors = append(vectors, Derive(score, len(batch[i])))
		}
	}

	return Result{Vectors: vectors}
}

// throttle waits out the inter-batch delay, honoring cancellation.
func (g *Generator) throttle(ctx context.Context) error {
	timer := time.NewTimer(g.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *Generator) degrade(texts []string, cause error) Result {
	g.logger.Warn("similarity service unavailable, producing fallback vectors",
		zap.Int("texts", len(texts)),
		zap.Error(cause),
	)
	metrics.EmbeddingFallbacksTotal.Add(float64(len(texts)))

	vectors := make([]domain.Vector, len(texts))
	for i, t := range texts {
		vectors[i] = FallbackVector(t)
	}
	return Result{Vectors: vectors, Degraded: true, Reason: cause.Error()}
}

// Derive synthesizes a vector from a similarity score and the byte length
// of the scored text. Pure in (score, length): identical inputs always
// yield identical vectors.
func Derive(score float64, length int) domain.Vector {
	v := make(domain.Vector, domain.Dimensions)
	for j := range v {
		v[j] = float32((score + math.Sin(float64(j)*float64(length)*0.01)) * 0.1)
	}
	return v
}

// FallbackVector returns the degraded-mode vector for a text: values
// uniform in [0, 0.1), seeded from the text so repeated calls agree.
func FallbackVector(text string) domain.Vector {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make(domain.Vector, domain.Dimensions)
	for j := range v {
		v[j] = float32(rng.Float64() * 0.1)
	}
	return v
}
