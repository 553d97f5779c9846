package chat

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/embedding"
)

type stubEmbedder struct {
	result embedding.Result
	texts  []string
}

func (s *stubEmbedder) Generate(_ context.Context, texts []string) embedding.Result {
	s.texts = texts
	return s.result
}

type stubIndex struct {
	matches []domain.Match
	err     error
	vector  domain.Vector
	topK    int
	called  bool
}

func (s *stubIndex) Query(_ context.Context, vector domain.Vector, topK int) ([]domain.Match, error) {
	s.called = true
	s.vector = vector
	s.topK = topK
	return s.matches, s.err
}

type stubAnswerer struct {
	text         string
	fallback     bool
	contextTexts []string
}

func (s *stubAnswerer) Answer(_ context.Context, _ string, contextTexts []string) (string, bool) {
	s.contextTexts = contextTexts
	return s.text, s.fallback
}

func oneVector() embedding.Result {
	return embedding.Result{Vectors: []domain.Vector{make(domain.Vector, domain.Dimensions)}}
}

func TestAskEmptyQuery(t *testing.T) {
	svc := NewService(Config{Embedder: &stubEmbedder{}, Index: &stubIndex{}, Answerer: &stubAnswerer{}})
	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Ask(context.Background(), q); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Ask(%q) err = %v, want ErrInvalidInput", q, err)
		}
	}
}

func TestAskHappyPath(t *testing.T) {
	emb := &stubEmbedder{result: oneVector()}
	idx := &stubIndex{matches: []domain.Match{
		{Text: "A thief steals corporate secrets", Score: 0.91},
		{Text: "Two rival crews plan one last heist", Score: 0.76},
	}}
	ans := &stubAnswerer{text: "It is about a heist.", fallback: false}
	svc := NewService(Config{Embedder: emb, Index: idx, Answerer: ans})

	turn, err := svc.Ask(context.Background(), "what is the movie about?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if emb.texts[0] != "what is the movie about?" {
		t.Errorf("embedded %q, want the query", emb.texts[0])
	}
	if idx.topK != 5 {
		t.Errorf("topK = %d, want default 5", idx.topK)
	}
	want := []string{"A thief steals corporate secrets", "Two rival crews plan one last heist"}
	if len(ans.contextTexts) != len(want) {
		t.Fatalf("context = %q", ans.contextTexts)
	}
	for i := range want {
		if ans.contextTexts[i] != want[i] {
			t.Errorf("context[%d] = %q, want %q", i, ans.contextTexts[i], want[i])
		}
	}
	if turn.Answer != "It is about a heist." || turn.IsFallback {
		t.Errorf("turn = %+v", turn)
	}
}

func TestAskIndexFailureAnswersWithoutContext(t *testing.T) {
	emb := &stubEmbedder{result: oneVector()}
	idx := &stubIndex{err: domain.ErrIndexUnavailable}
	ans := &stubAnswerer{text: "fallback reply", fallback: true}
	svc := NewService(Config{Embedder: emb, Index: idx, Answerer: ans})

	turn, err := svc.Ask(context.Background(), "what is the movie about?")
	if err != nil {
		t.Fatalf("Ask should absorb index failures, got %v", err)
	}
	if len(ans.contextTexts) != 0 {
		t.Errorf("context = %q, want none", ans.contextTexts)
	}
	if !turn.IsFallback {
		t.Error("turn should carry the answerer's fallback flag")
	}
}

func TestAskUnembeddableQueryUsesSynthesizedVector(t *testing.T) {
	// No vectors back: the query failed the embeddability rules.
	emb := &stubEmbedder{result: embedding.Result{}}
	idx := &stubIndex{}
	svc := NewService(Config{Embedder: emb, Index: idx, Answerer: &stubAnswerer{text: "ok"}})

	if _, err := svc.Ask(context.Background(), "1999"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !idx.called {
		t.Fatal("index was never queried")
	}
	if len(idx.vector) != domain.Dimensions {
		t.Errorf("query vector has %d dims, want %d", len(idx.vector), domain.Dimensions)
	}
	if !slices.Equal(idx.vector, embedding.FallbackVector("1999")) {
		t.Error("query vector should be the deterministic fallback for the query text")
	}
}

func TestAskCustomTopK(t *testing.T) {
	idx := &stubIndex{}
	svc := NewService(Config{Embedder: &stubEmbedder{result: oneVector()}, Index: idx, Answerer: &stubAnswerer{text: "ok"}, TopK: 3})
	if _, err := svc.Ask(context.Background(), "anything at all"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if idx.topK != 3 {
		t.Errorf("topK = %d, want 3", idx.topK)
	}
}
