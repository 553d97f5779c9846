package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tablechat/tablechat/internal/domain"
)

// --- Mocks ---

type mockScorer struct {
	batches [][]string
	refs    []string
	score   float64
	err     error
}

func (m *mockScorer) Scores(_ context.Context, reference string, sentences []string) ([]float64, error) {
	m.refs = append(m.refs, reference)
	m.batches = append(m.batches, sentences)
	if m.err != nil {
		return nil, m.err
	}
	scores := make([]float64, len(sentences))
	for i := range scores {
		scores[i] = m.score
	}
	return scores, nil
}

func newTestGenerator(s Scorer) *Generator {
	// Delay of -1 disables the throttle; 0 would take the default 100ms.
	return NewGenerator(s, Config{Delay: -1})
}

// --- Tests ---

func TestEmbeddable(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"hello world, this is valid text", true},
		{"", false},
		{"   ", false},
		{"short", false},
		{"  nine ch  ", false},
		{"http://example.com/some/long/path", false},
		{"https://example.com/page", false},
		{"1234567890", false},
		{"12/03/2024, 45-67.89", false},
		{"123 456 789 012", false},
		{"movie 12345 released", true},
	}
	for _, tt := range tests {
		if got := Embeddable(tt.text); got != tt.want {
			t.Errorf("Embeddable(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestGenerate_DropsInvalidKeepsOrder(t *testing.T) {
	scorer := &mockScorer{score: 0.5}
	g := newTestGenerator(scorer)

	texts := []string{
		"first valid chunk of text",
		"http://skip.me/this",
		"second valid chunk here",
		"123",
	}
	res := g.Generate(context.Background(), texts)

	if res.Degraded {
		t.Fatal("unexpected degraded result")
	}
	if len(res.Vectors) != 2 {
		t.Fatalf("expected 2 vectors (one per valid input), got %d", len(res.Vectors))
	}
	if len(scorer.batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(scorer.batches))
	}
	sent := scorer.batches[0]
	if sent[0] != texts[0] || sent[1] != texts[2] {
		t.Errorf("valid texts sent out of order: %v", sent)
	}
}

func TestGenerate_BatchesOfTen(t *testing.T) {
	scorer := &mockScorer{score: 0.1}
	g := newTestGenerator(scorer)

	texts := make([]string, 23)
	for i := range texts {
		texts[i] = strings.Repeat("valid text ", 3)
	}
	res := g.Generate(context.Background(), texts)

	if len(res.Vectors) != 23 {
		t.Fatalf("expected 23 vectors, got %d", len(res.Vectors))
	}
	if len(scorer.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(scorer.batches))
	}
	for i, want := range []int{10, 10, 3} {
		if len(scorer.batches[i]) != want {
			t.Errorf("batch %d has %d texts, want %d", i, len(scorer.batches[i]), want)
		}
	}
}

func TestGenerate_NoValidInputs(t *testing.T) {
	scorer := &mockScorer{}
	g := newTestGenerator(scorer)

	res := g.Generate(context.Background(), []string{"123", "http://x.test/y"})
	if res.Degraded || len(res.Vectors) != 0 {
		t.Fatalf("expected empty non-degraded result, got %+v", res)
	}
	if len(scorer.batches) != 0 {
		t.Error("scorer should not be called without valid inputs")
	}
}

func TestGenerate_RemoteFailureDegrades(t *testing.T) {
	scorer := &mockScorer{err: errors.New("service down")}
	g := newTestGenerator(scorer)

	texts := []string{"hello world, this is valid text", "12345", "another perfectly valid text"}
	res := g.Generate(context.Background(), texts)

	if !res.Degraded {
		t.Fatal("expected degraded result")
	}
	if res.Reason == "" {
		t.Error("degraded result must carry a reason")
	}
	// One fallback per originally-requested text, invalid ones included.
	if len(res.Vectors) != len(texts) {
		t.Fatalf("expected %d fallback vectors, got %d", len(texts), len(res.Vectors))
	}
	for i, v := range res.Vectors {
		if len(v) != domain.Dimensions {
			t.Fatalf("vector %d has length %d", i, len(v))
		}
		for j, x := range v {
			if x < 0 || x >= 0.1 {
				t.Fatalf("vector %d[%d] = %v outside [0, 0.1)", i, j, x)
			}
		}
	}
}

func TestGenerate_SingleTextFallbackProperty(t *testing.T) {
	scorer := &mockScorer{err: errors.New("unreachable")}
	g := newTestGenerator(scorer)

	res := g.Generate(context.Background(), []string{"hello world, this is valid text"})
	if !res.Degraded || len(res.Vectors) != 1 {
		t.Fatalf("expected exactly one degraded vector, got %+v", res)
	}
	v := res.Vectors[0]
	if len(v) != domain.Dimensions {
		t.Fatalf("vector length = %d, want %d", len(v), domain.Dimensions)
	}
	for j, x := range v {
		if x < 0 || x >= 0.1 {
			t.Fatalf("v[%d] = %v outside [0, 0.1)", j, x)
		}
	}
}

func TestFallbackVector_Deterministic(t *testing.T) {
	a := FallbackVector("same text")
	b := FallbackVector("same text")
	c := FallbackVector("other text")

	for j := range a {
		if a[j] != b[j] {
			t.Fatalf("fallback vectors for identical text diverge at %d", j)
		}
	}
	same := true
	for j := range a {
		if a[j] != c[j] {
			same = false
			break
		}
	}
	if same {
		t.Error("fallback vectors for different texts should differ")
	}
}

func TestDerive_PureInScoreAndLength(t *testing.T) {
	a := Derive(0.42, 57)
	b := Derive(0.42, 57)
	if len(a) != domain.Dimensions {
		t.Fatalf("vector length = %d", len(a))
	}
	for j := range a {
		if a[j] != b[j] {
			t.Fatalf("derivation not deterministic at %d", j)
		}
	}

	diff := Derive(0.42, 58)
	same := true
	for j := range a {
		if a[j] != diff[j] {
			same = false
			break
		}
	}
	if same {
		t.Error("changing length should change the derived vector")
	}
}

func TestGenerate_UsesConfiguredReference(t *testing.T) {
	scorer := &mockScorer{score: 0.2}
	g := NewGenerator(scorer, Config{Reference: "custom anchor sentence", Delay: -1})

	g.Generate(context.Background(), []string{"hello world, this is valid text"})
	if len(scorer.refs) != 1 || scorer.refs[0] != "custom anchor sentence" {
		t.Errorf("reference = %v", scorer.refs)
	}
}
