package domain

import "time"

// Row is one parsed table row. Columns preserves the source header order
// so that downstream text rendering is deterministic.
type Row struct {
	Columns []string
	Values  map[string]string
}

// Chunk is one unit of source text prepared for embedding. Immutable once
// created: produced by the chunker, consumed once by the embedding
// generator, never mutated.
type Chunk struct {
	ID         string
	Text       string
	SourceRow  int
	SourceFile string
	CreatedAt  time.Time
}
