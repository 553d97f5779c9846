// Package chunker turns parsed table rows into self-contained text chunks
// ready for embedding.
package chunker

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/tablechat/tablechat/internal/domain"
)

// Mode selects the chunking policy.
type Mode string

const (
	// ModeRaw concatenates every non-empty cell value of a row.
	ModeRaw Mode = "raw"
	// ModeStructured renders `Header: value` pairs with a row ordinal,
	// skipping denylisted columns and placeholder values. Meant for
	// typed ingestion rather than raw CSV dumps.
	ModeStructured Mode = "structured"
)

// ParseMode resolves a user-supplied mode name. Empty means raw.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeStructured:
		return ModeStructured, nil
	default:
		return "", fmt.Errorf("%w: unknown chunking mode %q", domain.ErrInvalidInput, s)
	}
}

// deniedColumns are header fragments whose values carry no semantic signal
// (links, identifiers, dates). Matched case-insensitively as substrings.
var deniedColumns = []string{"url", "link", "image", "poster", "id", "date"}

// quoteCleaner rewrites double quotes into single quotes. Chunk text must
// embed inside a quoted JSON string without escaping: the similarity
// service's wire format depends on it. A hard invariant for every mode.
var quoteCleaner = strings.NewReplacer(`"`, `'`)

// Chunks returns a lazy, restartable sequence of chunks for the given rows.
// Rows that render to an empty string are skipped. Each restart yields
// fresh chunk IDs; IDs are content-independent by design.
func Chunks(rows []domain.Row, filename string, mode Mode) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		for i, row := range rows {
			var text string
			switch mode {
			case ModeStructured:
				text = renderStructured(row, i)
			default:
				text = renderRaw(row)
			}
			if text == "" {
				continue
			}
			chunk := domain.Chunk{
				ID:         domain.NewID(),
				Text:       text,
				SourceRow:  i,
				SourceFile: filename,
				CreatedAt:  time.Now().UTC(),
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// Collect materializes the full chunk sequence. Returns ErrEmptyTable when
// no row survives cleaning: callers must not silently proceed on an empty
// table.
func Collect(rows []domain.Row, filename string, mode Mode) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for c := range Chunks(rows, filename, mode) {
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyTable
	}
	return chunks, nil
}

func renderRaw(row domain.Row) string {
	parts := make([]string, 0, len(row.Columns))
	for _, col := range row.Columns {
		if v := row.Values[col]; v != "" {
			parts = append(parts, v)
		}
	}
	joined := strings.TrimSpace(strings.Join(parts, " "))
	return quoteCleaner.Replace(joined)
}

func renderStructured(row domain.Row, index int) string {
	parts := make([]string, 0, len(row.Columns))
	for _, col := range row.Columns {
		if deniedColumn(col) {
			continue
		}
		v := row.Values[col]
		if v == "" || v == "N/A" {
			continue
		}
		parts = append(parts, col+": "+v)
	}
	if len(parts) == 0 {
		return ""
	}
	text := fmt.Sprintf("Row %d: %s", index+1, strings.Join(parts, ", "))
	return quoteCleaner.Replace(text)
}

func deniedColumn(header string) bool {
	lower := strings.ToLower(header)
	for _, denied := range deniedColumns {
		if strings.Contains(lower, denied) {
			return true
		}
	}
	return false
}
