package domain

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// Dimensions is the embedding dimensionality used across the system.
// Every vector written to or queried from the index has this length.
const Dimensions = 384

// Vector is a fixed-length embedding.
type Vector []float32

// Metadata is the payload stored alongside a vector and returned verbatim
// by index queries.
type Metadata struct {
	Text       string    `json:"text"`
	Filename   string    `json:"filename"`
	RowIndex   int       `json:"rowIndex"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// IndexedVector is the unit of storage in the vector index. Written once
// via upsert; a later upsert with the same ID overwrites it wholesale
// (last-write-wins), never partially.
type IndexedVector struct {
	ID       string   `json:"id"`
	Values   Vector   `json:"values"`
	Metadata Metadata `json:"metadata"`
}

// Match is one query result. Matches arrive ordered by descending
// similarity as ranked by the index; the core never re-sorts them.
type Match struct {
	Text  string
	Score float64
}

// ConversationTurn is the outcome of one chat request. Not persisted here.
type ConversationTurn struct {
	Query      string
	Answer     string
	IsFallback bool
}

// NewID returns an index-unique ID: unix milliseconds plus a random base36
// suffix. Independent of content, so re-uploading identical rows never
// collides with earlier vectors.
func NewID() string {
	const suffixLen = 9
	buf := make([]byte, 0, suffixLen)
	for range suffixLen {
		buf = strconv.AppendInt(buf, rand.Int63n(36), 36)
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), buf)
}
