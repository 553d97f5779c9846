package domain

import "errors"

var (
	// ErrInvalidInput signals a caller contract violation (missing query,
	// nil vector, non-CSV upload). Surfaced immediately, never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyTable signals a parsed table that produced zero chunks.
	ErrEmptyTable = errors.New("no data found in CSV to process")
	// ErrIndexUnavailable signals a vector index transport failure.
	// Ingestion surfaces it with the partial upsert count; the query
	// path absorbs it into an empty context set.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
