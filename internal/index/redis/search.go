package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/tablechat/tablechat/internal/domain"
)

// Upsert stores vectors as hashes keyed by ID. A repeated ID overwrites
// the previous hash wholesale: last-write-wins. An empty batch is a no-op.
func (s *Store) Upsert(ctx context.Context, vectors []domain.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(vectors))
	for i, v := range vectors {
		cmds[i] = s.client.B().Hset().Key(s.keyPrefix + v.ID).FieldValue().
			FieldValue("vector", vectorToBytes(v.Values)).
			FieldValue("text", v.Metadata.Text).
			FieldValue("filename", v.Metadata.Filename).
			FieldValue("row_index", strconv.Itoa(v.Metadata.RowIndex)).
			FieldValue("uploaded_at", v.Metadata.UploadedAt.Format(time.RFC3339)).
			Build()
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("upsert %s: %v: %w", vectors[i].ID, err, domain.ErrIndexUnavailable)
		}
	}
	return nil
}

// Query runs a KNN search and returns matches in Redis's similarity order,
// with cosine distance converted to a [0,1] similarity score.
func (s *Store) Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is required", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", domain.ErrInvalidInput)
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", topK)
	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(
		s.indexName, queryStr,
		"RETURN", "2", "text", "__vector_score",
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	).Build()

	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %v: %w", err, domain.ErrIndexUnavailable)
	}
	return parseKNNMatches(raw), nil
}

// parseKNNMatches decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseKNNMatches(raw []rueidis.RedisMessage) []domain.Match {
	if len(raw) == 0 {
		return nil
	}
	total, err := raw[0].AsInt64()
	if err != nil || total == 0 {
		return nil
	}

	matches := make([]domain.Match, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		pairs := fieldPairs(fields)

		var score float64
		if raw, ok := pairs["__vector_score"]; ok {
			if dist, err := strconv.ParseFloat(raw, 64); err == nil {
				score = cosineSimilarity(dist)
			}
		}
		matches = append(matches, domain.Match{Text: pairs["text"], Score: score})
	}
	return matches
}

// cosineSimilarity converts cosine distance to similarity, clamped to [0,1].
func cosineSimilarity(distance float64) float64 {
	return max(0, 1.0-distance)
}

func fieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// vectorToBytes encodes a vector as the little-endian FLOAT32 blob
// FT.SEARCH expects.
func vectorToBytes(v domain.Vector) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
