// Package redis implements the index contract on Redis 8+ via rueidis,
// using FT.SEARCH KNN over HASH documents. Meant for self-hosted
// deployments that keep the whole pipeline on one box.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/tablechat/tablechat/internal/domain"
)

// Config holds Redis connection and index settings.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	IndexName string
	KeyPrefix string
}

// Store implements the index contract via rueidis.
type Store struct {
	client    rueidis.Client
	indexName string
	keyPrefix string
}

// NewStore creates a Redis-backed index store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tablechat:vec:"
	}
	return &Store{client: client, indexName: cfg.IndexName, keyPrefix: prefix}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until Redis responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for redis: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// EnsureIndex creates the FT index if it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context) error {
	infoCmd := s.client.B().Arbitrary("FT.INFO").Args(s.indexName).Build()
	if err := s.client.Do(ctx, infoCmd).Error(); err == nil {
		return nil
	} else if !isRedisErr(err, "unknown index name") {
		return fmt.Errorf("probe index: %w", err)
	}

	args := []string{
		s.indexName,
		"ON", "HASH",
		"PREFIX", "1", s.keyPrefix,
		"SCHEMA",
		"vector", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(domain.Dimensions),
		"DISTANCE_METRIC", "COSINE",
		"text", "TEXT",
	}
	createCmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, createCmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// isRedisErr checks if err is a Redis server error containing substr.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

func containsIgnoreCase(s, substr string) bool {
	ls, lsub := len(s), len(substr)
	if lsub > ls {
		return false
	}
	lower := func(c byte) byte {
		if c >= 'A' && c <= 'Z' {
			return c + 'a' - 'A'
		}
		return c
	}
	for i := 0; i <= ls-lsub; i++ {
		match := true
		for j := 0; j < lsub; j++ {
			if lower(s[i+j]) != lower(substr[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
