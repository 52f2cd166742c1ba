package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when no cached value exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// SearchCache stores formatted knowledge-base search results in Redis.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{client: client, ttl: ttl}
}

func searchKey(query string, topK int) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("search:%d:%s", topK, hex.EncodeToString(sum[:]))
}

// Get decodes the cached value for query into v.
func (c *SearchCache) Get(ctx context.Context, query string, topK int, v any) error {
	data, err := c.client.Get(ctx, searchKey(query, topK)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Set caches v for query.
func (c *SearchCache) Set(ctx context.Context, query string, topK int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, searchKey(query, topK), data, c.ttl).Err()
}
