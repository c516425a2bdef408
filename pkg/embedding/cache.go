package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"math"
	"rag-chatbot-go/pkg/log"
	"time"

	"github.com/go-redis/redis/v8"
)

// CachedClient stores embeddings in Redis keyed by model and text hash.
// Cache failures are logged and the wrapped client is called directly.
type CachedClient struct {
	next  Client
	rdb   *redis.Client
	model string
	ttl   time.Duration
}

// NewCachedClient wraps next with a Redis cache. A nil rdb disables caching.
func NewCachedClient(next Client, rdb *redis.Client, model string, ttl time.Duration) Client {
	if rdb == nil {
		return next
	}
	return &CachedClient{next: next, rdb: rdb, model: model, ttl: ttl}
}

// CreateEmbedding returns the cached vector or computes and stores it.
func (c *CachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.model, text)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		if vec, ok := decodeVector(raw); ok {
			return vec, nil
		}
	} else if err != redis.Nil {
		log.Warnf("[EmbeddingCache] read failed, key=%s: %v", key, err)
	}

	vec, err := c.next.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		log.Warnf("[EmbeddingCache] write failed, key=%s: %v", key, err)
	}
	return vec, nil
}

// CacheKey builds the Redis key for a model/text pair.
func CacheKey(model, text string) string {
	sum := sha1.Sum([]byte(text))
	return "embedding:" + model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, bool) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, true
}
