package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/tagmatch/pkg/kv"
)

// Cache stores embedding vectors keyed by model and text.
//
// Lookups that fail for any reason other than a miss return an error; the
// [Cached] wrapper logs it and falls through to the embedder.
type Cache interface {
	// Get returns the cached vector, or ok=false on a miss.
	Get(ctx context.Context, model, text string) (vec []float32, ok bool, err error)

	// Put stores a vector.
	Put(ctx context.Context, model, text string, vec []float32) error

	// Purge drops every vector cached for model and returns the count.
	Purge(ctx context.Context, model string) (int, error)
}

// cachedVector is the stored value. The text is kept so a hash collision
// reads as a miss rather than the wrong vector.
type cachedVector struct {
	Text   string    `msgpack:"t"`
	Vector []float32 `msgpack:"v"`
}

func textHash(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}

func decodeCached(b []byte, text string) ([]float32, bool, error) {
	var cv cachedVector
	if err := msgpack.Unmarshal(b, &cv); err != nil {
		return nil, false, fmt.Errorf("embed: decode cached vector: %w", err)
	}
	if cv.Text != text {
		return nil, false, nil
	}
	return cv.Vector, true, nil
}

// ---------------------------------------------------------------------------
// Cached
// ---------------------------------------------------------------------------

// Cached wraps an [Embedder] with a [Cache].
type Cached struct {
	inner  Embedder
	cache  Cache
	logger *slog.Logger
}

var _ Embedder = (*Cached)(nil)

// NewCached returns inner memoized through cache. A nil logger uses
// slog.Default().
func NewCached(inner Embedder, cache Cache, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{inner: inner, cache: cache, logger: logger}
}

// Embed returns the cached vector for text or embeds and stores it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch serves hits from the cache and sends only the misses to the
// wrapped embedder, in one batch.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	model := c.inner.Model()
	out := make([][]float32, len(texts))
	var missIdx []int
	var missText []string
	for i, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
		vec, ok, err := c.cache.Get(ctx, model, t)
		if err != nil {
			c.logger.Warn("embed: cache get failed", "model", model, "error", err)
		}
		if ok && len(vec) == c.inner.Dimension() {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, t)
	}
	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missText)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.cache.Put(ctx, model, missText[j], vecs[j]); err != nil {
			c.logger.Warn("embed: cache put failed", "model", model, "error", err)
		}
	}
	c.logger.Debug("embed: batch", "model", model, "hits", len(texts)-len(missText), "misses", len(missText))
	return out, nil
}

// Dimension returns the wrapped embedder's dimension.
func (c *Cached) Dimension() int { return c.inner.Dimension() }

// Model returns the wrapped embedder's model.
func (c *Cached) Model() string { return c.inner.Model() }

// ---------------------------------------------------------------------------
// KVCache
// ---------------------------------------------------------------------------

// KVCache stores vectors in a [kv.Store] under emb:<model>:<xxhash(text)>.
type KVCache struct {
	store kv.Store
}

var _ Cache = (*KVCache)(nil)

// NewKVCache returns a cache over store.
func NewKVCache(store kv.Store) *KVCache {
	return &KVCache{store: store}
}

func kvKey(model, text string) kv.Key {
	return kv.Key{"emb", model, textHash(text)}
}

func (c *KVCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	b, err := c.store.Get(ctx, kvKey(model, text))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeCached(b, text)
}

func (c *KVCache) Put(ctx context.Context, model, text string, vec []float32) error {
	b, err := msgpack.Marshal(cachedVector{Text: text, Vector: vec})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, kvKey(model, text), b)
}

func (c *KVCache) Purge(ctx context.Context, model string) (int, error) {
	return c.store.DeletePrefix(ctx, kv.Key{"emb", model})
}

// ---------------------------------------------------------------------------
// RedisCache
// ---------------------------------------------------------------------------

// RedisClient is the subset of *redis.Client used by [RedisCache].
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

var _ RedisClient = (*redis.Client)(nil)

// RedisCache stores vectors in Redis so several processes share one cache.
type RedisCache struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache returns a cache writing keys <prefix>:<model>:<hash>.
// An empty prefix means "tagmatch:emb". A zero ttl keeps entries forever.
func NewRedisCache(client RedisClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "tagmatch:emb"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(model, text string) string {
	return c.prefix + ":" + model + ":" + textHash(text)
}

func (c *RedisCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	b, err := c.client.Get(ctx, c.key(model, text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeCached(b, text)
}

func (c *RedisCache) Put(ctx context.Context, model, text string, vec []float32) error {
	b, err := msgpack.Marshal(cachedVector{Text: text, Vector: vec})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(model, text), b, c.ttl).Err()
}

func (c *RedisCache) Purge(ctx context.Context, model string) (int, error) {
	match := c.prefix + ":" + model + ":*"
	var cursor uint64
	n := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 500).Result()
		if err != nil {
			return n, err
		}
		if len(keys) > 0 {
			del, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return n, err
			}
			n += int(del)
		}
		if next == 0 {
			return n, nil
		}
		cursor = next
	}
}
