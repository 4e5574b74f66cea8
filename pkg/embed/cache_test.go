package embed_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haivivi/tagmatch/pkg/embed"
	"github.com/haivivi/tagmatch/pkg/kv"
)

// countingEmbedder wraps Hash and records every text it embeds.
type countingEmbedder struct {
	*embed.Hash
	mu    sync.Mutex
	texts []string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.texts = append(c.texts, texts...)
	c.mu.Unlock()
	return c.Hash.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

// fakeRedis implements embed.RedisClient over a map.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: make(map[string][]byte)} }

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func caches() map[string]embed.Cache {
	return map[string]embed.Cache{
		"kv":    embed.NewKVCache(kv.NewMemory()),
		"redis": embed.NewRedisCache(newFakeRedis(), "", 0),
	}
}

func TestCachedEmbedsMissesOnce(t *testing.T) {
	ctx := context.Background()
	for name, cache := range caches() {
		t.Run(name, func(t *testing.T) {
			inner := &countingEmbedder{Hash: embed.NewHash(32)}
			e := embed.NewCached(inner, cache, nil)

			first, err := e.EmbedBatch(ctx, []string{"long hair", "cat ears"})
			if err != nil {
				t.Fatalf("EmbedBatch: %v", err)
			}
			second, err := e.EmbedBatch(ctx, []string{"cat ears", "school uniform", "long hair"})
			if err != nil {
				t.Fatalf("EmbedBatch: %v", err)
			}

			got := inner.seen()
			want := []string{"long hair", "cat ears", "school uniform"}
			if strings.Join(got, "|") != strings.Join(want, "|") {
				t.Errorf("inner embedded %v, want %v", got, want)
			}
			for i := range first[0] {
				if first[0][i] != second[2][i] || first[1][i] != second[0][i] {
					t.Fatal("cached vector differs from the original")
				}
			}
		})
	}
}

func TestCachedPurge(t *testing.T) {
	ctx := context.Background()
	for name, cache := range caches() {
		t.Run(name, func(t *testing.T) {
			inner := &countingEmbedder{Hash: embed.NewHash(8)}
			e := embed.NewCached(inner, cache, nil)
			if _, err := e.EmbedBatch(ctx, []string{"a", "b"}); err != nil {
				t.Fatal(err)
			}
			n, err := cache.Purge(ctx, inner.Model())
			if err != nil || n != 2 {
				t.Fatalf("Purge = %d, %v; want 2", n, err)
			}
			if _, err := e.Embed(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			if len(inner.seen()) != 3 {
				t.Errorf("purged text was not re-embedded: %v", inner.seen())
			}
		})
	}
}

func TestCachedModelIsolation(t *testing.T) {
	ctx := context.Background()
	cache := embed.NewKVCache(kv.NewMemory())
	if err := cache.Put(ctx, "m1", "x", []float32{1, 2}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cache.Get(ctx, "m2", "x"); ok {
		t.Error("vector leaked across models")
	}
	vec, ok, err := cache.Get(ctx, "m1", "x")
	if err != nil || !ok || len(vec) != 2 {
		t.Errorf("Get = %v, %v, %v", vec, ok, err)
	}
}

func TestCachedEmptyInput(t *testing.T) {
	e := embed.NewCached(embed.NewHash(8), embed.NewKVCache(kv.NewMemory()), nil)
	if _, err := e.Embed(context.Background(), ""); err != embed.ErrEmptyInput {
		t.Errorf("Embed empty: got %v, want ErrEmptyInput", err)
	}
}

func TestHashDeterministicAndSimilar(t *testing.T) {
	ctx := context.Background()
	h := embed.NewHash(256)
	a1, _ := h.Embed(ctx, "cherry blossoms")
	a2, _ := h.Embed(ctx, "cherry blossoms")
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatal("Hash is not deterministic")
		}
	}
	near, _ := h.Embed(ctx, "cherry blossom")
	far, _ := h.Embed(ctx, "mechanical arm")
	if dot(a1, near) <= dot(a1, far) {
		t.Errorf("similar text scored %v, unrelated %v", dot(a1, near), dot(a1, far))
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
