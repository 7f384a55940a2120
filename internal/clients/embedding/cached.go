package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/veriscan/veriscan/internal/redis"
)

// CacheTTL is how long a cached vector stays valid. The corpus model
// is pinned per deployment, so day-scale staleness is acceptable.
const CacheTTL = 24 * time.Hour

// CachedEmbedder wraps an Embedder with a Redis read-through cache
// keyed by model and text. Cache failures degrade to direct embedding.
type CachedEmbedder struct {
	inner Embedder
	cache *redis.Client
	model string
	log   *zap.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a vector cache.
func NewCachedEmbedder(inner Embedder, cache *redis.Client, model string, log *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, model: model, log: log}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

// EmbedBatch returns cached vectors where available and embeds only
// the misses, preserving input order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, t := range texts {
		var vec []float32
		ok, err := c.cache.GetJSON(ctx, c.key(t), &vec)
		if err != nil {
			c.log.Warn("embedding cache read failed", zap.Error(err))
			ok = false
		}
		if ok && len(vec) > 0 {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		out[idx] = vectors[j]
		if err := c.cache.SetJSON(ctx, c.key(missTexts[j]), vectors[j], CacheTTL); err != nil {
			c.log.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return out, nil
}
