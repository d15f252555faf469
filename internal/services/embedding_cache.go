package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"
)

// CachedEmbeddingService memoizes vectors by model and text.
// Path descriptions repeat on every message of a call, so most requests
// only embed the user input.
type CachedEmbeddingService struct {
	inner      EmbeddingService
	cache      *cache.Cache
	maxTextLen int // texts longer than this are not cached; 0 means no limit
}

func NewCachedEmbeddingService(inner EmbeddingService, ttl time.Duration, maxTextLen int) *CachedEmbeddingService {
	return &CachedEmbeddingService{
		inner:      inner,
		cache:      cache.New(ttl, 2*ttl),
		maxTextLen: maxTextLen,
	}
}

func (s *CachedEmbeddingService) Name() string            { return s.inner.Name() }
func (s *CachedEmbeddingService) ModelName() string       { return s.inner.ModelName() }
func (s *CachedEmbeddingService) Status() ProviderStatus  { return s.inner.Status() }
func (s *CachedEmbeddingService) Dimension() int          { return s.inner.Dimension() }
func (s *CachedEmbeddingService) ItemCount() int          { return s.cache.ItemCount() }
func (s *CachedEmbeddingService) Inner() EmbeddingService { return s.inner }

func cacheKey(model, text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, model)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *CachedEmbeddingService) cacheable(text string) bool {
	return s.maxTextLen <= 0 || len(text) <= s.maxTextLen
}

func (s *CachedEmbeddingService) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	vecs, err := s.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings serves hits from the cache and embeds all misses in one
// call. If the active model changes during that call (provider fallback) the
// whole batch is recomputed so every vector comes from the same model.
func (s *CachedEmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	model := s.inner.ModelName()
	out := make([]pgvector.Vector, len(texts))
	var missTexts []string
	var missIdx []int

	for i, t := range texts {
		if s.cacheable(t) {
			if v, ok := s.cache.Get(cacheKey(model, t)); ok {
				out[i] = pgvector.NewVector(cloneVector(v.([]float32)))
				continue
			}
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := s.inner.GenerateEmbeddings(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	if now := s.inner.ModelName(); now != model {
		log.Warnf("Embedding model changed from %s to %s mid-request, recomputing batch", model, now)
		all, err := s.inner.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return nil, err
		}
		s.remember(now, texts, all)
		return all, nil
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
	}
	s.remember(model, missTexts, vecs)
	return out, nil
}

func (s *CachedEmbeddingService) remember(model string, texts []string, vecs []pgvector.Vector) {
	for i, t := range texts {
		if i >= len(vecs) || !s.cacheable(t) {
			continue
		}
		s.cache.SetDefault(cacheKey(model, t), cloneVector(vecs[i].Slice()))
	}
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}

var _ EmbeddingService = (*CachedEmbeddingService)(nil)
