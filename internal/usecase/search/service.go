// Package search implements the vector search engine: query embedding,
// cosine ranking over the product corpus, keyword blending, and filtering.
package search

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
	"github.com/ivanbanos/FluxCommerce/internal/domain/vector"
	"github.com/ivanbanos/FluxCommerce/internal/metrics"
)

// Ranking policy constants. Product policy, not derived values; overridable
// per Service via Options.
const (
	// VectorWeight and KeywordWeight blend cosine similarity with lexical
	// overlap into the combined score.
	VectorWeight  = 0.7
	KeywordWeight = 0.3

	// ScoreFloor discards noise: results scoring at or below it are dropped.
	ScoreFloor = 0.1

	// DefaultLimit caps search results when the caller does not set a limit.
	DefaultLimit = 10

	// DefaultSimilarLimit caps similar-product lookups.
	DefaultSimilarLimit = 5
)

// Options overrides the ranking policy constants. Zero fields keep defaults.
type Options struct {
	VectorWeight  float64
	KeywordWeight float64
	ScoreFloor    float64
	DefaultLimit  int
}

// Service orchestrates query embedding, corpus retrieval and ranking.
type Service struct {
	repo     Repository
	embedder domain.Embedder
	dims     int
	logger   *zap.Logger

	vectorWeight  float64
	keywordWeight float64
	scoreFloor    float64
	defaultLimit  int
}

// NewService creates the search engine. dims is the embedding dimensionality
// used for the zero-vector fallback when the provider is down.
func NewService(repo Repository, embedder domain.Embedder, dims int, logger *zap.Logger, opts ...Options) *Service {
	if dims <= 0 {
		dims = domain.DefaultEmbeddingDim
	}

	s := &Service{
		repo:          repo,
		embedder:      embedder,
		dims:          dims,
		logger:        logger,
		vectorWeight:  VectorWeight,
		keywordWeight: KeywordWeight,
		scoreFloor:    ScoreFloor,
		defaultLimit:  DefaultLimit,
	}

	if len(opts) > 0 {
		o := opts[0]
		if o.VectorWeight > 0 {
			s.vectorWeight = o.VectorWeight
		}
		if o.KeywordWeight > 0 {
			s.keywordWeight = o.KeywordWeight
		}
		if o.ScoreFloor > 0 {
			s.scoreFloor = o.ScoreFloor
		}
		if o.DefaultLimit > 0 {
			s.defaultLimit = o.DefaultLimit
		}
	}

	return s
}

// Search ranks the store's products against the query and returns the top
// results above the noise floor. It never fails: a down embedding provider
// degrades to keyword-only ranking, and a corpus failure yields an empty
// result set. The surrounding chat flow must keep working either way.
func (s *Service) Search(ctx context.Context, query, storeID string, limit int) []Result {
	if limit <= 0 {
		limit = s.defaultLimit
	}

	queryVec, degraded := s.embedQuery(ctx, query)

	products, err := s.repo.FetchEligible(ctx, storeID)
	if err != nil {
		s.logger.Error("Product corpus fetch failed, returning empty results",
			zap.String("store_id", storeID),
			zap.Error(err))
		metrics.SearchRequestsTotal.WithLabelValues("corpus_error").Inc()
		metrics.SearchResultCount.Observe(0)
		return nil
	}

	results := make([]Result, 0, len(products))
	for _, p := range products {
		sim := vector.Cosine(queryVec, p.Embedding)
		kw := KeywordScore(query, p)
		combined := s.vectorWeight*sim + s.keywordWeight*kw
		if combined <= s.scoreFloor {
			continue
		}
		results = append(results, Result{Product: p, Score: combined})
	}

	// Stable sort keeps corpus iteration order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}

	for i := range results {
		results[i].MatchingTerms = MatchingTerms(query, results[i].Product)
	}

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	metrics.SearchRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.SearchResultCount.Observe(float64(len(results)))

	s.logger.Debug("Search completed",
		zap.String("store_id", storeID),
		zap.Int("candidates", len(products)),
		zap.Int("results", len(results)),
		zap.Bool("degraded", degraded))

	return results
}

// SimilarProducts ranks the store's products by cosine similarity to one
// reference product's embedding. The reference itself is excluded; no keyword
// component and no noise floor apply.
func (s *Service) SimilarProducts(ctx context.Context, productID, storeID string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	ref, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !ref.HasEmbedding() {
		return nil, nil
	}

	products, err := s.repo.FetchEligible(ctx, storeID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		product domain.Product
		score   float64
	}

	candidates := make([]scored, 0, len(products))
	for _, p := range products {
		if p.ID == ref.ID {
			continue
		}
		candidates = append(candidates, scored{
			product: p,
			score:   vector.Cosine(ref.Embedding, p.Embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	similar := make([]domain.Product, len(candidates))
	for i, c := range candidates {
		similar[i] = c.product
	}
	return similar, nil
}

// embedQuery obtains the query embedding, substituting the zero vector when
// the provider fails so ranking degrades to the keyword component.
func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	res, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("Query embedding failed, degrading to keyword-only ranking",
			zap.Error(err))
		return domain.ZeroVector(s.dims), true
	}
	return res.Embedding, false
}
