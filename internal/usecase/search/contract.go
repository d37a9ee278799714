package search

import (
	"context"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
)

// Repository is the product corpus the engine ranks against. Implemented by
// repository/product; narrowed here to the two reads the engine needs.
type Repository interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	FetchEligible(ctx context.Context, storeID string) ([]domain.Product, error)
}

// Result is a single ranked search hit. Created fresh per search invocation,
// never persisted.
type Result struct {
	Product domain.Product
	// Score is the combined relevance score (vector similarity blended with
	// keyword overlap), roughly in [0, 1].
	Score float64
	// MatchingTerms is the subset of query tokens found in the product's
	// name or description. Annotation only, not used for ranking.
	MatchingTerms []string
}
