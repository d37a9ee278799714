// Package catalog manages product writes: validation, vectorization and
// persistence. Search only ever reads what this package has written.
package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
)

// Repository is the product store as the catalog consumes it.
type Repository interface {
	Upsert(ctx context.Context, p domain.Product) error
	Get(ctx context.Context, id string) (domain.Product, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	ListByStore(ctx context.Context, storeID string) ([]domain.Product, error)
}

// Service owns the product write path.
type Service struct {
	repo     Repository
	embedder domain.Embedder
	dims     int
	logger   *zap.Logger
}

// NewService creates the catalog service. dims is the expected embedding
// dimensionality; provider responses of any other length are rejected.
func NewService(repo Repository, embedder domain.Embedder, dims int, logger *zap.Logger) *Service {
	if dims <= 0 {
		dims = domain.DefaultEmbeddingDim
	}
	return &Service{
		repo:     repo,
		embedder: embedder,
		dims:     dims,
		logger:   logger,
	}
}

// Create validates, vectorizes and persists a new product. A missing ID is
// assigned. Unlike search, the write path fails loudly on provider errors:
// silently persisting an unsearchable product would hide it from every query.
func (s *Service) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := validate(p); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else {
		// Creating over an existing ID is an update in disguise; reject it.
		taken, err := s.repo.Exists(ctx, p.ID)
		if err != nil {
			return domain.Product{}, fmt.Errorf("check product id: %w", err)
		}
		if taken {
			return domain.Product{}, fmt.Errorf("product id %s already exists: %w", p.ID, domain.ErrInvalidProduct)
		}
	}
	p.IsDeleted = false

	embedding, err := s.embed(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	p.Embedding = embedding

	if err := s.repo.Upsert(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("persist product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", p.ID),
		zap.String("store_id", p.StoreID))
	return p, nil
}

// Update re-vectorizes and persists an existing product. The stored record
// must exist; updates never resurrect deleted products.
func (s *Service) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := validate(p); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		return domain.Product{}, fmt.Errorf("missing product id: %w", domain.ErrInvalidProduct)
	}

	existing, err := s.repo.Get(ctx, p.ID)
	if err != nil {
		return domain.Product{}, err
	}
	p.IsDeleted = existing.IsDeleted

	embedding, err := s.embed(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	p.Embedding = embedding

	if err := s.repo.Upsert(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("persist product: %w", err)
	}

	s.logger.Info("Product updated", zap.String("product_id", p.ID))
	return p, nil
}

// Delete marks a product as logically deleted. The record stays in storage
// but drops out of search eligibility.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// Get returns a single product by ID.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

// ListByStore returns a store's non-deleted products.
func (s *Service) ListByStore(ctx context.Context, storeID string) ([]domain.Product, error) {
	return s.repo.ListByStore(ctx, storeID)
}

// ReindexStore re-vectorizes every non-deleted product of a store in one
// batch. Used after a model change or to backfill products whose embedding
// generation failed. Returns the number of products re-embedded.
func (s *Service) ReindexStore(ctx context.Context, storeID string) (int, error) {
	products, err := s.repo.ListByStore(ctx, storeID)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		return 0, nil
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = p.SearchableText()
	}

	batch, err := s.batchEmbed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(batch.Embeddings) != len(products) {
		return 0, fmt.Errorf("got %d embeddings for %d products: %w",
			len(batch.Embeddings), len(products), domain.ErrEmbeddingProviderError)
	}

	for i := range products {
		if len(batch.Embeddings[i]) != s.dims {
			return 0, fmt.Errorf("product %s: got %d dimensions, want %d: %w",
				products[i].ID, len(batch.Embeddings[i]), s.dims, domain.ErrVectorDimMismatch)
		}
		products[i].Embedding = batch.Embeddings[i]
		if err := s.repo.Upsert(ctx, products[i]); err != nil {
			return 0, fmt.Errorf("persist product %s: %w", products[i].ID, err)
		}
	}

	s.logger.Info("Store reindexed",
		zap.String("store_id", storeID),
		zap.Int("products", len(products)),
		zap.Int("total_tokens", batch.TotalTokens))
	return len(products), nil
}

func (s *Service) batchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.embedder.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, s.embedder, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return res, nil
}

func (s *Service) embed(ctx context.Context, p domain.Product) ([]float32, error) {
	res, err := s.embedder.Embed(ctx, p.SearchableText())
	if err != nil {
		return nil, fmt.Errorf("vectorize product: %w", err)
	}
	if len(res.Embedding) != s.dims {
		return nil, fmt.Errorf("got %d dimensions, want %d: %w",
			len(res.Embedding), s.dims, domain.ErrVectorDimMismatch)
	}
	return res.Embedding, nil
}

func validate(p domain.Product) error {
	if p.Name == "" {
		return fmt.Errorf("missing product name: %w", domain.ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("negative price: %w", domain.ErrInvalidProduct)
	}
	return nil
}
