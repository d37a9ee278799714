// Package product is the Redis-backed product corpus accessor.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ivanbanos/FluxCommerce/internal/db"
	"github.com/ivanbanos/FluxCommerce/internal/domain"
)

// store is the consumer interface for the product corpus (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Repo stores products as RedisJSON documents with set-based store membership.
type Repo struct {
	store  store
	prefix string
}

// New creates a product repository. prefix namespaces all keys (e.g. "flux:").
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Upsert creates or updates a product document and its store membership.
// Deleted products stay in the global registry so Get keeps resolving, but
// leave the store membership set that feeds search and listings.
func (r *Repo) Upsert(ctx context.Context, p domain.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product ID is required: %w", domain.ErrInvalidProduct)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product %s: %w", p.ID, err)
	}

	if err := r.store.JSONSet(ctx, r.productKey(p.ID), "$", data); err != nil {
		return fmt.Errorf("json.set product %s: %w", p.ID, err)
	}

	if err := r.store.SAdd(ctx, r.allKey(), p.ID); err != nil {
		return fmt.Errorf("register product %s: %w", p.ID, err)
	}
	if p.StoreID == "" {
		return nil
	}

	if p.IsDeleted {
		if err := r.store.SRem(ctx, r.storeKey(p.StoreID), p.ID); err != nil {
			return fmt.Errorf("deregister product %s from store %s: %w", p.ID, p.StoreID, err)
		}
		return nil
	}
	if err := r.store.SAdd(ctx, r.storeKey(p.StoreID), p.ID); err != nil {
		return fmt.Errorf("register product %s in store %s: %w", p.ID, p.StoreID, err)
	}

	return nil
}

// Exists reports whether a product document is stored under the given ID,
// deleted or not.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.productKey(id))
	if err != nil {
		return false, fmt.Errorf("exists product %s: %w", id, err)
	}
	return ok, nil
}

// Get returns a product by ID, deleted or not.
func (r *Repo) Get(ctx context.Context, id string) (domain.Product, error) {
	raw, err := r.store.JSONGet(ctx, r.productKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("json.get product %s: %w", id, err)
	}
	return unmarshalProduct(id, raw)
}

// Delete marks a product as logically deleted. The document stays in place so
// order history keeps resolving; eligibility filters exclude it from search.
func (r *Repo) Delete(ctx context.Context, id string) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	p.IsDeleted = true
	return r.Upsert(ctx, p)
}

// FetchEligible returns the search corpus for a store: non-deleted products
// carrying an embedding. An empty storeID returns the corpus across all stores.
func (r *Repo) FetchEligible(ctx context.Context, storeID string) ([]domain.Product, error) {
	products, err := r.fetchMembers(ctx, storeID)
	if err != nil {
		return nil, err
	}

	eligible := products[:0]
	for _, p := range products {
		if p.Eligible(storeID) {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

// ListByStore returns all non-deleted products of a store, with or without
// embeddings. Used by the merchant catalog surface, not by search.
func (r *Repo) ListByStore(ctx context.Context, storeID string) ([]domain.Product, error) {
	products, err := r.fetchMembers(ctx, storeID)
	if err != nil {
		return nil, err
	}

	live := products[:0]
	for _, p := range products {
		if !p.IsDeleted {
			live = append(live, p)
		}
	}
	return live, nil
}

func (r *Repo) fetchMembers(ctx context.Context, storeID string) ([]domain.Product, error) {
	setKey := r.allKey()
	if storeID != "" {
		setKey = r.storeKey(storeID)
	}

	ids, err := r.store.SMembers(ctx, setKey)
	if err != nil {
		return nil, fmt.Errorf("store members %s: %w", setKey, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.productKey(id)
	}

	raws, err := r.store.JSONGetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	products := make([]domain.Product, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			// Membership set can briefly outlive a document; skip the orphan.
			continue
		}
		p, err := unmarshalProduct(ids[i], raw)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (r *Repo) productKey(id string) string {
	return r.prefix + "product:" + id
}

func (r *Repo) storeKey(storeID string) string {
	return r.prefix + "store:" + storeID + ":products"
}

func (r *Repo) allKey() string {
	return r.prefix + "products"
}

func unmarshalProduct(id string, raw []byte) (domain.Product, error) {
	var p domain.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Product{}, fmt.Errorf("unmarshal product %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return p, nil
}
