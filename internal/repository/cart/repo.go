// Package cart is the Redis-backed shopping cart store.
package cart

import (
	"context"
	"fmt"
	"strconv"
)

// store is the consumer interface for carts (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, key string) error
}

// Repo keeps one hash per user: product ID -> quantity.
type Repo struct {
	store  store
	prefix string
}

// New creates a cart repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Add increments the quantity of a product in the user's cart.
func (r *Repo) Add(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		qty = 1
	}
	if _, err := r.store.HIncrBy(ctx, r.key(userID), productID, int64(qty)); err != nil {
		return fmt.Errorf("cart add %s: %w", userID, err)
	}
	return nil
}

// Items returns the user's cart as product ID -> quantity.
func (r *Repo) Items(ctx context.Context, userID string) (map[string]int, error) {
	fields, err := r.store.HGetAll(ctx, r.key(userID))
	if err != nil {
		return nil, fmt.Errorf("cart items %s: %w", userID, err)
	}

	items := make(map[string]int, len(fields))
	for productID, raw := range fields {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			continue
		}
		items[productID] = qty
	}
	return items, nil
}

// Remove drops a product from the user's cart.
func (r *Repo) Remove(ctx context.Context, userID, productID string) error {
	if err := r.store.HDel(ctx, r.key(userID), productID); err != nil {
		return fmt.Errorf("cart remove %s: %w", userID, err)
	}
	return nil
}

// Clear empties the user's cart.
func (r *Repo) Clear(ctx context.Context, userID string) error {
	if err := r.store.Del(ctx, r.key(userID)); err != nil {
		return fmt.Errorf("cart clear %s: %w", userID, err)
	}
	return nil
}

func (r *Repo) key(userID string) string {
	return r.prefix + "cart:" + userID
}
