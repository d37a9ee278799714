package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultEmbeddingDim is the embedding dimensionality for all-MiniLM-L6-v2,
// the model the storefront corpus is vectorized with.
const DefaultEmbeddingDim = 384

// Product is a storefront product as stored in the corpus. The search core
// treats it as read-only input; writes go through the catalog service.
type Product struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"store_id"`
	MerchantID  string          `json:"merchant_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Images      []string        `json:"images,omitempty"`
	CoverIndex  int             `json:"cover_index,omitempty"`
	Keywords    []string        `json:"keywords,omitempty"`
	Embedding   []float32       `json:"embedding,omitempty"`
	IsDeleted   bool            `json:"is_deleted,omitempty"`
}

// SearchableText is the text the product embedding is generated from:
// name, description and keywords joined with single spaces.
func (p *Product) SearchableText() string {
	parts := make([]string, 0, 2+len(p.Keywords))
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	parts = append(parts, p.Keywords...)
	return strings.Join(parts, " ")
}

// HasEmbedding reports whether the product carries a non-empty embedding.
func (p *Product) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// Eligible reports whether the product can participate in a search scoped to
// storeID. An empty storeID disables the store filter.
func (p *Product) Eligible(storeID string) bool {
	if p.IsDeleted || !p.HasEmbedding() {
		return false
	}
	return storeID == "" || p.StoreID == storeID
}

// CoverImage returns the image reference marked as cover, or "" if the
// product has no images. An out-of-range cover index falls back to the first.
func (p *Product) CoverImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	if p.CoverIndex < 0 || p.CoverIndex >= len(p.Images) {
		return p.Images[0]
	}
	return p.Images[p.CoverIndex]
}
