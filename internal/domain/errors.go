package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound signals a missing product.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidProduct signals an invalid product payload.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmptyMessage signals an empty chat message.
	ErrEmptyMessage = errors.New("empty message")
)
