// Package chi exposes the HTTP API: chat, search, catalog and operational
// endpoints.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
	assistantuc "github.com/ivanbanos/FluxCommerce/internal/usecase/assistant"
	cataloguc "github.com/ivanbanos/FluxCommerce/internal/usecase/catalog"
	healthuc "github.com/ivanbanos/FluxCommerce/internal/usecase/health"
	searchuc "github.com/ivanbanos/FluxCommerce/internal/usecase/search"
)

// errorCode values returned in error response bodies.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeNotFound         errorCode = "product_not_found"
	codeDimMismatch      errorCode = "vector_dim_mismatch"
	codeProviderError    errorCode = "embedding_provider_error"
	codeInternalError    errorCode = "internal_error"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// CartStore is the cart surface the HTTP layer needs (ISP).
type CartStore interface {
	Items(ctx context.Context, userID string) (map[string]int, error)
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// Server wires the usecase layer to HTTP handlers.
type Server struct {
	catalog       *cataloguc.Service
	search        *searchuc.Service
	assistant     *assistantuc.Service
	health        *healthuc.Service
	cart          CartStore
	ws            http.Handler
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. ws is the WebSocket hub handler.
func NewServer(
	catalog *cataloguc.Service,
	search *searchuc.Service,
	assistant *assistantuc.Service,
	health *healthuc.Service,
	cart CartStore,
	ws http.Handler,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog:   catalog,
		search:    search,
		assistant: assistant,
		health:    health,
		cart:      cart,
		ws:        ws,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrInvalidProduct, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)

		r.Route("/products", func(r chi.Router) {
			r.Post("/", s.handleCreateProduct)
			r.Get("/{id}", s.handleGetProduct)
			r.Put("/{id}", s.handleUpdateProduct)
			r.Delete("/{id}", s.handleDeleteProduct)
			r.Get("/{id}/similar", s.handleSimilarProducts)
		})

		r.Route("/users/{userID}/cart", func(r chi.Router) {
			r.Get("/", s.handleCartItems)
			r.Delete("/", s.handleCartClear)
			r.Delete("/{productID}", s.handleCartRemove)
		})

		r.Route("/stores/{storeID}", func(r chi.Router) {
			r.Get("/search", s.handleSearch)
			r.Get("/products", s.handleListProducts)
			r.Post("/reindex", s.handleReindex)
		})
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	if s.ws != nil {
		r.Get("/ws", s.ws.ServeHTTP)
	}
}

// chatRequest is the POST /v1/chat body.
type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	StoreID string `json:"storeId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, domain.ErrEmptyMessage.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "userId is required")
		return
	}

	payload := s.assistant.HandleMessage(r.Context(), req.UserID, req.StoreID, req.Message)
	writeJSON(w, http.StatusOK, payload)
}

// searchResultItem is one ranked hit in a search response.
type searchResultItem struct {
	Product       domain.Product `json:"product"`
	Score         float64        `json:"score"`
	MatchingTerms []string       `json:"matching_terms,omitempty"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query parameter q is required")
		return
	}

	limit, err := parseLimit(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	storeID := chi.URLParam(r, "storeID")
	results := s.search.Search(r.Context(), query, storeID, limit)

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			Product:       res.Product,
			Score:         res.Score,
			MatchingTerms: res.MatchingTerms,
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

func (s *Server) handleSimilarProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	storeID := r.URL.Query().Get("storeId")

	similar, err := s.search.SimilarProducts(r.Context(), id, storeID, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if similar == nil {
		similar = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": similar,
		"total": len(similar),
	})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	created, err := s.catalog.Create(r.Context(), p)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/products/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	p.ID = chi.URLParam(r, "id")

	updated, err := s.catalog.Update(r.Context(), p)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListByStore(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": products,
		"total": len(products),
	})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	count, err := s.catalog.ReindexStore(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reindexed": count})
}

// cartItem is one product line in a cart response.
type cartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) handleCartItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.cart.Items(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := make([]cartItem, 0, len(items))
	for productID, qty := range items {
		out = append(out, cartItem{ProductID: productID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })

	writeJSON(w, http.StatusOK, map[string]any{
		"items": out,
		"total": len(out),
	})
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	err := s.cart.Remove(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "productID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cart.Clear(r.Context(), chi.URLParam(r, "userID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrProductNotFound,
		domain.ErrNotFound,
		domain.ErrInvalidProduct,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
