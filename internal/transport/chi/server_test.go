package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
	assistantuc "github.com/ivanbanos/FluxCommerce/internal/usecase/assistant"
	cataloguc "github.com/ivanbanos/FluxCommerce/internal/usecase/catalog"
	healthuc "github.com/ivanbanos/FluxCommerce/internal/usecase/health"
	searchuc "github.com/ivanbanos/FluxCommerce/internal/usecase/search"
)

const testDims = 4

type fakeRepo struct {
	products map[string]domain.Product
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{products: make(map[string]domain.Product)}
}

func (f *fakeRepo) Upsert(_ context.Context, p domain.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := f.products[id]
	return ok, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	p, ok := f.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.IsDeleted = true
	f.products[id] = p
	return nil
}

func (f *fakeRepo) FetchEligible(_ context.Context, storeID string) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.products {
		if p.Eligible(storeID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByStore(_ context.Context, storeID string) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.products {
		if p.StoreID == storeID && !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0, 0}}, nil
}

type fakeParser struct {
	intent domain.Intent
}

func (f *fakeParser) Parse(_ context.Context, _ string) (domain.Intent, error) {
	return f.intent, nil
}

type fakeCart struct {
	items map[string]map[string]int
}

func newFakeCart() *fakeCart {
	return &fakeCart{items: make(map[string]map[string]int)}
}

func (f *fakeCart) Add(_ context.Context, userID, productID string, qty int) error {
	if f.items[userID] == nil {
		f.items[userID] = make(map[string]int)
	}
	f.items[userID][productID] += qty
	return nil
}

func (f *fakeCart) Items(_ context.Context, userID string) (map[string]int, error) {
	out := make(map[string]int, len(f.items[userID]))
	for id, qty := range f.items[userID] {
		out[id] = qty
	}
	return out, nil
}

func (f *fakeCart) Remove(_ context.Context, userID, productID string) error {
	delete(f.items[userID], productID)
	return nil
}

func (f *fakeCart) Clear(_ context.Context, userID string) error {
	delete(f.items, userID)
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Emit(_, _ string, _ any) {}

type okPinger struct{}

func (okPinger) Ping(_ context.Context) error { return nil }

func newTestRouter(repo *fakeRepo, parser assistantuc.IntentParser) *chi.Mux {
	return newTestRouterWithCart(repo, parser, newFakeCart())
}

func newTestRouterWithCart(repo *fakeRepo, parser assistantuc.IntentParser, cart *fakeCart) *chi.Mux {
	logger := zap.NewNop()
	searchSvc := searchuc.NewService(repo, fakeEmbedder{}, testDims, logger)
	catalogSvc := cataloguc.NewService(repo, fakeEmbedder{}, testDims, logger)
	assistantSvc := assistantuc.NewService(parser, searchSvc, repo, cart, nopPublisher{}, logger)
	healthSvc := healthuc.New(okPinger{}, nil, nil)

	server := NewServer(catalogSvc, searchSvc, assistantSvc, healthSvc, cart, nil, logger)

	r := chi.NewRouter()
	server.Routes(r)
	return r
}

func seedProduct(repo *fakeRepo, id, storeID, name string) {
	repo.products[id] = domain.Product{
		ID:        id,
		StoreID:   storeID,
		Name:      name,
		Embedding: []float32{1, 0, 0, 0},
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestChat_EmptyMessage(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeParser{})

	rr := doJSON(t, router, "POST", "/v1/chat", chatRequest{UserID: "u1"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rr.Code)
	}
}

func TestChat_SearchFlow(t *testing.T) {
	repo := newFakeRepo()
	seedProduct(repo, "p1", "S1", "Red Bicycle")

	parser := &fakeParser{intent: domain.Intent{Action: domain.ActionSearch, Query: "bicycle"}}
	router := newTestRouter(repo, parser)

	rr := doJSON(t, router, "POST", "/v1/chat",
		chatRequest{Message: "quiero una bicicleta", UserID: "u1", StoreID: "S1"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200: %s", rr.Code, rr.Body.String())
	}

	var payload assistantuc.Payload
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Action != assistantuc.ActionSingleRecommendation {
		t.Errorf("action = %q, expected single_recommendation", payload.Action)
	}
}

func TestSearch_Endpoint(t *testing.T) {
	repo := newFakeRepo()
	seedProduct(repo, "p1", "S1", "Red Bicycle")
	seedProduct(repo, "p2", "S2", "Other Store Bicycle")

	router := newTestRouter(repo, &fakeParser{})

	rr := doJSON(t, router, "GET", "/v1/stores/S1/search?q=bicycle", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d, expected 1 (store scoped)", resp.Total)
	}
	if resp.Items[0].Product.ID != "p1" {
		t.Errorf("result = %s, expected p1", resp.Items[0].Product.ID)
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeParser{})

	rr := doJSON(t, router, "GET", "/v1/stores/S1/search", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rr.Code)
	}
}

func TestProduct_CreateGetDelete(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo, &fakeParser{})

	rr := doJSON(t, router, "POST", "/v1/products",
		domain.Product{StoreID: "S1", Name: "Widget", Description: "A widget"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}

	var created domain.Product
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated product ID")
	}

	rr = doJSON(t, router, "GET", "/v1/products/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("get status = %d", rr.Code)
	}

	rr = doJSON(t, router, "DELETE", "/v1/products/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, expected 204", rr.Code)
	}
	if !repo.products[created.ID].IsDeleted {
		t.Error("expected logical delete")
	}
}

func TestProduct_NotFound(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeParser{})

	rr := doJSON(t, router, "GET", "/v1/products/ghost", nil)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, expected 404", rr.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != codeNotFound {
		t.Errorf("code = %q, expected product_not_found", errResp.Code)
	}
}

func TestSimilar_Endpoint(t *testing.T) {
	repo := newFakeRepo()
	seedProduct(repo, "ref", "S1", "Red Bicycle")
	repo.products["near"] = domain.Product{
		ID: "near", StoreID: "S1", Name: "Blue Bicycle", Embedding: []float32{0.9, 0.1, 0, 0},
	}

	router := newTestRouter(repo, &fakeParser{})

	rr := doJSON(t, router, "GET", "/v1/products/ref/similar?storeId=S1", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Items []domain.Product `json:"items"`
		Total int              `json:"total"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ID != "near" {
		t.Errorf("unexpected similar products: %+v", resp)
	}
}

func TestHealth_Endpoint(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeParser{})

	rr := doJSON(t, router, "GET", "/healthz", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, expected 200", rr.Code)
	}
}

func TestReindex_Endpoint(t *testing.T) {
	repo := newFakeRepo()
	seedProduct(repo, "p1", "S1", "Widget")

	router := newTestRouter(repo, &fakeParser{})

	rr := doJSON(t, router, "POST", "/v1/stores/S1/reindex", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["reindexed"] != 1 {
		t.Errorf("reindexed = %d, expected 1", resp["reindexed"])
	}
}

func TestCart_Endpoints(t *testing.T) {
	cart := newFakeCart()
	_ = cart.Add(context.Background(), "u1", "p1", 2)
	_ = cart.Add(context.Background(), "u1", "p2", 1)

	router := newTestRouterWithCart(newFakeRepo(), &fakeParser{}, cart)

	rr := doJSON(t, router, "GET", "/v1/users/u1/cart", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("items status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []cartItem `json:"items"`
		Total int        `json:"total"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, expected 2", resp.Total)
	}
	if resp.Items[0].ProductID != "p1" || resp.Items[0].Quantity != 2 {
		t.Errorf("first item = %+v, expected p1 x2", resp.Items[0])
	}

	rr = doJSON(t, router, "DELETE", "/v1/users/u1/cart/p1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d, expected 204", rr.Code)
	}
	if _, ok := cart.items["u1"]["p1"]; ok {
		t.Error("p1 still in cart after remove")
	}

	rr = doJSON(t, router, "DELETE", "/v1/users/u1/cart", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d, expected 204", rr.Code)
	}
	if len(cart.items["u1"]) != 0 {
		t.Error("cart not empty after clear")
	}
}

func TestCart_EmptyCart(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeParser{})

	rr := doJSON(t, router, "GET", "/v1/users/nobody/cart", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []cartItem `json:"items"`
		Total int        `json:"total"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 0 || len(resp.Items) != 0 {
		t.Errorf("expected empty cart, got %+v", resp)
	}
}
