package assistant

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
	"github.com/ivanbanos/FluxCommerce/internal/usecase/search"
)

func mkResult(id, name, desc string, score float64) search.Result {
	return search.Result{
		Product: domain.Product{
			ID:          id,
			Name:        name,
			Description: desc,
			Price:       decimal.NewFromFloat(19.99),
		},
		Score: score,
	}
}

func TestPresent_NoResults(t *testing.T) {
	payload := Present(nil, "monopatín")

	if payload.Action != ActionNoResults {
		t.Errorf("Action = %q, expected no_results", payload.Action)
	}
	if payload.Query != "monopatín" {
		t.Errorf("Query = %q, expected original query", payload.Query)
	}
	if !strings.Contains(payload.Message, "monopatín") {
		t.Errorf("message should echo the query: %q", payload.Message)
	}
	if len(payload.Products) != 0 {
		t.Errorf("expected no products, got %d", len(payload.Products))
	}
}

func TestPresent_SingleRecommendation(t *testing.T) {
	results := []search.Result{mkResult("p1", "Cubo Rubik", "Cubo de velocidad 3x3", 0.92)}

	payload := Present(results, "cubo")

	if payload.Action != ActionSingleRecommendation {
		t.Fatalf("Action = %q, expected single_recommendation", payload.Action)
	}
	if len(payload.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(payload.Products))
	}
	p := payload.Products[0]
	if p.ID != "p1" || p.Name != "Cubo Rubik" {
		t.Errorf("unexpected projection: %+v", p)
	}
	if p.Relevance != 92.0 {
		t.Errorf("Relevance = %f, expected 92.0", p.Relevance)
	}
	if !strings.Contains(payload.Message, "Cubo Rubik") || !strings.Contains(payload.Message, "19.99") {
		t.Errorf("message missing product details: %q", payload.Message)
	}
	if !strings.Contains(payload.Message, "carrito") {
		t.Errorf("message should invite add-to-cart: %q", payload.Message)
	}
}

func TestPresent_MultipleOptions(t *testing.T) {
	results := []search.Result{
		mkResult("p1", "Bici Roja", "Bicicleta de ruta", 0.9),
		mkResult("p2", "Bici Azul", "Bicicleta urbana", 0.8),
		mkResult("p3", "Bici Verde", "Bicicleta de montaña", 0.7),
	}

	payload := Present(results, "bici")

	if payload.Action != ActionMultipleOptions {
		t.Fatalf("Action = %q, expected multiple_options", payload.Action)
	}
	if len(payload.Products) != 3 {
		t.Fatalf("expected all 3 products, got %d", len(payload.Products))
	}
	for i := 1; i <= 3; i++ {
		if !strings.Contains(payload.Message, string(rune('0'+i))+".") {
			t.Errorf("message missing index %d: %q", i, payload.Message)
		}
	}
}

func TestPresent_TooManyResults(t *testing.T) {
	var results []search.Result
	for i := 0; i < 7; i++ {
		results = append(results, mkResult("p"+string(rune('0'+i)), "Producto", "desc", 0.9-float64(i)*0.05))
	}

	payload := Present(results, "producto")

	if payload.Action != ActionTooManyResults {
		t.Fatalf("Action = %q, expected too_many_results", payload.Action)
	}
	if len(payload.Products) != 5 {
		t.Errorf("expected top 5 products, got %d", len(payload.Products))
	}
	if payload.TotalCount != 7 {
		t.Errorf("TotalCount = %d, expected 7", payload.TotalCount)
	}
	if !strings.Contains(payload.Message, "7") {
		t.Errorf("message should state the true total: %q", payload.Message)
	}
	// Top 5 by score, which is input order here.
	if payload.Products[0].ID != "p0" || payload.Products[4].ID != "p4" {
		t.Errorf("unexpected top-5 selection: %+v", payload.Products)
	}
}

func TestPresent_BoundaryFiveResults(t *testing.T) {
	var results []search.Result
	for i := 0; i < 5; i++ {
		results = append(results, mkResult("p"+string(rune('0'+i)), "Producto", "desc", 0.9))
	}

	payload := Present(results, "producto")

	if payload.Action != ActionMultipleOptions {
		t.Errorf("5 results should take the list branch, got %q", payload.Action)
	}
}

func TestProjection_TruncatesDescription(t *testing.T) {
	long := strings.Repeat("descripción larga ", 10)
	results := []search.Result{
		mkResult("p1", "A", long, 0.9),
		mkResult("p2", "B", "corta", 0.8),
	}

	payload := Present(results, "producto")

	got := payload.Products[0].Description
	if len([]rune(got)) > MaxDescriptionLen {
		t.Errorf("description length = %d runes, expected <= %d", len([]rune(got)), MaxDescriptionLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated description should end with ellipsis: %q", got)
	}
	if payload.Products[1].Description != "corta" {
		t.Errorf("short description should be untouched: %q", payload.Products[1].Description)
	}
}

func TestFormatRelevance(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{92, "92"},
		{85.6, "85.6"},
		{100, "100"},
	}
	for _, tc := range cases {
		if got := formatRelevance(tc.pct); got != tc.want {
			t.Errorf("formatRelevance(%f) = %q, expected %q", tc.pct, got, tc.want)
		}
	}
}
