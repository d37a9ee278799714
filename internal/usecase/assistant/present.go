package assistant

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ivanbanos/FluxCommerce/internal/usecase/search"
)

// Presentation policy constants. The branch thresholds are product policy,
// kept as named values rather than inlined literals.
const (
	// MaxListed caps how many products a list-style reply shows.
	MaxListed = 5

	// MaxDescriptionLen caps the truncated description in list entries.
	MaxDescriptionLen = 60
)

// Payload actions consumed by the frontend.
const (
	ActionNoResults            = "no_results"
	ActionSingleRecommendation = "single_recommendation"
	ActionMultipleOptions      = "multiple_options"
	ActionTooManyResults       = "too_many_results"
)

// ProductProjection is the client-facing view of a ranked product.
type ProductProjection struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	// Relevance is the combined score as a percentage, one decimal place.
	Relevance float64 `json:"relevance"`
}

// Payload is the structured reply pushed to the client alongside the spoken
// message.
type Payload struct {
	Action     string              `json:"action"`
	Message    string              `json:"message"`
	Query      string              `json:"query,omitempty"`
	Products   []ProductProjection `json:"products,omitempty"`
	TotalCount int                 `json:"totalCount,omitempty"`
	ProductID  string              `json:"product_id,omitempty"`
	Quantity   int                 `json:"quantity,omitempty"`
	Items      []CartItem          `json:"items,omitempty"`
}

// CartItem is one cart line in a view_cart payload.
type CartItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Present classifies an ordered result sequence by cardinality and formats
// the user-facing reply. It performs no ranking; the input order is trusted.
func Present(results []search.Result, query string) Payload {
	switch n := len(results); {
	case n == 0:
		return presentNone(query)
	case n == 1:
		return presentSingle(results[0], query)
	case n <= MaxListed:
		return presentList(results, query)
	default:
		return presentOverflow(results, query)
	}
}

func presentNone(query string) Payload {
	msg := fmt.Sprintf(
		"No encontré productos que coincidan con '%s'. "+
			"Intenta con un término diferente o más general, por ejemplo: juegos, hogar, deportes o tecnología.",
		query)
	return Payload{
		Action:  ActionNoResults,
		Message: msg,
		Query:   query,
	}
}

func presentSingle(r search.Result, query string) Payload {
	p := project(r)
	msg := fmt.Sprintf(
		"Te recomiendo *%s* por $%s (relevancia %s%%). %s ¿Quieres que lo agregue a tu carrito?",
		p.Name, p.Price.StringFixed(2), formatRelevance(p.Relevance), r.Product.Description)
	return Payload{
		Action:   ActionSingleRecommendation,
		Message:  msg,
		Query:    query,
		Products: []ProductProjection{p},
	}
}

func presentList(results []search.Result, query string) Payload {
	var b strings.Builder
	fmt.Fprintf(&b, "Encontré %d productos relacionados con '%s':\n", len(results), query)

	projections := make([]ProductProjection, len(results))
	for i, r := range results {
		p := project(r)
		projections[i] = p
		fmt.Fprintf(&b, "%d. *%s* - $%s (relevancia %s%%): %s\n",
			i+1, p.Name, p.Price.StringFixed(2), formatRelevance(p.Relevance), p.Description)
	}
	b.WriteString("¿Cuál te interesa? Puedes elegirlo por nombre o por número.")

	return Payload{
		Action:   ActionMultipleOptions,
		Message:  b.String(),
		Query:    query,
		Products: projections,
	}
}

func presentOverflow(results []search.Result, query string) Payload {
	total := len(results)
	top := results[:MaxListed]

	var b strings.Builder
	fmt.Fprintf(&b, "Encontré %d productos relacionados con '%s'. Estos son los %d más relevantes:\n",
		total, query, MaxListed)

	projections := make([]ProductProjection, len(top))
	for i, r := range top {
		p := project(r)
		projections[i] = p
		fmt.Fprintf(&b, "%d. *%s* - $%s (relevancia %s%%): %s\n",
			i+1, p.Name, p.Price.StringFixed(2), formatRelevance(p.Relevance), p.Description)
	}
	b.WriteString("Intenta con un término más específico para afinar la búsqueda.")

	return Payload{
		Action:     ActionTooManyResults,
		Message:    b.String(),
		Query:      query,
		Products:   projections,
		TotalCount: total,
	}
}

func project(r search.Result) ProductProjection {
	return ProductProjection{
		ID:          r.Product.ID,
		Name:        r.Product.Name,
		Description: truncate(r.Product.Description, MaxDescriptionLen),
		Price:       r.Product.Price,
		Image:       r.Product.CoverImage(),
		Relevance:   math.Round(r.Score*1000) / 10,
	}
}

// truncate shortens s to at most max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// formatRelevance renders a percentage with at most one decimal place.
func formatRelevance(pct float64) string {
	if pct == math.Trunc(pct) {
		return fmt.Sprintf("%.0f", pct)
	}
	return fmt.Sprintf("%.1f", pct)
}
