package assistant

import (
	"context"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
	"github.com/ivanbanos/FluxCommerce/internal/usecase/search"
)

// IntentParser turns a raw user message into a structured intent.
// Implemented by transport/openai.
type IntentParser interface {
	Parse(ctx context.Context, message string) (domain.Intent, error)
}

// Searcher is the vector search engine as the dispatcher consumes it.
type Searcher interface {
	Search(ctx context.Context, query, storeID string, limit int) []search.Result
}

// ProductReader looks up a single product for cart operations.
type ProductReader interface {
	Get(ctx context.Context, id string) (domain.Product, error)
}

// CartStore holds per-user cart state. Implemented by repository/cart.
type CartStore interface {
	Add(ctx context.Context, userID, productID string, quantity int) error
	Items(ctx context.Context, userID string) (map[string]int, error)
}

// Publisher delivers events to a user's active connections. Delivery is fire
// and forget; transport failures are the publisher's concern, not the
// dispatcher's. Implemented by transport/ws.
type Publisher interface {
	Emit(userID, event string, payload any)
}

// Push event names the frontend subscribes to.
const (
	EventMessage = "ReceiveMessage"
	EventAction  = "ReceiveAction"
)
