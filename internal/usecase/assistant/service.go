// Package assistant drives the chat flow: intent parsing, dispatch to search
// and cart operations, and result presentation over the push transport.
package assistant

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
	"github.com/ivanbanos/FluxCommerce/internal/metrics"
)

// Fallback user copy. The assistant never surfaces raw errors to the user.
const (
	msgParserError    = "Lo siento, ocurrió un error al procesar tu solicitud."
	msgUnknownAction  = "Lo siento, hubo un error procesando tu solicitud. ¿Podrías reformular tu pregunta?"
	msgAddToCart      = "Perfecto, voy a agregar ese producto a tu carrito."
	msgProductMissing = "No pude encontrar ese producto. ¿Quieres que busque algo similar?"
	msgCartError      = "No pude actualizar tu carrito en este momento. Inténtalo de nuevo."
	msgViewCart       = "Aquí tienes tu carrito:"
)

// Service is the assistant intent dispatcher. One message in, one terminal
// branch out; no state is kept between messages beyond the cart store.
type Service struct {
	parser   IntentParser
	searcher Searcher
	products ProductReader
	cart     CartStore
	pub      Publisher
	logger   *zap.Logger
}

// NewService wires the dispatcher.
func NewService(
	parser IntentParser, searcher Searcher, products ProductReader,
	cart CartStore, pub Publisher, logger *zap.Logger,
) *Service {
	return &Service{
		parser:   parser,
		searcher: searcher,
		products: products,
		cart:     cart,
		pub:      pub,
		logger:   logger,
	}
}

// chatMessage is the ReceiveMessage event body.
type chatMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleMessage processes one user message end to end and returns the
// structured reply. Failures never propagate; every error path degrades to a
// user-visible message payload.
func (s *Service) HandleMessage(ctx context.Context, userID, storeID, message string) Payload {
	intent, err := s.parser.Parse(ctx, message)
	if err != nil {
		s.logger.Error("Intent parsing failed",
			zap.String("user_id", userID),
			zap.Error(err))
		payload := Payload{Action: domain.ActionMessage, Message: msgParserError}
		s.pub.Emit(userID, EventAction, payload)
		return payload
	}

	// Interim notify: show the model's short message while the action runs.
	if intent.Message != "" {
		s.pub.Emit(userID, EventMessage, chatMessage{
			Sender:    "assistant",
			Text:      intent.Message,
			Timestamp: time.Now().UTC(),
		})
	}

	metrics.AssistantIntentsTotal.WithLabelValues(intent.Action).Inc()

	switch intent.Action {
	case domain.ActionSearch:
		return s.handleSearch(ctx, userID, storeID, intent)
	case domain.ActionAddToCart:
		return s.handleAddToCart(ctx, userID, intent)
	case domain.ActionViewCart:
		return s.handleViewCart(ctx, userID, intent)
	case domain.ActionMessage:
		payload := Payload{Action: domain.ActionMessage, Message: intent.Message}
		s.pub.Emit(userID, EventAction, payload)
		return payload
	default:
		s.logger.Warn("Unrecognized assistant intent",
			zap.String("user_id", userID),
			zap.String("action", intent.Action))
		payload := Payload{Action: domain.ActionMessage, Message: msgUnknownAction}
		s.pub.Emit(userID, EventAction, payload)
		return payload
	}
}

func (s *Service) handleSearch(ctx context.Context, userID, storeID string, intent domain.Intent) Payload {
	results := s.searcher.Search(ctx, intent.Query, storeID, 0)
	payload := Present(results, intent.Query)
	s.pub.Emit(userID, EventAction, payload)

	s.logger.Debug("Search intent dispatched",
		zap.String("user_id", userID),
		zap.String("query", intent.Query),
		zap.Int("results", len(results)))
	return payload
}

func (s *Service) handleAddToCart(ctx context.Context, userID string, intent domain.Intent) Payload {
	quantity := intent.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	product, err := s.products.Get(ctx, intent.ProductID)
	if err != nil {
		s.logger.Warn("Add-to-cart product lookup failed",
			zap.String("user_id", userID),
			zap.String("product_id", intent.ProductID),
			zap.Error(err))
		payload := Payload{Action: domain.ActionMessage, Message: msgProductMissing}
		s.pub.Emit(userID, EventAction, payload)
		return payload
	}

	if err := s.cart.Add(ctx, userID, product.ID, quantity); err != nil {
		s.logger.Error("Cart update failed",
			zap.String("user_id", userID),
			zap.String("product_id", product.ID),
			zap.Error(err))
		payload := Payload{Action: domain.ActionMessage, Message: msgCartError}
		s.pub.Emit(userID, EventAction, payload)
		return payload
	}

	message := intent.Message
	if message == "" {
		message = msgAddToCart
	}
	payload := Payload{
		Action:    domain.ActionAddToCart,
		Message:   message,
		ProductID: product.ID,
		Quantity:  quantity,
	}
	s.pub.Emit(userID, EventAction, payload)
	return payload
}

func (s *Service) handleViewCart(ctx context.Context, userID string, intent domain.Intent) Payload {
	items, err := s.cart.Items(ctx, userID)
	if err != nil {
		s.logger.Error("Cart fetch failed",
			zap.String("user_id", userID),
			zap.Error(err))
		payload := Payload{Action: domain.ActionMessage, Message: msgCartError}
		s.pub.Emit(userID, EventAction, payload)
		return payload
	}

	lines := make([]CartItem, 0, len(items))
	for productID, quantity := range items {
		line := CartItem{ProductID: productID, Quantity: quantity}
		if p, err := s.products.Get(ctx, productID); err == nil {
			line.Name = p.Name
		}
		lines = append(lines, line)
	}

	message := intent.Message
	if message == "" {
		message = msgViewCart
	}
	payload := Payload{
		Action:  domain.ActionViewCart,
		Message: message,
		Items:   lines,
	}
	s.pub.Emit(userID, EventAction, payload)
	return payload
}
