package domain

// Intent actions the assistant model is allowed to produce. Anything else is
// routed to the generic fallback.
const (
	ActionSearch    = "search"
	ActionAddToCart = "add_to_cart"
	ActionViewCart  = "view_cart"
	ActionMessage   = "message"
)

// Intent is the structured output of the intent parser for one user message.
type Intent struct {
	Action    string `json:"action"`
	Message   string `json:"message,omitempty"`
	Query     string `json:"query,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// MessageIntent wraps plain assistant text in a message intent.
func MessageIntent(text string) Intent {
	return Intent{Action: ActionMessage, Message: text}
}
