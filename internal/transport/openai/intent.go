package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
)

// defaultSystemPrompt constrains the model to the four allowed actions and a
// strict JSON-only reply. Used when no external prompt file is configured.
const defaultSystemPrompt = `Eres un asistente de compras útil para FluxCommerce, una tienda de comercio electrónico.

REGLAS CRÍTICAS - NUNCA ROMPAS ESTAS REGLAS:
1. NUNCA inventes productos que no existen
2. NUNCA muestres productos sin buscarlos primero en la base de datos
3. SOLO usa las acciones definidas: search, add_to_cart, view_cart, message
4. SIEMPRE busca en la base de datos antes de mostrar productos

INSTRUCCIONES:
- SIEMPRE responde ÚNICAMENTE con JSON válido
- NO agregues texto fuera del JSON
- NO inventes datos de productos

ACCIONES PERMITIDAS (SOLO ESTAS):

Para buscar productos (OBLIGATORIO antes de mostrar cualquier producto):
{"action": "search", "query": "término_de_búsqueda", "message": "Voy a buscar esos productos para ti"}

Para agregar al carrito:
{"action": "add_to_cart", "product_id": "ID_REAL_del_producto", "quantity": 1, "message": "Agregando producto al carrito"}

Para ver carrito:
{"action": "view_cart", "message": "Mostrando tu carrito"}

Para respuesta normal:
{"action": "message", "message": "Tu_respuesta"}

EJEMPLOS CORRECTOS:
Usuario: 'Muéstrame cubos rubik'
Respuesta: {"action": "search", "query": "cubo rubik", "message": "Voy a buscar cubos rubik disponibles para ti"}

Usuario: 'Qué productos tienes de juegos'
Respuesta: {"action": "search", "query": "juegos", "message": "Te voy a mostrar los juegos disponibles"}

NUNCA HAGAS ESTO (EJEMPLO INCORRECTO):
{"action": "view_products", "products": [...]}  <- ESTO ESTÁ PROHIBIDO

RECUERDA: Siempre busca primero, nunca inventes productos.`

// IntentParser turns free-form user messages into structured intents using a
// chat completion model.
type IntentParser struct {
	client       *openai.Client
	model        string
	systemPrompt string
	timeout      time.Duration
	logger       *zap.Logger
}

// IntentConfig holds the assistant model settings.
type IntentConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	PromptPath string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewIntentParser creates a chat-completion intent parser. When PromptPath is
// set and readable its contents replace the built-in system prompt.
func NewIntentParser(cfg *IntentConfig) *IntentParser {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	prompt := defaultSystemPrompt
	if cfg.PromptPath != "" {
		data, err := os.ReadFile(cfg.PromptPath)
		if err != nil {
			cfg.Logger.Warn("unable to read chat prompt file, using built-in prompt",
				zap.String("path", cfg.PromptPath),
				zap.Error(err))
		} else {
			prompt = string(data)
		}
	}

	return &IntentParser{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		systemPrompt: prompt,
		timeout:      timeout,
		logger:       cfg.Logger,
	}
}

// Parse sends the user message to the model and decodes the reply into an
// intent. Malformed model output degrades to a plain message intent rather
// than an error; only transport failures are returned.
func (p *IntentParser) Parse(ctx context.Context, message string) (domain.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return domain.Intent{}, parseChatAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Intent{}, fmt.Errorf("empty chat completion response: %w", domain.ErrEmbeddingProviderError)
	}

	return ParseIntentReply(resp.Choices[0].Message.Content), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *IntentParser) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("assistant provider unavailable: %w", err)
	}
	return nil
}

// ParseIntentReply decodes a model reply into an intent. It tolerates the
// usual model misbehaviors: an intent JSON nested inside a message intent,
// and JSON surrounded by prose. Anything unrecognizable becomes a plain
// message intent carrying the raw reply.
func ParseIntentReply(reply string) domain.Intent {
	var intent domain.Intent
	if err := json.Unmarshal([]byte(reply), &intent); err == nil && intent.Action != "" {
		return salvageNested(intent)
	}

	// Prose around the JSON: take the outermost brace pair.
	if strings.Contains(reply, `"action"`) {
		start := strings.Index(reply, "{")
		end := strings.LastIndex(reply, "}")
		if start >= 0 && end > start {
			var extracted domain.Intent
			if err := json.Unmarshal([]byte(reply[start:end+1]), &extracted); err == nil && extracted.Action != "" {
				return salvageNested(extracted)
			}
		}
	}

	return domain.MessageIntent(reply)
}

// salvageNested unwraps the case where the model double-encodes: an intent
// JSON placed in the message field of a message intent.
func salvageNested(intent domain.Intent) domain.Intent {
	intent.Action = strings.ToLower(intent.Action)
	if intent.Action != domain.ActionMessage || intent.Message == "" {
		return intent
	}

	var nested domain.Intent
	if err := json.Unmarshal([]byte(intent.Message), &nested); err == nil && nested.Action != "" {
		nested.Action = strings.ToLower(nested.Action)
		return nested
	}
	return intent
}

func parseChatAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chat API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}
	return fmt.Errorf("chat completion failed: %w", err)
}
