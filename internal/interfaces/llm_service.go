package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService defines the interface for language model operations. The
// application uses three shapes of call: plain text completion (filing
// summaries), image analysis (chart patterns), and schema-constrained
// structured output (pattern verdicts and trading signals).
type LLMService interface {
	// Complete generates a text completion for the given prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Chat generates a completion from a conversation history.
	Chat(ctx context.Context, messages []Message) (string, error)

	// AnalyzeImage sends an image with an instruction prompt and returns
	// the model's text response. mimeType is e.g. "image/png".
	AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)

	// CompleteStructured generates a completion constrained to the given
	// JSON schema and returns the raw JSON text. schema uses the same
	// map-based shape as JSON Schema (type/properties/items/required).
	CompleteStructured(ctx context.Context, prompt string, schema map[string]interface{}) (string, error)

	// CompleteWithSearch runs an agentic completion with a web search tool
	// available to the model, returning the final text response.
	CompleteWithSearch(ctx context.Context, prompt string) (string, error)

	// GetProviderName returns the provider identifier ("gemini" or "claude")
	GetProviderName() string
}

// LLMProviderFactory creates LLM services, routing by explicit provider name
// or by model-name prefix.
type LLMProviderFactory interface {
	// GetService returns the service for the default configured provider.
	GetService() (LLMService, error)

	// GetServiceForModel routes to a provider by model name prefix
	// ("gemini-*" -> gemini, "claude-*" -> claude).
	GetServiceForModel(model string) (LLMService, error)
}
