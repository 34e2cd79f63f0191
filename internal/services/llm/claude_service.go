package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
)

// ClaudeService implements the LLMService interface using the Anthropic
// Claude API. Claude has no server-side response schema, so structured
// output is enforced by prompt and validated by the caller.
type ClaudeService struct {
	config    *common.ClaudeConfig
	retries   *RetryConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a new Claude LLM service instance.
func NewClaudeService(config *common.ClaudeConfig, retries int, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set via ANTHROPIC_API_KEY, MARKETLENS_CLAUDE_API_KEY, or claude.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "claude-haiku-3-5-20241022"
	}

	timeout := common.Duration(config.Timeout, 5*time.Minute)

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	retryConfig := NewDefaultRetryConfig()
	if retries > 0 {
		retryConfig.MaxRetries = retries
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	service := &ClaudeService{
		config:    config,
		retries:   retryConfig,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized")

	return service, nil
}

// GetProviderName returns the provider identifier.
func (s *ClaudeService) GetProviderName() string {
	return "claude"
}

// Complete generates a text completion for the given prompt.
func (s *ClaudeService) Complete(ctx context.Context, prompt string) (string, error) {
	return s.Chat(ctx, []interfaces.Message{{Role: "user", Content: prompt}})
}

// Chat generates a completion from a conversation history.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", err
	}

	params := s.baseParams(claudeMessages, systemText)
	return s.generate(ctx, params)
}

// AnalyzeImage sends an image with an instruction prompt and returns the
// model's text response.
func (s *ClaudeService) AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image data is empty")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	encoded := base64.StdEncoding.EncodeToString(image)
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(
			anthropic.NewImageBlockBase64(mimeType, encoded),
			anthropic.NewTextBlock(prompt),
		),
	}

	return s.generate(ctx, s.baseParams(messages, ""))
}

// CompleteStructured generates a completion constrained to the given JSON
// schema. The schema is embedded in the prompt and the response is fenced-
// JSON tolerant; callers validate the parsed result.
func (s *ClaudeService) CompleteStructured(ctx context.Context, prompt string, schema map[string]interface{}) (string, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal output schema: %w", err)
	}

	structuredPrompt := fmt.Sprintf(
		"%s\n\nRespond ONLY with a single JSON object matching this JSON schema, with no surrounding text or markdown:\n%s",
		prompt, string(schemaJSON))

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(structuredPrompt)),
	}

	text, err := s.generate(ctx, s.baseParams(messages, ""))
	if err != nil {
		return "", err
	}

	return stripCodeFences(text), nil
}

// CompleteWithSearch runs an agentic completion with the web search server
// tool available to the model, hard-capped at a single use.
func (s *ClaudeService) CompleteWithSearch(ctx context.Context, prompt string) (string, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}

	params := s.baseParams(messages, "")
	params.Tools = webSearchTools()

	return s.generate(ctx, params)
}

// webSearchTools builds the web search tool list. MaxUses enforces the
// one-search-per-completion contract server-side; the prompt alone is not
// a guarantee.
func webSearchTools() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
				MaxUses: anthropic.Int(1),
			},
		},
	}
}

// baseParams builds the request parameters with model, token and
// temperature defaults applied.
func (s *ClaudeService) baseParams(messages []anthropic.MessageParam, systemText string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  messages,
	}

	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	return params
}

// generate makes the API call with retry logic for rate limiting.
func (s *ClaudeService) generate(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= s.retries.MaxRetries; attempt++ {
		resp, apiErr = s.client.Messages.New(callCtx, params)
		if apiErr == nil {
			break
		}

		if attempt == s.retries.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = s.retries.CalculateBackoff(attempt, 0)
		}

		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Claude API call")

		select {
		case <-callCtx.Done():
			return "", callCtx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("Claude API call failed after %d retries: %w", s.retries.MaxRetries, apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}

	return text.String(), nil
}

// convertMessagesToClaude converts []interfaces.Message to Claude message
// format, extracting the first system message for the System parameter.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}
