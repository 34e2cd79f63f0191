package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
)

// GeminiService implements the LLMService interface using the Google Gemini
// API. It covers all four call shapes the application needs: plain text,
// chat, image analysis, and schema-constrained structured output, plus
// agentic completion with the GoogleSearch grounding tool.
type GeminiService struct {
	config  *common.GeminiConfig
	retries *RetryConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiService creates a new Gemini LLM service instance.
func NewGeminiService(config *common.GeminiConfig, retries int, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set via MARKETLENS_GEMINI_API_KEY, GEMINI_API_KEY, or gemini.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "gemini-3-flash-preview"
	}

	timeout := common.Duration(config.Timeout, 5*time.Minute)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	retryConfig := NewDefaultRetryConfig()
	if retries > 0 {
		retryConfig.MaxRetries = retries
	}

	service := &GeminiService{
		config:  config,
		retries: retryConfig,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Float32("temperature", config.Temperature).
		Msg("Gemini LLM service initialized")

	return service, nil
}

// GetProviderName returns the provider identifier.
func (s *GeminiService) GetProviderName() string {
	return "gemini"
}

// Complete generates a text completion for the given prompt.
func (s *GeminiService) Complete(ctx context.Context, prompt string) (string, error) {
	return s.Chat(ctx, []interfaces.Message{{Role: "user", Content: prompt}})
}

// Chat generates a completion from a conversation history.
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", err
	}

	config := s.baseConfig()
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	return s.generate(ctx, s.config.Model, contents, config)
}

// AnalyzeImage sends an image with an instruction prompt and returns the
// model's text response.
func (s *GeminiService) AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image data is empty")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	model := s.config.VisionModel
	if model == "" {
		model = s.config.Model
	}

	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		},
	}

	return s.generate(ctx, model, []*genai.Content{content}, s.baseConfig())
}

// CompleteStructured generates a completion constrained to the given JSON
// schema. Gemini enforces the schema server-side via ResponseSchema.
func (s *GeminiService) CompleteStructured(ctx context.Context, prompt string, schema map[string]interface{}) (string, error) {
	config := s.baseConfig()

	genaiSchema, err := convertToGenaiSchema(schema)
	if err != nil {
		return "", fmt.Errorf("failed to convert output schema: %w", err)
	}
	if genaiSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = genaiSchema
	}

	text, err := s.generate(ctx, s.config.Model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
	if err != nil {
		return "", err
	}

	return stripCodeFences(text), nil
}

// CompleteWithSearch runs an agentic completion with the GoogleSearch
// grounding tool available to the model.
func (s *GeminiService) CompleteWithSearch(ctx context.Context, prompt string) (string, error) {
	config := s.baseConfig()
	config.Tools = []*genai.Tool{
		{GoogleSearch: &genai.GoogleSearch{}},
	}

	return s.generate(ctx, s.config.Model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
}

// baseConfig returns the per-call generation config with the configured
// temperature applied.
func (s *GeminiService) baseConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if s.config.Temperature > 0 {
		config.Temperature = genai.Ptr(s.config.Temperature)
	}
	return config
}

// generate makes the API call with retry logic for rate limiting, using
// 45-90 second backoffs to respect Gemini quota windows.
func (s *GeminiService) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= s.retries.MaxRetries; attempt++ {
		resp, apiErr = s.client.Models.GenerateContent(callCtx, model, contents, config)
		if apiErr == nil {
			break
		}

		if attempt == s.retries.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			apiDelay := ExtractRetryDelay(apiErr)
			backoff = s.retries.CalculateBackoff(attempt, apiDelay)
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-callCtx.Done():
			return "", callCtx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("Gemini API call failed after %d retries: %w", s.retries.MaxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}

	return text, nil
}

// convertMessagesToGemini converts []interfaces.Message to Gemini content
// format, extracting the first system message for use as the system
// instruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
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

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}
