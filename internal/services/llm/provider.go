package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// ProviderFactory creates and caches AI provider services, routing by
// explicit provider name or by model-name prefix.
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger

	mu       sync.Mutex
	services map[ProviderType]interfaces.LLMService
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig: geminiConfig,
		claudeConfig: claudeConfig,
		llmConfig:    llmConfig,
		logger:       logger,
		services:     make(map[ProviderType]interfaces.LLMService),
	}
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-haiku-3-5-20241022" -> Claude
// - "claude/claude-haiku-3-5-20241022" -> Claude (with prefix)
// - "gemini-3-flash-preview" -> Gemini
// - "gemini/gemini-3-flash-preview" -> Gemini (with prefix)
// - Empty string -> uses default provider from config
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	if model == "" {
		return ProviderType(f.llmConfig.DefaultProvider)
	}

	model = strings.ToLower(model)

	// Check for explicit provider prefix
	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return ProviderGemini
	}

	// Check for model name patterns
	if strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}

	// Default to configured provider
	return ProviderType(f.llmConfig.DefaultProvider)
}

// GetService returns the service for the default configured provider.
func (f *ProviderFactory) GetService() (interfaces.LLMService, error) {
	return f.serviceFor(ProviderType(f.llmConfig.DefaultProvider))
}

// GetServiceForModel routes to a provider by model name prefix.
func (f *ProviderFactory) GetServiceForModel(model string) (interfaces.LLMService, error) {
	return f.serviceFor(f.DetectProvider(model))
}

// serviceFor returns the cached service for a provider, creating it on
// first use.
func (f *ProviderFactory) serviceFor(provider ProviderType) (interfaces.LLMService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if service, ok := f.services[provider]; ok {
		return service, nil
	}

	var (
		service interfaces.LLMService
		err     error
	)

	switch provider {
	case ProviderClaude:
		service, err = NewClaudeService(f.claudeConfig, f.llmConfig.MaxRetries, f.logger)
	case ProviderGemini:
		service, err = NewGeminiService(f.geminiConfig, f.llmConfig.MaxRetries, f.logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s service: %w", provider, err)
	}

	f.services[provider] = service
	return service, nil
}
