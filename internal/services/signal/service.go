// Package signal synthesizes a cautious directional bias for a symbol from
// its precomputed ratios, with one round of web search available to the
// model for recent headlines.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// DefaultNote is used when the model omits the disclaimer.
const DefaultNote = "This is an AI-generated educational view based on public information and ratios, not financial advice."

const synthesisPromptTemplate = `You are a cautious stock analysis assistant.
You receive PRE-COMPUTED financial ratios for one stock. Use the ratios like a real analyst
(ROE, ROCE, Debt/Equity, margins, liquidity, etc.) and combine them with anything relevant you
find via web search about the company's recent news.

Strict rules:
- Use ONLY the supplied ratios for any numeric claim. Do NOT perform your own arithmetic.
- NEVER tell the user to buy or sell, and NEVER give exact targets or stop-loss levels.
- ALWAYS set "bias" and "confidence", even when reasons and risks are sparse.
- Use at most one web search.

Ticker: %s

Ratios:
%s

Respond ONLY with a JSON object with exactly these fields:
- ticker: string
- bias: "bullish", "neutral" or "bearish"
- confidence: number from 0 to 100
- reasons: array of short bullet strings combining fundamentals and web info
- risks: array of short risk/caution strings
- latest_headlines: array of short headline takeaways from web search, if used
- note: safety disclaimer string`

// Service implements interfaces.SignalService. Output that fails schema
// validation is treated as a source failure; there is no local fallback.
type Service struct {
	llm      interfaces.LLMService
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates a signal synthesis service.
func NewService(llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		llm:      llm,
		validate: validator.New(),
		logger:   logger,
	}
}

// Synthesize implements interfaces.SignalService. Requires the entry to
// carry computed ratios; the model never sees raw statement data.
func (s *Service) Synthesize(ctx context.Context, entry *models.StockCacheEntry) (*models.SignalResult, error) {
	if len(entry.Ratios) == 0 {
		return nil, fmt.Errorf("no ratios available for signal synthesis")
	}

	prompt := fmt.Sprintf(synthesisPromptTemplate, entry.Symbol, formatRatios(entry.Ratios))

	raw, err := s.llm.CompleteWithSearch(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("signal generation failed: %w", err)
	}

	var result models.SignalResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		return nil, fmt.Errorf("signal output was not valid JSON: %w", err)
	}

	if result.Ticker == "" {
		result.Ticker = entry.Symbol
	}
	if result.Note == "" {
		result.Note = DefaultNote
	}

	if err := s.validate.Struct(&result); err != nil {
		return nil, fmt.Errorf("signal output failed schema validation: %w", err)
	}

	s.logger.Debug().
		Str("symbol", entry.Symbol).
		Str("bias", result.Bias).
		Float64("confidence", result.Confidence).
		Msg("Synthesized trading signal")

	return &result, nil
}

// formatRatios renders the ratio map as stable, sorted "name: value" lines.
func formatRatios(ratios map[string]float64) string {
	names := make([]string, 0, len(ratios))
	for name := range ratios {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %.4f\n", name, ratios[name])
	}
	return b.String()
}

// stripFences removes a surrounding markdown code fence from model output.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
