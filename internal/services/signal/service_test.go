package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

type searchLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *searchLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *searchLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", errors.New("not implemented")
}

func (s *searchLLM) AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *searchLLM) CompleteStructured(ctx context.Context, prompt string, schema map[string]interface{}) (string, error) {
	return "", errors.New("not implemented")
}

func (s *searchLLM) CompleteWithSearch(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *searchLLM) GetProviderName() string { return "search" }

func entryWithRatios() *models.StockCacheEntry {
	return &models.StockCacheEntry{
		Symbol: "TCS.NS",
		Ratios: map[string]float64{
			"ROE":         45.0,
			"Debt/Equity": 0.2,
		},
	}
}

func TestSynthesizeValidOutput(t *testing.T) {
	llm := &searchLLM{response: `{
		"ticker": "TCS.NS",
		"bias": "bullish",
		"confidence": 72,
		"reasons": ["High ROE of 45.0", "Low leverage"],
		"risks": ["Sector demand softness"],
		"latest_headlines": ["Q1 results beat expectations"],
		"note": "Educational view only."
	}`}

	svc := NewService(llm, arbor.NewLogger())
	result, err := svc.Synthesize(context.Background(), entryWithRatios())
	require.NoError(t, err)

	assert.Equal(t, "bullish", result.Bias)
	assert.Equal(t, 72.0, result.Confidence)
	assert.Len(t, result.Reasons, 2)

	// Ratios are passed verbatim in the prompt.
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "ROE: 45.0000")
	assert.Contains(t, llm.prompts[0], "Debt/Equity: 0.2000")
}

func TestSynthesizeFillsDefaults(t *testing.T) {
	llm := &searchLLM{response: "```json\n" + `{"bias": "neutral", "confidence": 50, "reasons": ["mixed signals"]}` + "\n```"}

	svc := NewService(llm, arbor.NewLogger())
	result, err := svc.Synthesize(context.Background(), entryWithRatios())
	require.NoError(t, err)

	assert.Equal(t, "TCS.NS", result.Ticker)
	assert.Equal(t, DefaultNote, result.Note)
}

func TestSynthesizeRejectsInvalidBias(t *testing.T) {
	llm := &searchLLM{response: `{"ticker": "TCS.NS", "bias": "strong buy", "confidence": 90, "reasons": ["momentum"]}`}

	svc := NewService(llm, arbor.NewLogger())
	_, err := svc.Synthesize(context.Background(), entryWithRatios())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation")
}

func TestSynthesizeRejectsConfidenceOutOfRange(t *testing.T) {
	llm := &searchLLM{response: `{"ticker": "TCS.NS", "bias": "bullish", "confidence": 140, "reasons": ["momentum"]}`}

	svc := NewService(llm, arbor.NewLogger())
	_, err := svc.Synthesize(context.Background(), entryWithRatios())
	require.Error(t, err)
}

func TestSynthesizeAcceptsEmptyListFields(t *testing.T) {
	// A sparse but well-formed signal is valid: bias and confidence must be
	// set, the list fields may be empty.
	llm := &searchLLM{response: `{"ticker": "TCS.NS", "bias": "bullish", "confidence": 60, "reasons": []}`}

	svc := NewService(llm, arbor.NewLogger())
	result, err := svc.Synthesize(context.Background(), entryWithRatios())
	require.NoError(t, err)

	assert.Equal(t, "bullish", result.Bias)
	assert.Equal(t, 60.0, result.Confidence)
	assert.Empty(t, result.Reasons)
	assert.Empty(t, result.Risks)
}

func TestSynthesizeRejectsMalformedJSON(t *testing.T) {
	llm := &searchLLM{response: "the stock looks bullish to me"}

	svc := NewService(llm, arbor.NewLogger())
	_, err := svc.Synthesize(context.Background(), entryWithRatios())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestSynthesizeRequiresRatios(t *testing.T) {
	svc := NewService(&searchLLM{}, arbor.NewLogger())

	_, err := svc.Synthesize(context.Background(), &models.StockCacheEntry{Symbol: "TCS.NS"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ratios")
}
