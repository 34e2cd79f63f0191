package chart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/interfaces"
)

// stubLLM returns canned responses for the two detection stages.
type stubLLM struct {
	visionResponse string
	visionErr      error
	structured     string
	structuredErr  error
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubLLM) AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return s.visionResponse, s.visionErr
}

func (s *stubLLM) CompleteStructured(ctx context.Context, prompt string, schema map[string]interface{}) (string, error) {
	return s.structured, s.structuredErr
}

func (s *stubLLM) CompleteWithSearch(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubLLM) GetProviderName() string { return "stub" }

func TestDetectPatternNormalizedPath(t *testing.T) {
	llm := &stubLLM{
		visionResponse: "```json\n{\"pattern_found\": true, \"pattern_name\": \"Double Bottom\"}\n```",
		structured:     `{"pattern_found": true, "pattern_name": "Double Bottom", "confidence": "moderate", "explanation": "two clear lows"}`,
	}
	detector := NewDetector(llm, arbor.NewLogger())

	pattern, err := detector.DetectPattern(context.Background(), "NSE:TCS", []byte("png"))
	require.NoError(t, err)
	assert.True(t, pattern.PatternFound)
	assert.Equal(t, "Double Bottom", pattern.PatternName)
	assert.Equal(t, "moderate", pattern.Confidence)
}

func TestDetectPatternFallsBackToRawVisionJSON(t *testing.T) {
	llm := &stubLLM{
		visionResponse: `{"pattern_found": true, "pattern_name": "Cup and Handle", "confidence": "high", "explanation": "rounded base with handle"}`,
		structuredErr:  errors.New("model overloaded"),
	}
	detector := NewDetector(llm, arbor.NewLogger())

	pattern, err := detector.DetectPattern(context.Background(), "NSE:TCS", []byte("png"))
	require.NoError(t, err)
	assert.True(t, pattern.PatternFound)
	assert.Equal(t, "Cup and Handle", pattern.PatternName)
	assert.Equal(t, "high", pattern.Confidence)
}

func TestDetectPatternSentinelWhenNothingParses(t *testing.T) {
	llm := &stubLLM{
		visionResponse: "I see what might be a triangle forming",
		structuredErr:  errors.New("model overloaded"),
	}
	detector := NewDetector(llm, arbor.NewLogger())

	pattern, err := detector.DetectPattern(context.Background(), "NSE:TCS", []byte("png"))
	require.NoError(t, err)
	assert.False(t, pattern.PatternFound)
	assert.Equal(t, "ParseError", pattern.PatternName)
	assert.Equal(t, "low", pattern.Confidence)
	assert.Contains(t, pattern.Explanation, "I see what might be a triangle forming")
}

func TestDetectPatternVisionFailureSurfaces(t *testing.T) {
	llm := &stubLLM{visionErr: errors.New("image too large")}
	detector := NewDetector(llm, arbor.NewLogger())

	_, err := detector.DetectPattern(context.Background(), "NSE:TCS", []byte("png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision analysis failed")
}

func TestDetectPatternPartialRawJSONGetsDefaults(t *testing.T) {
	llm := &stubLLM{
		visionResponse: `{"pattern_found": false}`,
		structuredErr:  errors.New("unavailable"),
	}
	detector := NewDetector(llm, arbor.NewLogger())

	pattern, err := detector.DetectPattern(context.Background(), "NSE:TCS", []byte("png"))
	require.NoError(t, err)
	assert.False(t, pattern.PatternFound)
	assert.Equal(t, "ParseError", pattern.PatternName)
	assert.Equal(t, "low", pattern.Confidence)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}

func TestDecodeDataURL(t *testing.T) {
	image, err := decodeDataURL("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), image)

	_, err = decodeDataURL("nonsense")
	require.Error(t, err)
}
