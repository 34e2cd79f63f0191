package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

const visionPrompt = `You are an expert stock market technical analyst.
You look at a candlestick chart image and identify if any classical chart pattern
is clearly visible, such as:
- Head and Shoulders
- Inverse Head and Shoulders
- Double Top / Double Bottom
- Cup and Handle
- Ascending / Descending Triangle
- Symmetrical Triangle
- Bullish / Bearish Flag
- Wedge patterns (Rising/Falling)
- Rounding Bottom
- Trend reversal / breakout setup

Respond only in JSON like this example:

{
  "pattern_found": true,
  "pattern_name": "Double Bottom",
  "confidence": "moderate",
  "explanation": "two clear lows forming W-shape near same level, strong bounce after second low"
}

If no clear pattern appears, return:

{
  "pattern_found": false,
  "pattern_name": "None",
  "confidence": "low",
  "explanation": "No reliable or identifiable classical chart pattern present"
}`

const normalizeInstruction = `You are given the raw JSON or text output from a separate vision model that analyzed a candlestick chart. The output may be slightly malformed JSON, but it usually tries to follow this structure: {pattern_found, pattern_name, confidence, explanation}.

Your job is to convert it into a clean JSON object with exactly these fields:
- pattern_found: boolean
- pattern_name: string (use 'None' if nothing clear)
- confidence: string label like 'low', 'moderate', or 'high'
- explanation: short text summarizing what pattern (or lack of pattern) is present.

Raw vision model output:
`

// chartPatternSchema constrains the normalization call's output.
var chartPatternSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"pattern_found": map[string]interface{}{"type": "boolean"},
		"pattern_name":  map[string]interface{}{"type": "string"},
		"confidence":    map[string]interface{}{"type": "string"},
		"explanation":   map[string]interface{}{"type": "string"},
	},
	"required": []string{"pattern_found", "pattern_name", "confidence", "explanation"},
}

// Detector runs the two-stage pattern detection: a vision call describes
// the chart, then a schema-constrained call normalizes the description.
// DetectPattern is total: malformed model output degrades through fallbacks
// to a sentinel verdict instead of failing.
type Detector struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewDetector creates a pattern detector backed by the given LLM service.
func NewDetector(llm interfaces.LLMService, logger arbor.ILogger) *Detector {
	return &Detector{
		llm:    llm,
		logger: logger,
	}
}

// DetectPattern analyzes a chart image and returns a fully populated
// verdict. Only the vision call itself can fail; everything downstream
// falls back to the ParseError sentinel.
func (d *Detector) DetectPattern(ctx context.Context, symbol string, image []byte) (*models.ChartPattern, error) {
	raw, err := d.llm.AnalyzeImage(ctx, visionPrompt, image, "image/png")
	if err != nil {
		return nil, fmt.Errorf("vision analysis failed: %w", err)
	}
	clean := stripFences(raw)

	normalized, err := d.llm.CompleteStructured(ctx, normalizeInstruction+clean, chartPatternSchema)
	if err == nil {
		var pattern models.ChartPattern
		if jsonErr := json.Unmarshal([]byte(stripFences(normalized)), &pattern); jsonErr == nil {
			return &pattern, nil
		}
		err = fmt.Errorf("normalized output was not valid JSON")
	}

	d.logger.Warn().
		Str("symbol", symbol).
		Err(err).
		Msg("Pattern normalization failed, falling back to raw vision output")

	return parseRawVerdict(clean, err), nil
}

// parseRawVerdict attempts a direct parse of the stage-1 output, filling
// missing fields with defaults. When the output is not JSON at all it
// returns the ParseError sentinel carrying the raw text for diagnosis.
func parseRawVerdict(clean string, normErr error) *models.ChartPattern {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &data); err != nil {
		return &models.ChartPattern{
			PatternFound: false,
			PatternName:  "ParseError",
			Confidence:   "low",
			Explanation:  fmt.Sprintf("Could not parse model JSON. Raw output: %s", clean),
		}
	}

	pattern := &models.ChartPattern{
		PatternName: "ParseError",
		Confidence:  "low",
		Explanation: fmt.Sprintf("Normalization failed (%v); used raw vision JSON.", normErr),
	}
	if found, ok := data["pattern_found"].(bool); ok {
		pattern.PatternFound = found
	}
	if name, ok := data["pattern_name"].(string); ok && name != "" {
		pattern.PatternName = name
	}
	if confidence, ok := data["confidence"].(string); ok && confidence != "" {
		pattern.Confidence = confidence
	}
	if explanation, ok := data["explanation"].(string); ok && explanation != "" {
		pattern.Explanation = explanation
	}
	return pattern
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
