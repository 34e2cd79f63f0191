package filings

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/marketlens/internal/interfaces"
)

const shortTextGuard = "The text is very short or noisy, so you MUST be extremely conservative. " +
	"If you cannot clearly find a detail, say 'not clearly specified in the filing'. "

const summaryPromptTemplate = `You are summarizing an official stock-exchange filing / corporate announcement for investors.
You MUST NOT guess or invent details. Only state what is explicitly present in the text
or in the exchange heading. If something is not clearly mentioned, say "not clearly specified in the filing".

Exchange heading (from website):
"%s"

Announcement date (from website):
"%s"

%s

Given the filing text below, write:

1. A clear, short TITLE (max 120 characters) that is consistent with the heading.
2. A concise SUMMARY (max 5 bullet points) that ONLY includes:
   - What happened (as explicitly described)
   - Any key numbers, amounts or dates that are clearly mentioned
   - Impact / relevance to shareholders or business, but ONLY if the text mentions it

If you are unsure about any detail, DO NOT guess. Instead say:
"not clearly specified in the filing" for that point.

Return the answer in EXACTLY this format:

Title: <one-line title>

Summary:
- <point 1>
- <point 2>
- <point 3>

Here is the filing text:

"""%s"""`

// summarizer turns extracted filing text into the Title + bullets output
// format, keeping the model grounded in the text it is given.
type summarizer struct {
	llm           interfaces.LLMService
	promptBudget  int
	minTextLength int
}

// Summarize produces the summary block for one filing and appends the
// source PDF link when known.
func (s *summarizer) Summarize(ctx context.Context, text, heading, date, pdfURL string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if s.promptBudget > 0 && len(trimmed) > s.promptBudget {
		trimmed = trimmed[:s.promptBudget]
	}

	// Below the threshold the extracted text is usually boilerplate or a
	// scanned page, so the model gets an extra conservatism instruction.
	guard := ""
	if len(trimmed) < s.minTextLength {
		guard = shortTextGuard
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, heading, date, guard, trimmed)

	content, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	content = strings.TrimSpace(content)
	if pdfURL != "" {
		content += "\n\nSource PDF: " + pdfURL
	}
	return content, nil
}
