// -----------------------------------------------------------------------
// PDF Extractor Service - Extract text content from filing PDFs
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/interfaces"
)

// Extractor implements the PDFExtractor interface using pdfcpu. pdfcpu
// works on files, so each extraction round-trips through a temp directory.
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
	seq     atomic.Int64
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "marketlens-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ExtractText extracts all text content from an in-memory PDF.
func (e *Extractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", fmt.Errorf("pdf data is empty")
	}

	// Unique per-call names so concurrent extractions don't collide
	seq := e.seq.Add(1)
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("extract_%d_%d.pdf", os.Getpid(), seq))
	if err := os.WriteFile(tempFile, pdf, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	defer os.Remove(tempFile)

	outDir := filepath.Join(e.tempDir, fmt.Sprintf("pages_%d_%d", os.Getpid(), seq))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, nil, nil); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	text, err := collectPageText(outDir)
	if err != nil {
		return "", err
	}

	e.logger.Debug().
		Int("pdf_bytes", len(pdf)).
		Int("text_length", len(text)).
		Msg("Extracted PDF text")

	return text, nil
}

// collectPageText concatenates the per-page content files pdfcpu wrote,
// in page order.
func collectPageText(outDir string) (string, error) {
	files, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction dir: %w", err)
	}

	pageTexts := make(map[int]string)
	var pageNums []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
				continue
			}
		}

		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = string(content)
		pageNums = append(pageNums, pageNum)
	}

	sort.Ints(pageNums)

	var builder strings.Builder
	for i, pageNum := range pageNums {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(pageTexts[pageNum])
	}

	return builder.String(), nil
}
