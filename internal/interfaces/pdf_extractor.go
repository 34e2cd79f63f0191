// -----------------------------------------------------------------------
// PDF Extractor Interface - Extract text content from PDF documents
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// PDFExtractor extracts text from filing PDF documents. Implementations
// must be safe for concurrent use.
type PDFExtractor interface {
	// ExtractText extracts all text content from an in-memory PDF.
	// Returns the full text content concatenated from all pages.
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}
