// Package pdfextract wraps the external PDF-to-text extractor — stage 1 of
// the ingestion pipeline.
package pdfextract

import (
	"bytes"
	"fmt"

	docextract "github.com/m43i/go-doc-extract"
)

// Extract turns a PDF byte blob into its raw text content. Normalisation of
// broken words (pkg/ingest.Normalize) happens afterwards; this stage only
// concerns itself with getting a string out of the PDF.
func Extract(pdf []byte) (string, error) {
	text, err := docextract.ExtractText(bytes.NewReader(pdf))
	if err != nil {
		return "", fmt.Errorf("pdfextract: extracting text: %w", err)
	}
	return text, nil
}
