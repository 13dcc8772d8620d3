package documents

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"

	"github.com/mayhapottabi/docchat/internal/errs"
)

// DefaultMinTextChars is the least text a PDF must yield to be ingested.
const DefaultMinTextChars = 50

const unextractableMessage = "Could not extract enough text from this PDF. It may be a scanned or image-only document."

// TextExtractor turns a document payload into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFExtractor extracts page text with MuPDF.
type PDFExtractor struct {
	minChars int
}

var _ TextExtractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDF extractor that rejects documents yielding
// fewer than minChars non-space characters.
func NewPDFExtractor(minChars int) *PDFExtractor {
	if minChars <= 0 {
		minChars = DefaultMinTextChars
	}
	return &PDFExtractor{minChars: minChars}
}

// Extract returns the text of every page that has any, separated by blank
// lines. A malformed payload is an extraction error; a readable PDF with
// too little text is reported as unextractable content.
func (p *PDFExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", errs.E(errs.KindExtraction, "open pdf", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", errs.E(errs.KindExtraction, "extract text", fmt.Errorf("page %d: %w", i+1, err))
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	text := strings.Join(pages, "\n\n")
	if err := checkExtracted(text, p.minChars); err != nil {
		return "", err
	}
	return text, nil
}

func checkExtracted(text string, minChars int) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minChars {
		return errs.Unextractable(unextractableMessage)
	}
	return nil
}
