package documents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayhapottabi/docchat/internal/documents/documentstest"
	"github.com/mayhapottabi/docchat/internal/errs"
)

func TestPDFExtractor_ExtractsEveryPage(t *testing.T) {
	pdf := documentstest.PDF(
		"The warranty covers manufacturing defects for a period of twenty four months from delivery.",
		"Returns are accepted within thirty days when the original packaging is intact.",
	)

	text, err := NewPDFExtractor(DefaultMinTextChars).Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Contains(t, text, "warranty")
	assert.Contains(t, text, "thirty days")
	assert.Less(t, strings.Index(text, "warranty"), strings.Index(text, "thirty days"), "pages stay in order")
}

func TestPDFExtractor_TooLittleTextIsUnextractable(t *testing.T) {
	pdf := documentstest.PDF("Figure 1")

	_, err := NewPDFExtractor(DefaultMinTextChars).Extract(context.Background(), pdf)
	assert.True(t, errs.Is(err, errs.KindUnextractable), "got %v", err)
}

func TestPDFExtractor_MalformedPayload(t *testing.T) {
	_, err := NewPDFExtractor(DefaultMinTextChars).Extract(context.Background(), nil)
	assert.True(t, errs.Is(err, errs.KindExtraction), "got %v", err)
}

func TestCheckExtracted(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  int
		ok   bool
	}{
		{"enough", strings.Repeat("a", 50), 50, true},
		{"one short", strings.Repeat("a", 49), 50, false},
		{"padding ignored", "   " + strings.Repeat("a", 49) + "\n\n", 50, false},
		{"runes not bytes", strings.Repeat("é", 50), 50, true},
		{"empty", "", 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkExtracted(tt.text, tt.min)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errs.Is(err, errs.KindUnextractable))
			}
		})
	}
}
