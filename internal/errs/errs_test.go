package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", base, KindInternal},
		{"classified", E(KindDatabase, "insert chunks", base), KindDatabase},
		{"wrapped classified", fmt.Errorf("ingest: %w", E(KindEmbedding, "embed", base)), KindEmbedding},
		{"validation", Validation("Message cannot be empty"), KindValidation},
		{"not found", NotFound("get document"), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	assert.False(t, Is(nil, KindInternal))
	assert.True(t, Is(Unextractable("scanned"), KindUnextractable))
	assert.False(t, Is(Unextractable("scanned"), KindExtraction))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Message too long", Message(Validation("Message too long"), "fallback"))
	assert.Equal(t, "fallback", Message(E(KindDatabase, "op", errors.New("pq: secret detail")), "fallback"))
	assert.Equal(t, "fallback", Message(errors.New("raw"), "fallback"))
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := E(KindBlobStore, "put blob", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "put blob: blob_store: timeout", err.Error())
}

func TestClassify_KeepsExistingKind(t *testing.T) {
	assert.NoError(t, Classify(KindDatabase, "op", nil))

	inner := Unextractable("no text")
	assert.Same(t, inner, Classify(KindEmbedding, "ingest", inner))

	plain := errors.New("boom")
	assert.Equal(t, KindEmbedding, KindOf(Classify(KindEmbedding, "embed", plain)))
}
