package embeddings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayhapottabi/docchat/internal/errs"
)

// lengthEmbedder encodes the text length so order can be checked.
type lengthEmbedder struct {
	dim      int
	failOn   string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration

	mu    sync.Mutex
	calls int
}

func (e *lengthEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}

	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([][]float64, len(texts))
	for i, t := range texts {
		if e.failOn != "" && t == e.failOn {
			return nil, errors.New("429 too many requests")
		}
		vec := make([]float64, e.dim)
		vec[0] = float64(len(t))
		out[i] = vec
	}
	return out, nil
}

func TestEmbed_ChecksDimension(t *testing.T) {
	c := NewClient(&lengthEmbedder{dim: 3}, Options{Dimensions: 4})

	_, err := c.Embed(context.Background(), "hello")
	assert.Equal(t, errs.KindEmbedding, errs.KindOf(err))
}

func TestEmbed_ConvertsVector(t *testing.T) {
	c := NewClient(&lengthEmbedder{dim: 3}, Options{Dimensions: 3})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0, 0}, vec.Slice())
}

func TestEmbed_ProviderErrorIsClassified(t *testing.T) {
	c := NewClient(&lengthEmbedder{dim: 2, failOn: "bad"}, Options{})

	_, err := c.Embed(context.Background(), "bad")
	require.Error(t, err)
	assert.Equal(t, errs.KindEmbedding, errs.KindOf(err))
}

func TestEmbed_TimesOut(t *testing.T) {
	c := NewClient(&lengthEmbedder{dim: 2, delay: time.Second}, Options{Timeout: 20 * time.Millisecond})

	_, err := c.Embed(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, errs.KindEmbedding, errs.KindOf(err))
}

func TestEmbedAll_PreservesOrderWithBoundedConcurrency(t *testing.T) {
	e := &lengthEmbedder{dim: 2, delay: 5 * time.Millisecond}
	c := NewClient(e, Options{Concurrency: 3})

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	vectors, err := c.EmbedAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v.Slice()[0], "vector %d", i)
	}
	assert.LessOrEqual(t, e.peak.Load(), int32(3))
	assert.Equal(t, len(texts), e.calls)
}

func TestEmbedAll_OneFailureFailsTheBatch(t *testing.T) {
	texts := []string{"a", "bb", "bad", "dddd"}
	c := NewClient(&lengthEmbedder{dim: 2, failOn: "bad"}, Options{Concurrency: 2})

	vectors, err := c.EmbedAll(context.Background(), texts)
	assert.Nil(t, vectors)
	assert.Equal(t, errs.KindEmbedding, errs.KindOf(err))
	assert.Contains(t, err.Error(), "chunk 2")
}

type ragged struct{}

func (ragged) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	return [][]float64{make([]float64, len(texts[0]))}, nil
}

func TestEmbedAll_RejectsMixedDimensions(t *testing.T) {
	c := NewClient(ragged{}, Options{})

	_, err := c.EmbedAll(context.Background(), []string{"ab", "abc"})
	require.Error(t, err)
	assert.Equal(t, errs.KindEmbedding, errs.KindOf(err))
}

func TestEmbed_RateLimited(t *testing.T) {
	c := NewClient(&lengthEmbedder{dim: 2}, Options{RequestsPerSecond: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Embed(ctx, "first")
	require.NoError(t, err)

	_, err = c.Embed(ctx, "second")
	assert.Error(t, err, "second call has to wait past the deadline")
}
