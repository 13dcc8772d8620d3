// Package embeddings turns text into fixed-dimension vectors through any
// eino embedding model.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mayhapottabi/docchat/internal/errs"
)

// Options tunes a Client.
type Options struct {
	// Dimensions is the expected vector length. Zero accepts whatever the
	// first response returns.
	Dimensions int
	// Timeout bounds each embedding call.
	Timeout time.Duration
	// Concurrency caps in-flight calls made by EmbedAll.
	Concurrency int
	// RequestsPerSecond throttles calls when positive.
	RequestsPerSecond float64
}

// Client embeds one text span per call and checks every vector has the
// same dimension. Provider errors come back as embedding_service errors.
type Client struct {
	embedder    embedding.Embedder
	dim         int
	timeout     time.Duration
	concurrency int
	limiter     *rate.Limiter
}

// NewClient wraps an eino embedder.
func NewClient(embedder embedding.Embedder, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	c := &Client{
		embedder:    embedder,
		dim:         opts.Dimensions,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
	}
	if opts.RequestsPerSecond > 0 {
		burst := max(1, int(opts.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// Embed returns the vector for text.
func (c *Client) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return pgvector.Vector{}, errs.E(errs.KindEmbedding, "embed", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err := c.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, errs.E(errs.KindEmbedding, "embed", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return pgvector.Vector{}, errs.E(errs.KindEmbedding, "embed", fmt.Errorf("empty embedding returned"))
	}
	if c.dim > 0 && len(vectors[0]) != c.dim {
		return pgvector.Vector{}, errs.E(errs.KindEmbedding, "embed",
			fmt.Errorf("embedding has %d dimensions, want %d", len(vectors[0]), c.dim))
	}

	vec := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		vec[i] = float32(v)
	}
	return pgvector.NewVector(vec), nil
}

// EmbedAll embeds every text with bounded concurrency and returns vectors
// in input order. The first failure cancels the remaining calls and is
// returned alone; vectors already computed are discarded.
func (c *Client) EmbedAll(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	out := make([]pgvector.Vector, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := c.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			out[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if c.dim == 0 && len(out) > 1 {
		want := len(out[0].Slice())
		for i, v := range out[1:] {
			if got := len(v.Slice()); got != want {
				return nil, errs.E(errs.KindEmbedding, "embed all",
					fmt.Errorf("chunk %d has %d dimensions, chunk 0 has %d", i+1, got, want))
			}
		}
	}
	return out, nil
}
