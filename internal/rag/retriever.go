package rag

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/errs"
)

// DefaultTopK is how many chunks a question retrieves.
const DefaultTopK = 5

// QueryEmbedder embeds a single question.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
}

// ChunkSearcher runs a nearest-neighbour query restricted to one document
// of one owner.
type ChunkSearcher interface {
	SearchSimilarChunks(ctx context.Context, embedding pgvector.Vector, documentID uuid.UUID, ownerID string, k int) ([]db.ChunkResult, error)
}

// Retriever handles RAG retrieval using vector similarity search
type Retriever struct {
	embedder QueryEmbedder
	searcher ChunkSearcher
	topK     int
}

// NewRetriever creates a new RAG retriever
func NewRetriever(embedder QueryEmbedder, searcher ChunkSearcher, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		topK:     topK,
	}
}

// Retrieve returns the chunks of the owner's document closest to query,
// most similar first. No matches is not an error.
func (r *Retriever) Retrieve(ctx context.Context, ownerID string, documentID uuid.UUID, query string) ([]db.ChunkResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errs.Classify(errs.KindEmbedding, "embed query", err)
	}

	chunks, err := r.searcher.SearchSimilarChunks(ctx, vec, documentID, ownerID, r.topK)
	if err != nil {
		return nil, errs.E(errs.KindVectorSearch, "search chunks", err)
	}
	return chunks, nil
}
