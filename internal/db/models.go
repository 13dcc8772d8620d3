package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Document is an ingested file owned by a single user. Rows are created
// once per successful ingestion and never updated.
type Document struct {
	ID        uuid.UUID
	OwnerID   string
	Name      string
	BlobKey   string
	CreatedAt time.Time
}

// Chunk is a text span of a document with its embedding. OwnerID is copied
// from the document so retrieval can authorize with a single predicate.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	OwnerID    string
	ChunkIndex int
	Content    string
	Embedding  pgvector.Vector
}

// ChunkResult is a retrieved chunk ranked by similarity to a query.
type ChunkResult struct {
	ID         uuid.UUID
	Content    string
	ChunkIndex int
	Similarity float64
}

// Turn roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one persisted message of a document conversation.
type ConversationTurn struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	OwnerID    string
	Role       string
	Content    string
	CreatedAt  time.Time
}
