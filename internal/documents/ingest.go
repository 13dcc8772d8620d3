package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/mayhapottabi/docchat/internal/blob"
	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/errs"
)

// DocumentStore persists document records.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *db.Document) error
	GetDocument(ctx context.Context, id uuid.UUID, ownerID string) (*db.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID, ownerID string) error
}

// ChunkStore persists a document's chunks. InsertChunks is all-or-nothing.
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []*db.Chunk) error
	DeleteChunks(ctx context.Context, documentID uuid.UUID, ownerID string) error
}

// Embedder embeds a batch of texts, returning vectors in input order.
type Embedder interface {
	EmbedAll(ctx context.Context, texts []string) ([]pgvector.Vector, error)
}

// IngestState is the furthest step an ingestion reached.
type IngestState int

const (
	StateReceived IngestState = iota
	StateBlobStored
	StateRecordCreated
	StateTextExtracted
	StateChunked
	StateCommitted
)

func (s IngestState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateBlobStored:
		return "blob_stored"
	case StateRecordCreated:
		return "record_created"
	case StateTextExtracted:
		return "text_extracted"
	case StateChunked:
		return "chunked"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IngestRequest is an upload that passed size and type checks.
type IngestRequest struct {
	OwnerID     string
	Name        string
	ContentType string
	Data        []byte
}

// IngestResult describes a committed document.
type IngestResult struct {
	DocumentID uuid.UUID
	Name       string
	ChunkCount int
}

// Ingestor stores an uploaded document, splits and embeds its text and
// persists the chunks. A failure at any step after the blob is written
// rolls back every artifact created so far, including the document record.
type Ingestor struct {
	blobs          blob.Store
	docs           DocumentStore
	chunks         ChunkStore
	extractor      TextExtractor
	chunker        *Chunker
	embedder       Embedder
	cleanupTimeout time.Duration
	logger         *slog.Logger
}

// IngestorConfig wires an Ingestor.
type IngestorConfig struct {
	Blobs          blob.Store
	Documents      DocumentStore
	Chunks         ChunkStore
	Extractor      TextExtractor
	Chunker        *Chunker
	Embedder       Embedder
	CleanupTimeout time.Duration
	Logger         *slog.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(cfg IngestorConfig) *Ingestor {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ingestor{
		blobs:          cfg.Blobs,
		docs:           cfg.Documents,
		chunks:         cfg.Chunks,
		extractor:      cfg.Extractor,
		chunker:        cfg.Chunker,
		embedder:       cfg.Embedder,
		cleanupTimeout: cfg.CleanupTimeout,
		logger:         cfg.Logger,
	}
}

// Ingest runs the pipeline for one upload.
func (in *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	docID := uuid.New()
	logger := in.logger.With("document_id", docID, "owner_id", req.OwnerID)

	state := StateReceived
	tx := newSaga(in.cleanupTimeout, logger)

	fail := func(err error) (*IngestResult, error) {
		level := slog.LevelError
		if errs.Is(err, errs.KindUnextractable) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "ingestion failed",
			"state", state, "kind", errs.KindOf(err), "error", err)
		if cerr := tx.Compensate(ctx); cerr != nil {
			logger.ErrorContext(ctx, "ingestion rollback incomplete", "error", cerr)
		}
		return nil, err
	}

	key := blob.Key(req.OwnerID, docID)
	if err := in.blobs.Put(ctx, key, req.Data, req.ContentType); err != nil {
		return fail(errs.E(errs.KindBlobStore, "store blob", err))
	}
	state = StateBlobStored
	tx.Defer("delete blob", func(ctx context.Context) error {
		return in.blobs.Delete(ctx, key)
	})

	doc := &db.Document{ID: docID, OwnerID: req.OwnerID, Name: req.Name, BlobKey: key}
	if err := in.docs.CreateDocument(ctx, doc); err != nil {
		return fail(errs.E(errs.KindDatabase, "create document", err))
	}
	state = StateRecordCreated
	tx.Defer("delete document", func(ctx context.Context) error {
		return in.docs.DeleteDocument(ctx, docID, req.OwnerID)
	})

	text, err := in.extractor.Extract(ctx, req.Data)
	if err != nil {
		return fail(errs.Classify(errs.KindExtraction, "extract text", err))
	}
	state = StateTextExtracted

	pieces := in.chunker.Split(text)
	state = StateChunked

	vectors, err := in.embedder.EmbedAll(ctx, pieces)
	if err != nil {
		return fail(errs.Classify(errs.KindEmbedding, "embed chunks", err))
	}
	if len(vectors) != len(pieces) {
		return fail(errs.E(errs.KindEmbedding, "embed chunks",
			fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(pieces))))
	}

	rows := make([]*db.Chunk, len(pieces))
	for i, content := range pieces {
		rows[i] = &db.Chunk{
			ID:         uuid.New(),
			DocumentID: docID,
			OwnerID:    req.OwnerID,
			ChunkIndex: i,
			Content:    content,
			Embedding:  vectors[i],
		}
	}

	tx.Defer("delete chunks", func(ctx context.Context) error {
		return in.chunks.DeleteChunks(ctx, docID, req.OwnerID)
	})
	if err := in.chunks.InsertChunks(ctx, rows); err != nil {
		return fail(errs.E(errs.KindDatabase, "insert chunks", err))
	}
	state = StateCommitted
	logger.InfoContext(ctx, "document ingested", "state", state, "chunks", len(rows))

	return &IngestResult{DocumentID: docID, Name: req.Name, ChunkCount: len(rows)}, nil
}
