package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/mayhapottabi/docchat/internal/errs"
)

// Every query below filters by owner_id in SQL. Callers never get to see
// another owner's rows, even when they know the document ID.

// CreateDocument inserts a document record. The ID and blob key are chosen
// by the caller so the blob can be written first.
func (db *DB) CreateDocument(ctx context.Context, doc *Document) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	err := db.pool.QueryRow(ctx,
		`INSERT INTO documents (id, owner_id, name, blob_key)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		doc.ID, doc.OwnerID, doc.Name, doc.BlobKey,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document owned by ownerID. A missing document and
// one owned by somebody else both return a NotFound error.
func (db *DB) GetDocument(ctx context.Context, id uuid.UUID, ownerID string) (*Document, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	var doc Document
	err := db.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, blob_key, created_at
		 FROM documents WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.BlobKey, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("get document")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns the owner's documents, newest first.
func (db *DB) ListDocuments(ctx context.Context, ownerID string) ([]*Document, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	rows, err := db.pool.Query(ctx,
		`SELECT id, owner_id, name, blob_key, created_at
		 FROM documents WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.BlobKey, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// DeleteDocument deletes the owner's document record. Deleting a row that
// is already gone is not an error.
func (db *DB) DeleteDocument(ctx context.Context, id uuid.UUID, ownerID string) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	if _, err := db.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID,
	); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// InsertChunks stores a document's chunks in one transaction. Either every
// row becomes visible or none does.
func (db *DB) InsertChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ctx, cancel := db.bound(ctx)
	defer cancel()

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(
			`INSERT INTO chunks (id, document_id, owner_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			chunk.ID, chunk.DocumentID, chunk.OwnerID, chunk.ChunkIndex, chunk.Content, chunk.Embedding,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// DeleteChunks removes every chunk of the owner's document.
func (db *DB) DeleteChunks(ctx context.Context, documentID uuid.UUID, ownerID string) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	if _, err := db.pool.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1 AND owner_id = $2`, documentID, ownerID,
	); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// SearchSimilarChunks finds the k chunks of one owned document closest to
// embedding by cosine distance. An empty result is not an error.
func (db *DB) SearchSimilarChunks(ctx context.Context, embedding pgvector.Vector, documentID uuid.UUID, ownerID string, k int) ([]ChunkResult, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	rows, err := db.pool.Query(ctx,
		`SELECT id, content, chunk_index, 1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE document_id = $2 AND owner_id = $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		embedding, documentID, ownerID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []ChunkResult
	for rows.Next() {
		var r ChunkResult
		if err := rows.Scan(&r.ID, &r.Content, &r.ChunkIndex, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// AppendTurns appends conversation turns in order. Turns are never updated.
func (db *DB) AppendTurns(ctx context.Context, turns []*ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	ctx, cancel := db.bound(ctx)
	defer cancel()

	// created_at comes from clock_timestamp() so turns in one batch keep
	// their order.
	batch := &pgx.Batch{}
	for _, t := range turns {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		batch.Queue(
			`INSERT INTO conversation_turns (id, document_id, owner_id, role, content, created_at)
			 SELECT $1::uuid, d.id, d.owner_id, $4::text, $5::text, clock_timestamp()
			 FROM documents d WHERE d.id = $2::uuid AND d.owner_id = $3::text`,
			t.ID, t.DocumentID, t.OwnerID, t.Role, t.Content,
		)
	}

	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range turns {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to append turn %d: %w", i, err)
		}
	}
	return nil
}

// ListTurns returns the owner's conversation for a document, oldest first.
func (db *DB) ListTurns(ctx context.Context, documentID uuid.UUID, ownerID string) ([]*ConversationTurn, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	rows, err := db.pool.Query(ctx,
		`SELECT id, document_id, owner_id, role, content, created_at
		 FROM conversation_turns
		 WHERE document_id = $1 AND owner_id = $2
		 ORDER BY created_at ASC`,
		documentID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []*ConversationTurn
	for rows.Next() {
		var t ConversationTurn
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.OwnerID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}
