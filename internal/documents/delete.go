package documents

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mayhapottabi/docchat/internal/blob"
	"github.com/mayhapottabi/docchat/internal/errs"
)

// Deleter removes a document and everything ingestion created for it.
//
// Steps run chunks, blob, record and stop at the first failure. Completed
// steps are not undone, so a failed delete can leave a record whose chunks
// or blob are already gone; retrying the delete finishes the job.
type Deleter struct {
	blobs  blob.Store
	docs   DocumentStore
	chunks ChunkStore
	logger *slog.Logger
}

// NewDeleter creates a deleter.
func NewDeleter(blobs blob.Store, docs DocumentStore, chunks ChunkStore, logger *slog.Logger) *Deleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deleter{blobs: blobs, docs: docs, chunks: chunks, logger: logger}
}

// Delete removes the owner's document. Unknown and foreign documents both
// yield NotFound.
func (d *Deleter) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	doc, err := d.docs.GetDocument(ctx, id, ownerID)
	if err != nil {
		return errs.Classify(errs.KindDatabase, "get document", err)
	}

	logger := d.logger.With("document_id", id, "owner_id", ownerID)

	if err := d.chunks.DeleteChunks(ctx, doc.ID, ownerID); err != nil {
		logger.ErrorContext(ctx, "delete chunks failed", "error", err)
		return errs.E(errs.KindDatabase, "delete chunks", err)
	}
	if err := d.blobs.Delete(ctx, doc.BlobKey); err != nil {
		logger.ErrorContext(ctx, "delete blob failed", "error", err)
		return errs.E(errs.KindBlobStore, "delete blob", err)
	}
	if err := d.docs.DeleteDocument(ctx, doc.ID, ownerID); err != nil {
		logger.ErrorContext(ctx, "delete document failed", "error", err)
		return errs.E(errs.KindDatabase, "delete document", err)
	}

	logger.InfoContext(ctx, "document deleted")
	return nil
}
