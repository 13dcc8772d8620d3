// Package blob stores uploaded document payloads.
package blob

import (
	"context"

	"github.com/google/uuid"
)

// Store writes and removes opaque payloads by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Key returns the storage key for a document: {ownerId}/{documentId}.
func Key(ownerID string, documentID uuid.UUID) string {
	return ownerID + "/" + documentID.String()
}
