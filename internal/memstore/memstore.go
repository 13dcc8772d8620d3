// Package memstore keeps documents, chunks and conversation turns in
// process memory. It backs the "memory" database driver and doubles as the
// store fake in tests. Search is brute-force cosine similarity.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/errs"
)

// Store is an in-memory implementation of the document, chunk and turn
// stores.
type Store struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]db.Document
	chunks    map[uuid.UUID][]db.Chunk
	turns     map[uuid.UUID][]db.ConversationTurn
	now       func() time.Time
	last      time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		documents: make(map[uuid.UUID]db.Document),
		chunks:    make(map[uuid.UUID][]db.Chunk),
		turns:     make(map[uuid.UUID][]db.ConversationTurn),
		now:       time.Now,
	}
}

// CreateDocument stores a document record.
func (s *Store) CreateDocument(_ context.Context, doc *db.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	doc.CreatedAt = s.tick()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument returns the owner's document or a NotFound error.
func (s *Store) GetDocument(_ context.Context, id uuid.UUID, ownerID string) (*db.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, errs.NotFound("get document")
	}
	return &doc, nil
}

// ListDocuments returns the owner's documents, newest first.
func (s *Store) ListDocuments(_ context.Context, ownerID string) ([]*db.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []*db.Document
	for _, doc := range s.documents {
		if doc.OwnerID == ownerID {
			d := doc
			docs = append(docs, &d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes the owner's document with its chunks and turns.
func (s *Store) DeleteDocument(_ context.Context, id uuid.UUID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return nil
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	delete(s.turns, id)
	return nil
}

// InsertChunks stores chunks atomically: all of them or none.
func (s *Store) InsertChunks(_ context.Context, chunks []*db.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[uuid.UUID][]db.Chunk)
	for i, c := range chunks {
		doc, ok := s.documents[c.DocumentID]
		if !ok || doc.OwnerID != c.OwnerID {
			return fmt.Errorf("failed to insert chunk %d: document %s not found", i, c.DocumentID)
		}
		staged[c.DocumentID] = append(staged[c.DocumentID], *c)
	}
	for id, cs := range staged {
		s.chunks[id] = append(s.chunks[id], cs...)
	}
	return nil
}

// DeleteChunks removes the chunks of the owner's document.
func (s *Store) DeleteChunks(_ context.Context, documentID uuid.UUID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[documentID][:0]
	for _, c := range s.chunks[documentID] {
		if c.OwnerID != ownerID {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(s.chunks, documentID)
	} else {
		s.chunks[documentID] = kept
	}
	return nil
}

// ChunkCount reports how many chunks are stored for a document.
func (s *Store) ChunkCount(documentID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID])
}

// SearchSimilarChunks ranks the chunks of one owned document by cosine
// similarity to embedding.
func (s *Store) SearchSimilarChunks(_ context.Context, embedding pgvector.Vector, documentID uuid.UUID, ownerID string, k int) ([]db.ChunkResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := embedding.Slice()
	var results []db.ChunkResult
	for _, c := range s.chunks[documentID] {
		if c.OwnerID != ownerID {
			continue
		}
		results = append(results, db.ChunkResult{
			ID:         c.ID,
			Content:    c.Content,
			ChunkIndex: c.ChunkIndex,
			Similarity: cosine(query, c.Embedding.Slice()),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// AppendTurns appends turns to conversations of documents the turn's owner
// holds. Turns for other documents are dropped.
func (s *Store) AppendTurns(_ context.Context, turns []*db.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range turns {
		doc, ok := s.documents[t.DocumentID]
		if !ok || doc.OwnerID != t.OwnerID {
			continue
		}
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.CreatedAt = s.tick()
		s.turns[t.DocumentID] = append(s.turns[t.DocumentID], *t)
	}
	return nil
}

// ListTurns returns the owner's turns for a document, oldest first.
func (s *Store) ListTurns(_ context.Context, documentID uuid.UUID, ownerID string) ([]*db.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*db.ConversationTurn
	for _, t := range s.turns[documentID] {
		if t.OwnerID == ownerID {
			turn := t
			out = append(out, &turn)
		}
	}
	return out, nil
}

// tick returns a strictly increasing timestamp so ordering by creation time
// is stable even within one clock tick. Callers hold mu.
func (s *Store) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
