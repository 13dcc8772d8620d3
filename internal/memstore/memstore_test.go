package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/errs"
)

func addDocument(t *testing.T, s *Store, owner string, vectors ...[]float32) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.CreateDocument(ctx, &db.Document{ID: id, OwnerID: owner, Name: id.String()}))

	chunks := make([]*db.Chunk, len(vectors))
	for i, v := range vectors {
		chunks[i] = &db.Chunk{
			ID: uuid.New(), DocumentID: id, OwnerID: owner,
			ChunkIndex: i, Content: owner, Embedding: pgvector.NewVector(v),
		}
	}
	require.NoError(t, s.InsertChunks(ctx, chunks))
	return id
}

func TestSearchSimilarChunks_ScopedToOwnerAndDocument(t *testing.T) {
	s := New()
	ctx := context.Background()
	query := pgvector.NewVector([]float32{1, 0})

	x := addDocument(t, s, "alice", []float32{0, 1}, []float32{1, 0.1})
	addDocument(t, s, "alice", []float32{1, 0})
	z := addDocument(t, s, "bob", []float32{1, 0})

	results, err := s.SearchSimilarChunks(ctx, query, x, "alice", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)

	for _, owner := range []string{"bob", "mallory"} {
		results, err := s.SearchSimilarChunks(ctx, query, x, owner, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	}

	results, err = s.SearchSimilarChunks(ctx, query, z, "alice", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchSimilarChunks_LimitsToK(t *testing.T) {
	s := New()
	id := addDocument(t, s, "alice", []float32{1, 0}, []float32{0.5, 0.5}, []float32{0, 1})

	results, err := s.SearchSimilarChunks(context.Background(), pgvector.NewVector([]float32{1, 0}), id, "alice", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestGetDocument_NotOwnedLooksMissing(t *testing.T) {
	s := New()
	id := addDocument(t, s, "alice")

	_, err := s.GetDocument(context.Background(), id, "bob")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestInsertChunks_AllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := addDocument(t, s, "alice")

	err := s.InsertChunks(ctx, []*db.Chunk{
		{ID: uuid.New(), DocumentID: id, OwnerID: "alice", Embedding: pgvector.NewVector([]float32{1})},
		{ID: uuid.New(), DocumentID: uuid.New(), OwnerID: "alice", Embedding: pgvector.NewVector([]float32{1})},
	})
	require.Error(t, err)
	assert.Zero(t, s.ChunkCount(id))
}

func TestListDocuments_NewestFirst(t *testing.T) {
	s := New()
	first := addDocument(t, s, "alice")
	second := addDocument(t, s, "alice")
	addDocument(t, s, "bob")

	docs, err := s.ListDocuments(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, second, docs[0].ID)
	assert.Equal(t, first, docs[1].ID)
}

func TestTurns_AppendOnlyAndCascade(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := addDocument(t, s, "alice")

	require.NoError(t, s.AppendTurns(ctx, []*db.ConversationTurn{
		{DocumentID: id, OwnerID: "alice", Role: db.RoleUser, Content: "q"},
		{DocumentID: id, OwnerID: "alice", Role: db.RoleAssistant, Content: "a"},
		{DocumentID: id, OwnerID: "bob", Role: db.RoleUser, Content: "sneaky"},
	}))

	turns, err := s.ListTurns(ctx, id, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "q", turns[0].Content)
	assert.True(t, turns[1].CreatedAt.After(turns[0].CreatedAt))

	require.NoError(t, s.DeleteDocument(ctx, id, "alice"))
	turns, err = s.ListTurns(ctx, id, "alice")
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Zero(t, s.ChunkCount(id))
}
