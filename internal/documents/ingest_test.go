package documents

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayhapottabi/docchat/internal/blob"
	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/errs"
	"github.com/mayhapottabi/docchat/internal/memstore"
)

type textExtractor struct {
	text string
	err  error
}

func (e textExtractor) Extract(context.Context, []byte) (string, error) { return e.text, e.err }

type fakeEmbedder struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) EmbedAll(_ context.Context, texts []string) ([]pgvector.Vector, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		out[i] = pgvector.NewVector([]float32{float32(len(t)), 1})
	}
	return out, nil
}

// failingChunks lets the document store work but rejects chunk writes.
type failingChunks struct {
	*memstore.Store
	err error
}

func (f failingChunks) InsertChunks(context.Context, []*db.Chunk) error { return f.err }

// failingDocuments rejects record creation.
type failingDocuments struct {
	*memstore.Store
}

func (failingDocuments) CreateDocument(context.Context, *db.Document) error {
	return errors.New("unique violation")
}

type failingBlobs struct{ *blob.MemoryStore }

func (failingBlobs) Put(context.Context, string, []byte, string) error {
	return errors.New("bucket unavailable")
}

type fixture struct {
	store    *memstore.Store
	blobs    *blob.MemoryStore
	embedder *fakeEmbedder
	cfg      IngestorConfig
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()

	chunker, err := NewChunker(100, 20)
	require.NoError(t, err)

	f := &fixture{
		store:    memstore.New(),
		blobs:    blob.NewMemoryStore(),
		embedder: &fakeEmbedder{},
	}
	f.cfg = IngestorConfig{
		Blobs:     f.blobs,
		Documents: f.store,
		Chunks:    f.store,
		Extractor: textExtractor{text: text},
		Chunker:   chunker,
		Embedder:  f.embedder,
		Logger:    slog.Default(),
	}
	return f
}

func (f *fixture) documents(t *testing.T, owner string) []*db.Document {
	t.Helper()
	docs, err := f.store.ListDocuments(context.Background(), owner)
	require.NoError(t, err)
	return docs
}

func request() IngestRequest {
	return IngestRequest{OwnerID: "alice", Name: "manual.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
}

func TestIngest_CommitsDocumentAndChunks(t *testing.T) {
	f := newFixture(t, strings.Repeat("Operating instructions. ", 20)) // 480 runes

	res, err := NewIngestor(f.cfg).Ingest(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "manual.pdf", res.Name)
	assert.Equal(t, 6, res.ChunkCount)
	assert.Equal(t, res.ChunkCount, f.store.ChunkCount(res.DocumentID))
	assert.True(t, f.blobs.Has(blob.Key("alice", res.DocumentID)))

	doc, err := f.store.GetDocument(context.Background(), res.DocumentID, "alice")
	require.NoError(t, err)
	assert.Equal(t, blob.Key("alice", res.DocumentID), doc.BlobKey)

	results, err := f.store.SearchSimilarChunks(context.Background(),
		pgvector.NewVector([]float32{100, 1}), res.DocumentID, "alice", 10)
	require.NoError(t, err)
	indexes := make(map[int]bool)
	for _, r := range results {
		indexes[r.ChunkIndex] = true
	}
	for i := 0; i < res.ChunkCount; i++ {
		assert.True(t, indexes[i], "ordinal %d stored", i)
	}
}

func TestIngest_ChunkStoreFailureLeavesNothing(t *testing.T) {
	f := newFixture(t, strings.Repeat("text ", 100))
	f.cfg.Chunks = failingChunks{Store: f.store, err: errors.New("deadlock detected")}

	_, err := NewIngestor(f.cfg).Ingest(context.Background(), request())

	require.Error(t, err)
	assert.Equal(t, errs.KindDatabase, errs.KindOf(err))
	assert.Empty(t, f.documents(t, "alice"))
	assert.Zero(t, f.blobs.Len())
}

func TestIngest_EmbeddingFailureRollsBackRecordAndBlob(t *testing.T) {
	f := newFixture(t, strings.Repeat("text ", 100))
	f.embedder.err = errors.New("provider 503")

	_, err := NewIngestor(f.cfg).Ingest(context.Background(), request())

	assert.Equal(t, errs.KindEmbedding, errs.KindOf(err))
	assert.Empty(t, f.documents(t, "alice"))
	assert.Zero(t, f.blobs.Len())
}

func TestIngest_UnextractableRollsBackRecordAndBlob(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.Extractor = textExtractor{err: errs.Unextractable("scanned")}

	_, err := NewIngestor(f.cfg).Ingest(context.Background(), request())

	assert.True(t, errs.Is(err, errs.KindUnextractable))
	assert.Empty(t, f.documents(t, "alice"))
	assert.Zero(t, f.blobs.Len())
	assert.Zero(t, f.embedder.calls.Load(), "no embedding for unextractable documents")
}

func TestIngest_UnclassifiedExtractorErrorIsExtractionKind(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.Extractor = textExtractor{err: errors.New("corrupt xref")}

	_, err := NewIngestor(f.cfg).Ingest(context.Background(), request())
	assert.Equal(t, errs.KindExtraction, errs.KindOf(err))
}

func TestIngest_RecordFailureDeletesBlob(t *testing.T) {
	f := newFixture(t, strings.Repeat("text ", 100))
	f.cfg.Documents = failingDocuments{Store: f.store}

	_, err := NewIngestor(f.cfg).Ingest(context.Background(), request())

	assert.Equal(t, errs.KindDatabase, errs.KindOf(err))
	assert.Zero(t, f.blobs.Len())
}

func TestIngest_BlobFailureWritesNothing(t *testing.T) {
	f := newFixture(t, strings.Repeat("text ", 100))
	f.cfg.Blobs = failingBlobs{f.blobs}

	_, err := NewIngestor(f.cfg).Ingest(context.Background(), request())

	assert.Equal(t, errs.KindBlobStore, errs.KindOf(err))
	assert.Empty(t, f.documents(t, "alice"))
}

func TestIngest_CancelledRequestStillCompensates(t *testing.T) {
	f := newFixture(t, strings.Repeat("text ", 100))
	ctx, cancel := context.WithCancel(context.Background())
	f.embedder.err = context.Canceled
	cancel()

	_, err := NewIngestor(f.cfg).Ingest(ctx, request())

	require.Error(t, err)
	assert.Empty(t, f.documents(t, "alice"))
	assert.Zero(t, f.blobs.Len())
}

func TestIngestState_String(t *testing.T) {
	assert.Equal(t, "record_created", StateRecordCreated.String())
	assert.Equal(t, "committed", StateCommitted.String())
}

func TestDelete_RemovesEverything(t *testing.T) {
	f := newFixture(t, strings.Repeat("text ", 100))
	res, err := NewIngestor(f.cfg).Ingest(context.Background(), request())
	require.NoError(t, err)

	d := NewDeleter(f.blobs, f.store, f.store, nil)
	require.NoError(t, d.Delete(context.Background(), "alice", res.DocumentID))

	assert.Empty(t, f.documents(t, "alice"))
	assert.Zero(t, f.store.ChunkCount(res.DocumentID))
	assert.Zero(t, f.blobs.Len())
}

func TestDelete_ForeignDocumentIsNotFound(t *testing.T) {
	f := newFixture(t, strings.Repeat("text ", 100))
	res, err := NewIngestor(f.cfg).Ingest(context.Background(), request())
	require.NoError(t, err)

	d := NewDeleter(f.blobs, f.store, f.store, nil)

	err = d.Delete(context.Background(), "bob", res.DocumentID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	err = d.Delete(context.Background(), "alice", uuid.New())
	assert.True(t, errs.Is(err, errs.KindNotFound))

	assert.Len(t, f.documents(t, "alice"), 1, "nothing removed")
	assert.True(t, f.blobs.Has(blob.Key("alice", res.DocumentID)))
}

type failingBlobDelete struct{ *blob.MemoryStore }

func (failingBlobDelete) Delete(context.Context, ...string) error { return errors.New("timeout") }

func TestDelete_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, strings.Repeat("text ", 100))
	res, err := NewIngestor(f.cfg).Ingest(context.Background(), request())
	require.NoError(t, err)

	d := NewDeleter(failingBlobDelete{f.blobs}, f.store, f.store, nil)
	err = d.Delete(context.Background(), "alice", res.DocumentID)

	assert.Equal(t, errs.KindBlobStore, errs.KindOf(err))
	assert.Zero(t, f.store.ChunkCount(res.DocumentID), "chunks already gone")
	assert.Len(t, f.documents(t, "alice"), 1, "record kept")
}
