// Package app wires configuration into a running docchat server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mayhapottabi/docchat/config"
	"github.com/mayhapottabi/docchat/internal/auth"
	"github.com/mayhapottabi/docchat/internal/blob"
	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/documents"
	"github.com/mayhapottabi/docchat/internal/embeddings"
	"github.com/mayhapottabi/docchat/internal/memstore"
	"github.com/mayhapottabi/docchat/internal/providers"
	"github.com/mayhapottabi/docchat/internal/rag"
	"github.com/mayhapottabi/docchat/internal/server"
)

// store is everything the pipelines need from the relational/vector store.
// Both *db.DB and *memstore.Store provide it.
type store interface {
	documents.DocumentStore
	documents.ChunkStore
	rag.ChunkSearcher
	server.DocumentLister
	server.TurnStore
}

var (
	_ store = (*db.DB)(nil)
	_ store = (*memstore.Store)(nil)
)

// App holds the server and the resources it owns.
type App struct {
	Server *server.Server

	closers []func()
}

// New connects every backend named in cfg and builds the server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	st, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := a.openBlobs(ctx, cfg)
	if err != nil {
		return nil, err
	}

	secret := os.Getenv(cfg.Auth.JWTSecretEnv)
	verifier, err := auth.NewJWTVerifier(secret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to configure auth (%s): %w", cfg.Auth.JWTSecretEnv, err)
	}

	embedModel, err := providers.NewEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	embedder := embeddings.NewClient(embedModel, embeddings.Options{
		Dimensions:        cfg.Embeddings.Dimensions,
		Timeout:           cfg.Embeddings.Timeout(),
		Concurrency:       cfg.Embeddings.Concurrency,
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
	})

	chatModel, err := providers.NewChatModel(ctx, cfg.Completion, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	chunker, err := documents.NewChunker(cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	ingestor := documents.NewIngestor(documents.IngestorConfig{
		Blobs:          blobs,
		Documents:      st,
		Chunks:         st,
		Extractor:      documents.NewPDFExtractor(cfg.Processing.MinTextChars),
		Chunker:        chunker,
		Embedder:       embedder,
		CleanupTimeout: cfg.CleanupTimeout(),
		Logger:         logger.With("component", "ingest"),
	})

	chat := rag.NewChat(rag.ChatConfig{
		Documents:       st,
		Retriever:       rag.NewRetriever(embedder, st, cfg.Processing.TopK),
		Model:           chatModel,
		MaxMessageChars: cfg.Processing.MaxMessageChars,
		MaxHistoryTurns: cfg.Processing.MaxHistoryTurns,
		Timeout:         cfg.Completion.Timeout(),
		Logger:          logger.With("component", "chat"),
	})

	a.Server = server.New(server.Config{
		Ingester:       ingestor,
		Remover:        documents.NewDeleter(blobs, st, st, logger.With("component", "delete")),
		Asker:          chat,
		Documents:      st,
		Turns:          st,
		Verifier:       verifier,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger.With("component", "http"),
	})

	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, error) {
	if cfg.Database.Driver == "memory" {
		logger.WarnContext(ctx, "using in-memory database; data is lost on exit")
		return memstore.New(), nil
	}

	database, err := db.New(ctx, cfg.Database.ConnectionString, db.Options{
		MaxConns: cfg.Database.MaxConns,
		Timeout:  cfg.DatabaseTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, database.Close)

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return database, nil
}

func (a *App) openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "memory":
		return blob.NewMemoryStore(), nil
	case "redis":
		rs, err := blob.NewRedisStore(ctx, blob.RedisConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Timeout:  cfg.StorageTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rs.Close() })
		return rs, nil
	default:
		fs, err := blob.NewFSStore(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open blob directory: %w", err)
		}
		return fs, nil
	}
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewLogger builds the process logger from the logging section.
func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
