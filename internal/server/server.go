// Package server exposes the ingestion, chat and deletion pipelines over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mayhapottabi/docchat/internal/auth"
	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/documents"
	"github.com/mayhapottabi/docchat/internal/rag"
)

// Ingester runs the upload pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req documents.IngestRequest) (*documents.IngestResult, error)
}

// Remover runs the deletion pipeline.
type Remover interface {
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// Asker prepares streamed answers.
type Asker interface {
	Prepare(ctx context.Context, ownerID string, req rag.ChatRequest) (*rag.Answer, error)
}

// DocumentLister reads the caller's documents.
type DocumentLister interface {
	ListDocuments(ctx context.Context, ownerID string) ([]*db.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID, ownerID string) (*db.Document, error)
}

// TurnStore persists conversation turns.
type TurnStore interface {
	AppendTurns(ctx context.Context, turns []*db.ConversationTurn) error
	ListTurns(ctx context.Context, documentID uuid.UUID, ownerID string) ([]*db.ConversationTurn, error)
}

// Config wires a Server.
type Config struct {
	Ingester  Ingester
	Remover   Remover
	Asker     Asker
	Documents DocumentLister
	Turns     TurnStore
	Verifier  auth.Verifier

	AllowedOrigins []string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	ingester  Ingester
	remover   Remover
	asker     Asker
	documents DocumentLister
	turns     TurnStore
	verifier  auth.Verifier

	origins        map[string]bool
	maxUploadBytes int64
	logger         *slog.Logger
	handler        http.Handler
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	s := &Server{
		ingester:       cfg.Ingester,
		remover:        cfg.Remover,
		asker:          cfg.Asker,
		documents:      cfg.Documents,
		turns:          cfg.Turns,
		verifier:       cfg.Verifier,
		origins:        make(map[string]bool, len(cfg.AllowedOrigins)),
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         cfg.Logger,
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST /upload", s.authenticated(s.handleUpload))
	mux.Handle("POST /chat", s.authenticated(s.handleChat))
	mux.Handle("GET /documents", s.authenticated(s.handleListDocuments))
	mux.Handle("DELETE /documents/{id}", s.authenticated(s.handleDeleteDocument))
	mux.Handle("GET /documents/{id}/messages", s.authenticated(s.handleListMessages))

	s.handler = s.recoverPanics(s.logRequests(s.cors(mux)))
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
