package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/documents"
	"github.com/mayhapottabi/docchat/internal/errs"
	"github.com/mayhapottabi/docchat/internal/rag"
)

const pdfContentType = "application/pdf"

// multipartOverhead is the slack allowed above the file limit for the
// multipart envelope.
const multipartOverhead = 64 << 10

// maxChatBodyBytes caps a chat request, history included.
const maxChatBodyBytes = 256 << 10

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type uploadResponse struct {
	DocumentID uuid.UUID `json:"documentId"`
	Name       string    `json:"name"`
	ChunkCount int       `json:"chunkCount"`
}

type chatRequest struct {
	DocumentID string     `json:"documentId"`
	Message    string     `json:"message"`
	History    []rag.Turn `json:"history"`
}

type documentResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "File too large")
			return
		}
		s.logger.InfoContext(r.Context(), "upload without file", "error", err)
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Header.Get("Content-Type") != pdfContentType {
		writeError(w, http.StatusBadRequest, "Only PDF files are accepted")
		return
	}
	if header.Size > s.maxUploadBytes {
		writeError(w, http.StatusBadRequest, "File too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, err, "Failed to process document")
		return
	}

	result, err := s.ingester.Ingest(r.Context(), documents.IngestRequest{
		OwnerID:     ownerID(r),
		Name:        header.Filename,
		ContentType: pdfContentType,
		Data:        data,
	})
	if err != nil {
		fallback := "Failed to process document"
		if errs.Is(err, errs.KindBlobStore) {
			fallback = "Failed to upload file to storage"
		}
		s.fail(w, r, err, fallback)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		DocumentID: result.DocumentID,
		Name:       result.Name,
		ChunkCount: result.ChunkCount,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Missing required fields: documentId, message, history")
		return
	}

	owner := ownerID(r)
	answer, err := s.asker.Prepare(r.Context(), owner, rag.ChatRequest{
		DocumentID: body.DocumentID,
		Message:    body.Message,
		History:    body.History,
	})
	if err != nil {
		s.fail(w, r, err, "Failed to process query")
		return
	}

	sink := startSSE(w)
	text, err := answer.Stream(r.Context(), sink)
	if err != nil || text == "" {
		return
	}

	turns := []*db.ConversationTurn{
		{DocumentID: answer.Document.ID, OwnerID: owner, Role: db.RoleUser, Content: answer.Question},
		{DocumentID: answer.Document.ID, OwnerID: owner, Role: db.RoleAssistant, Content: text},
	}
	if err := s.turns.AppendTurns(r.Context(), turns); err != nil {
		s.logger.WarnContext(r.Context(), "failed to save conversation",
			"document_id", answer.Document.ID, "owner_id", owner, "error", err)
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListDocuments(r.Context(), ownerID(r))
	if err != nil {
		s.fail(w, r, err, "Failed to list documents")
		return
	}

	resp := make([]documentResponse, len(docs))
	for i, d := range docs {
		resp[i] = documentResponse{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": resp})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDocumentID(w, r)
	if !ok {
		return
	}

	if err := s.remover.Delete(r.Context(), ownerID(r), id); err != nil {
		s.fail(w, r, err, "Failed to delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathDocumentID(w, r)
	if !ok {
		return
	}

	owner := ownerID(r)
	if _, err := s.documents.GetDocument(r.Context(), id, owner); err != nil {
		s.fail(w, r, err, "Failed to load conversation")
		return
	}

	turns, err := s.turns.ListTurns(r.Context(), id, owner)
	if err != nil {
		s.fail(w, r, err, "Failed to load conversation")
		return
	}

	resp := make([]messageResponse, len(turns))
	for i, t := range turns {
		resp[i] = messageResponse{ID: t.ID, Role: t.Role, Content: t.Content, CreatedAt: t.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": resp})
}

func pathDocumentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil || len(raw) != 36 {
		writeError(w, http.StatusBadRequest, "Invalid document ID")
		return uuid.Nil, false
	}
	return id, true
}
