package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/errs"
)

// NoContextAnswer is streamed instead of calling the model when retrieval
// finds nothing.
const NoContextAnswer = "I couldn't find relevant content in this document to answer your question. " +
	"Try rephrasing or asking something else."

// StreamFailedMessage is the error event text for any generation failure.
const StreamFailedMessage = "Stream failed"

// DocumentLookup resolves a document owned by the caller.
type DocumentLookup interface {
	GetDocument(ctx context.Context, id uuid.UUID, ownerID string) (*db.Document, error)
}

// ChatRequest is a question about one document.
type ChatRequest struct {
	DocumentID string
	Message    string
	// History must be non-nil; an empty slice starts a new conversation.
	History []Turn
}

// ChatConfig wires a Chat.
type ChatConfig struct {
	Documents       DocumentLookup
	Retriever       *Retriever
	Model           model.BaseChatModel
	MaxMessageChars int
	MaxHistoryTurns int
	// Timeout bounds a whole streamed answer.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Chat answers questions about a document in two phases. Prepare validates,
// authorizes and retrieves, failing with ordinary errors. Once it succeeds
// the caller streams the Answer, and every later problem is reported as an
// event inside the stream.
type Chat struct {
	docs            DocumentLookup
	retriever       *Retriever
	model           model.BaseChatModel
	maxMessageChars int
	maxHistoryTurns int
	timeout         time.Duration
	logger          *slog.Logger
}

// NewChat creates a chat orchestrator.
func NewChat(cfg ChatConfig) *Chat {
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = 2000
	}
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Chat{
		docs:            cfg.Documents,
		retriever:       cfg.Retriever,
		model:           cfg.Model,
		maxMessageChars: cfg.MaxMessageChars,
		maxHistoryTurns: cfg.MaxHistoryTurns,
		timeout:         cfg.Timeout,
		logger:          cfg.Logger,
	}
}

// Answer is a retrieved, ready-to-stream response.
type Answer struct {
	Document *db.Document
	Question string
	Chunks   []db.ChunkResult

	messages []*schema.Message
	chat     *Chat
}

// Prepare validates req, resolves the owner's document and retrieves the
// chunks closest to the question.
func (c *Chat) Prepare(ctx context.Context, ownerID string, req ChatRequest) (*Answer, error) {
	docID, question, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	doc, err := c.docs.GetDocument(ctx, docID, ownerID)
	if err != nil {
		return nil, errs.Classify(errs.KindDatabase, "get document", err)
	}

	chunks, err := c.retriever.Retrieve(ctx, ownerID, docID, question)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Document: doc,
		Question: question,
		Chunks:   chunks,
		messages: BuildMessages(chunks, req.History, question),
		chat:     c,
	}, nil
}

func (c *Chat) validate(req ChatRequest) (uuid.UUID, string, error) {
	docID, err := uuid.Parse(req.DocumentID)
	if err != nil || len(req.DocumentID) != 36 {
		return uuid.Nil, "", errs.Validation("Invalid document ID")
	}

	question := strings.TrimSpace(req.Message)
	if question == "" {
		return uuid.Nil, "", errs.Validation("Message cannot be empty")
	}
	if utf8.RuneCountInString(question) > c.maxMessageChars {
		return uuid.Nil, "", errs.Validation("Message too long")
	}

	if req.History == nil {
		return uuid.Nil, "", errs.Validation("Missing required fields: documentId, message, history")
	}
	if len(req.History) > c.maxHistoryTurns {
		return uuid.Nil, "", errs.Validation("History too long")
	}
	for _, t := range req.History {
		if (t.Role != db.RoleUser && t.Role != db.RoleAssistant) || strings.TrimSpace(t.Content) == "" {
			return uuid.Nil, "", errs.Validation("Invalid history format")
		}
	}

	return docID, question, nil
}

// Stream writes the answer to sink and returns the text sent. It always
// ends the stream with exactly one done or error event unless the sink
// itself fails, in which case generation is cancelled. The returned error
// is nil only when the stream ended with done.
func (a *Answer) Stream(ctx context.Context, sink EventSink) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.chat.timeout)
	defer cancel()

	logger := a.chat.logger.With("document_id", a.Document.ID, "owner_id", a.Document.OwnerID)
	st := NewStream(sink)

	if len(a.Chunks) == 0 {
		if err := st.Token(NoContextAnswer); err != nil {
			return "", err
		}
		if err := st.Done(); err != nil {
			return NoContextAnswer, err
		}
		return NoContextAnswer, nil
	}

	sr, err := a.chat.model.Stream(ctx, a.messages)
	if err != nil {
		logger.ErrorContext(ctx, "completion failed to start", "error", err)
		_ = st.Fail(StreamFailedMessage)
		return "", errs.E(errs.KindCompletionStream, "start completion", err)
	}
	defer sr.Close()

	var answer strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			if err := st.Done(); err != nil {
				return answer.String(), err
			}
			return answer.String(), nil
		}
		if err != nil {
			logger.ErrorContext(ctx, "completion stream failed", "error", err, "sent_chars", answer.Len())
			_ = st.Fail(StreamFailedMessage)
			return answer.String(), errs.E(errs.KindCompletionStream, "stream completion", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}

		if err := st.Token(msg.Content); err != nil {
			logger.InfoContext(ctx, "client went away, cancelling completion", "error", err)
			return answer.String(), err
		}
		answer.WriteString(msg.Content)
	}
}
