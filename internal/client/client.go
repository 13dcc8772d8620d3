// Package client talks to a docchat server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mayhapottabi/docchat/internal/rag"
)

// Document is a document as listed by the server.
type Document struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a persisted conversation turn.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// UploadResult is the response to a successful upload.
type UploadResult struct {
	DocumentID uuid.UUID `json:"documentId"`
	Name       string    `json:"name"`
	ChunkCount int       `json:"chunkCount"`
}

// APIError is a non-2xx response carrying the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// StreamError is an error event received after the stream started.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "answer stream failed: " + e.Message
}

// Client is a docchat API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. The http.Client should not set a total timeout
// since answers are streamed; pass nil for http.DefaultClient.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

// Upload sends a PDF.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result UploadResult
	if err := c.doJSON(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListDocuments returns the caller's documents, newest first.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/documents", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Documents []Document `json:"documents"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// DeleteDocument deletes one of the caller's documents.
func (c *Client) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/documents/"+id.String(), nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

// Messages returns the saved conversation for a document, oldest first.
func (c *Client) Messages(ctx context.Context, id uuid.UUID) ([]Message, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/documents/"+id.String()+"/messages", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Chat asks a question and calls onToken for each streamed fragment. It
// returns the full answer once the server sends done. A server error
// event is returned as *StreamError.
func (c *Client) Chat(ctx context.Context, documentID uuid.UUID, message string, history []rag.Turn, onToken func(string)) (string, error) {
	if history == nil {
		history = []rag.Turn{}
	}
	payload, err := json.Marshal(map[string]any{
		"documentId": documentID.String(),
		"message":    message,
		"history":    history,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/chat", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var answer strings.Builder
	err = ReadEvents(resp.Body, func(ev Event) error {
		switch {
		case ev.Error != "":
			return &StreamError{Message: ev.Error}
		case ev.Done:
			return errDone
		case ev.Token != nil:
			answer.WriteString(*ev.Token)
			if onToken != nil {
				onToken(*ev.Token)
			}
		}
		return nil
	})
	if errors.Is(err, errDone) {
		return answer.String(), nil
	}
	if err == nil {
		err = errors.New("stream ended without a done event")
	}
	return answer.String(), err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
