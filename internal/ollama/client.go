package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Client wraps Ollama API interactions
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Ollama client. Generation deadlines come from the
// caller's context, so httpClient should not set its own Timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// ChatMessage is one message in Ollama's chat format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat request
type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ChatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ChatResponse is one line of a chat response.
type ChatResponse struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   ChatMessage `json:"message"`
	Done      bool        `json:"done"`
	Error     string      `json:"error,omitempty"`
	EvalCount int         `json:"eval_count,omitempty"`
}

// ChatModel adapts an Ollama model to eino's chat model interface.
type ChatModel struct {
	client    *Client
	model     string
	maxTokens int
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel creates a chat model for name. maxTokens caps the answer
// length when positive.
func NewChatModel(client *Client, name string, maxTokens int) *ChatModel {
	return &ChatModel{client: client, model: name, maxTokens: maxTokens}
}

// Model returns the Ollama model name.
func (m *ChatModel) Model() string { return m.model }

// Generate returns the complete answer.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	stream, err := m.Stream(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var result strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		result.WriteString(chunk.Content)
	}

	return &schema.Message{Role: schema.Assistant, Content: result.String()}, nil
}

// Stream starts a streaming chat. Connection and HTTP status errors are
// returned directly; failures after the first byte arrive through the
// stream. Closing the returned reader stops decoding.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	req := &ChatRequest{Model: m.model, Stream: true}
	for _, msg := range input {
		req.Messages = append(req.Messages, ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	if m.maxTokens > 0 {
		req.Options = map[string]interface{}{"num_predict": m.maxTokens}
	}

	resp, err := m.client.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer resp.Body.Close()
		defer sw.Close()

		decoder := json.NewDecoder(resp.Body)
		for {
			var line ChatResponse
			if err := decoder.Decode(&line); err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				sw.Send(nil, fmt.Errorf("failed to decode response: %w", err))
				return
			}
			if line.Error != "" {
				sw.Send(nil, fmt.Errorf("ollama stream error: %s", line.Error))
				return
			}
			if line.Message.Content != "" {
				if closed := sw.Send(&schema.Message{Role: schema.Assistant, Content: line.Message.Content}, nil); closed {
					return
				}
			}
			if line.Done {
				return
			}
		}
	}()

	return sr, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(b))
	}
	return resp, nil
}
