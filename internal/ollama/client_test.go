package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "llama3.2", req.Model)

		for _, line := range lines {
			fmt.Fprintln(w, line)
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, sr *schema.StreamReader[*schema.Message]) ([]string, error) {
	t.Helper()
	defer sr.Close()

	var tokens []string
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return tokens, nil
		}
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, msg.Content)
	}
}

var input = []*schema.Message{
	{Role: schema.System, Content: "Answer from context."},
	{Role: schema.User, Content: "What is covered?"},
}

func TestChatModel_StreamForwardsTokensInOrder(t *testing.T) {
	srv := chatServer(t,
		`{"message":{"role":"assistant","content":"Defects "},"done":false}`,
		`{"message":{"role":"assistant","content":"are "},"done":false}`,
		`{"message":{"role":"assistant","content":"covered."},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	)

	m := NewChatModel(NewClient(srv.URL, srv.Client()), "llama3.2", 0)
	sr, err := m.Stream(context.Background(), input)
	require.NoError(t, err)

	tokens, err := collect(t, sr)
	require.NoError(t, err)
	assert.Equal(t, []string{"Defects ", "are ", "covered."}, tokens)
}

func TestChatModel_StreamErrorAfterTokens(t *testing.T) {
	srv := chatServer(t,
		`{"message":{"role":"assistant","content":"Partial"},"done":false}`,
		`{"error":"model runner crashed"}`,
	)

	m := NewChatModel(NewClient(srv.URL, srv.Client()), "llama3.2", 0)
	sr, err := m.Stream(context.Background(), input)
	require.NoError(t, err)

	tokens, err := collect(t, sr)
	assert.Equal(t, []string{"Partial"}, tokens)
	assert.ErrorContains(t, err, "model runner crashed")
}

func TestChatModel_TruncatedStreamIsAnError(t *testing.T) {
	srv := chatServer(t, `{"message":{"role":"assistant","content":"Cut"},"done":false}`)

	m := NewChatModel(NewClient(srv.URL, srv.Client()), "llama3.2", 0)
	sr, err := m.Stream(context.Background(), input)
	require.NoError(t, err)

	_, err = collect(t, sr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestChatModel_StatusErrorBeforeStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	m := NewChatModel(NewClient(srv.URL, srv.Client()), "llama3.2", 0)
	_, err := m.Stream(context.Background(), input)
	assert.ErrorContains(t, err, "404")
}

func TestChatModel_Generate(t *testing.T) {
	srv := chatServer(t,
		`{"message":{"role":"assistant","content":"Hello "},"done":false}`,
		`{"message":{"role":"assistant","content":"there"},"done":true}`,
	)

	m := NewChatModel(NewClient(srv.URL, srv.Client()), "llama3.2", 256)
	msg, err := m.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", msg.Content)
	assert.Equal(t, schema.Assistant, msg.Role)
}
