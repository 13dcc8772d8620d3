package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// ModelInfo represents information about an installed Ollama model
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// ListModelsResponse represents the response from listing models
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelSelector handles model selection logic
type ModelSelector struct {
	client *Client
}

// NewModelSelector creates a new model selector
func NewModelSelector(client *Client) *ModelSelector {
	return &ModelSelector{client: client}
}

// ListModels lists all available Ollama models
func (ms *ModelSelector) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ms.client.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := ms.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Models, nil
}

// preferredModels are tried in order when no chat model is configured.
var preferredModels = []string{
	"llama3.2",
	"llama3.1",
	"qwen2.5",
	"mistral",
	"llama3",
	"gemma",
}

// SelectBestModel picks a chat model from the installed ones: the first
// preferred family found, otherwise the largest model. Embedding-only
// models are never picked.
func (ms *ModelSelector) SelectBestModel(ctx context.Context) (string, error) {
	models, err := ms.ListModels(ctx)
	if err != nil {
		return "", err
	}

	return selectChatModel(models)
}

func selectChatModel(models []ModelInfo) (string, error) {
	var candidates []ModelInfo
	for _, m := range models {
		if !strings.Contains(strings.ToLower(m.Name), "embed") {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no chat models available")
	}

	for _, preferred := range preferredModels {
		for _, m := range candidates {
			if strings.Contains(strings.ToLower(m.Name), preferred) {
				return m.Name, nil
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Size > candidates[j].Size
	})
	return candidates[0].Name, nil
}

// GetDefaultModel returns configured if it is installed, otherwise the
// best available chat model.
func (ms *ModelSelector) GetDefaultModel(ctx context.Context, configured string) (string, error) {
	if configured == "" {
		return ms.SelectBestModel(ctx)
	}

	models, err := ms.ListModels(ctx)
	if err != nil {
		return "", err
	}

	for _, m := range models {
		if m.Name == configured || strings.TrimSuffix(m.Name, ":latest") == configured {
			return m.Name, nil
		}
	}

	return selectChatModel(models)
}
