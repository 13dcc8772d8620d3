// Package providers builds the embedding and chat models named in config.
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/mayhapottabi/docchat/config"
	"github.com/mayhapottabi/docchat/internal/embeddings"
	"github.com/mayhapottabi/docchat/internal/ollama"
)

// NewEmbedder creates the embedding model selected by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return embeddings.NewOllamaEmbedder(cfg.BaseURL, cfg.Model, &http.Client{}), nil

	case "openai":
		apiKey, err := apiKey(cfg.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		ecfg := &openaiEmbed.EmbeddingConfig{
			APIKey:  apiKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout(),
		}
		if cfg.Dimensions > 0 {
			dims := cfg.Dimensions
			ecfg.Dimensions = &dims
		}
		return openaiEmbed.NewEmbedder(ctx, ecfg)

	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
}

// NewChatModel creates the streaming chat model selected by cfg.Provider.
// For Ollama an empty model name is resolved to the best installed model.
func NewChatModel(ctx context.Context, cfg config.CompletionConfig, logger *slog.Logger) (model.BaseChatModel, error) {
	var maxTokens *int
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		maxTokens = &n
	}

	switch cfg.Provider {
	case "ollama":
		client := ollama.NewClient(cfg.BaseURL, &http.Client{})
		name, err := ollama.NewModelSelector(client).GetDefaultModel(ctx, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to select ollama model: %w", err)
		}
		if name != cfg.Model {
			logger.InfoContext(ctx, "selected ollama chat model", "model", name, "configured", cfg.Model)
		}
		return ollama.NewChatModel(client, name, cfg.MaxTokens), nil

	case "openai":
		apiKey, err := apiKey(cfg.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout(),
			MaxTokens: maxTokens,
		})

	case "gemini":
		apiKey, err := apiKey(cfg.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		return geminiModel.NewChatModel(ctx, &geminiModel.Config{
			Client:    client,
			Model:     cfg.Model,
			MaxTokens: maxTokens,
		})

	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

func apiKey(env string) (string, error) {
	if env == "" {
		return "", fmt.Errorf("api_key_env is not configured")
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("%s environment variable is required", env)
	}
	return key, nil
}
