package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Addr                string   `yaml:"addr"`
		AllowedOrigins      []string `yaml:"allowed_origins"`
		MaxUploadBytes      int64    `yaml:"max_upload_bytes"`
		ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs"`
	} `yaml:"server"`
	Database struct {
		Driver           string `yaml:"driver"`
		ConnectionString string `yaml:"connection_string"`
		MaxConns         int32  `yaml:"max_conns"`
		TimeoutSecs      int    `yaml:"timeout_secs"`
		AutoMigrate      bool   `yaml:"auto_migrate"`
	} `yaml:"database"`
	Storage struct {
		Backend            string `yaml:"backend"`
		Dir                string `yaml:"dir"`
		TimeoutSecs        int    `yaml:"timeout_secs"`
		CleanupTimeoutSecs int    `yaml:"cleanup_timeout_secs"`
		Redis              struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Embeddings  EmbeddingsConfig `yaml:"embeddings"`
	Completion  CompletionConfig `yaml:"completion"`
	Processing struct {
		ChunkSize       int `yaml:"chunk_size"`
		ChunkOverlap    int `yaml:"chunk_overlap"`
		TopK            int `yaml:"top_k"`
		MinTextChars    int `yaml:"min_text_chars"`
		MaxMessageChars int `yaml:"max_message_chars"`
		MaxHistoryTurns int `yaml:"max_history_turns"`
	} `yaml:"processing"`
	Auth struct {
		JWTSecretEnv string `yaml:"jwt_secret_env"`
		Issuer       string `yaml:"issuer"`
		Audience     string `yaml:"audience"`
	} `yaml:"auth"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Dimensions        int     `yaml:"dimensions"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// CompletionConfig selects and configures the streaming chat provider.
type CompletionConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Load loads configuration from path, or from ~/.docchat/config.yaml when
// path is empty. A missing file yields defaults. Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// DefaultPath returns the per-user config location.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".docchat", "config.yaml")
}

// Save saves configuration to path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Addr = ":3000"
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	cfg.Server.MaxUploadBytes = 10 << 20
	cfg.Server.ShutdownTimeoutSecs = 15

	cfg.Database.Driver = "postgres"
	cfg.Database.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.Database.MaxConns = 10
	cfg.Database.TimeoutSecs = 10
	cfg.Database.AutoMigrate = true

	cfg.Storage.Backend = "fs"
	cfg.Storage.Dir = filepath.Join(os.TempDir(), "docchat-uploads")
	cfg.Storage.TimeoutSecs = 30
	cfg.Storage.CleanupTimeoutSecs = 30
	cfg.Storage.Redis.Addr = "localhost:6379"

	cfg.Embeddings.Provider = "ollama"
	cfg.Embeddings.BaseURL = "http://localhost:11434"
	cfg.Embeddings.Model = "nomic-embed-text"
	cfg.Embeddings.APIKeyEnv = "EMBEDDING_API_KEY"
	cfg.Embeddings.Dimensions = 768
	cfg.Embeddings.TimeoutSecs = 30
	cfg.Embeddings.Concurrency = 4

	cfg.Completion.Provider = "ollama"
	cfg.Completion.BaseURL = "http://localhost:11434"
	cfg.Completion.Model = ""
	cfg.Completion.APIKeyEnv = "COMPLETION_API_KEY"
	cfg.Completion.MaxTokens = 1024
	cfg.Completion.TimeoutSecs = 300

	cfg.Processing.ChunkSize = 1600
	cfg.Processing.ChunkOverlap = 200
	cfg.Processing.TopK = 5
	cfg.Processing.MinTextChars = 50
	cfg.Processing.MaxMessageChars = 2000
	cfg.Processing.MaxHistoryTurns = 50

	cfg.Auth.JWTSecretEnv = "SUPABASE_JWT_SECRET"
	cfg.Auth.Audience = "authenticated"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// applyEnv lets deployment environments override connection details without
// editing the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DOCCHAT_DATABASE_URL"); v != "" {
		c.Database.ConnectionString = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.Server.AllowedOrigins = []string{v}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCCHAT_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embeddings.Dimensions = n
		}
	}
}

// Validate rejects configurations the pipelines cannot run with.
func (c *Config) Validate() error {
	var problems []error

	p := c.Processing
	if p.ChunkSize <= 0 {
		problems = append(problems, fmt.Errorf("processing.chunk_size must be positive"))
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		problems = append(problems, fmt.Errorf("processing.chunk_overlap must be in [0, chunk_size)"))
	}
	if p.TopK <= 0 {
		problems = append(problems, fmt.Errorf("processing.top_k must be positive"))
	}
	if p.MaxMessageChars <= 0 {
		problems = append(problems, fmt.Errorf("processing.max_message_chars must be positive"))
	}

	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		problems = append(problems, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	switch c.Storage.Backend {
	case "fs", "redis", "memory":
	default:
		problems = append(problems, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	switch c.Embeddings.Provider {
	case "ollama", "openai":
	default:
		problems = append(problems, fmt.Errorf("unknown embeddings.provider %q", c.Embeddings.Provider))
	}
	switch c.Completion.Provider {
	case "ollama", "openai", "gemini":
	default:
		problems = append(problems, fmt.Errorf("unknown completion.provider %q", c.Completion.Provider))
	}
	if c.Embeddings.Dimensions < 0 {
		problems = append(problems, fmt.Errorf("embeddings.dimensions must not be negative"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		problems = append(problems, fmt.Errorf("server.max_upload_bytes must be positive"))
	}

	return errors.Join(problems...)
}

// Timeout returns the per-call deadline for embedding requests.
func (e EmbeddingsConfig) Timeout() time.Duration { return seconds(e.TimeoutSecs, 30) }

// Timeout returns the deadline for a whole streamed completion.
func (c CompletionConfig) Timeout() time.Duration { return seconds(c.TimeoutSecs, 300) }

// DatabaseTimeout returns the per-statement deadline.
func (c *Config) DatabaseTimeout() time.Duration { return seconds(c.Database.TimeoutSecs, 10) }

// StorageTimeout returns the per-call blob store deadline.
func (c *Config) StorageTimeout() time.Duration { return seconds(c.Storage.TimeoutSecs, 30) }

// CleanupTimeout bounds compensation after a failed ingestion.
func (c *Config) CleanupTimeout() time.Duration { return seconds(c.Storage.CleanupTimeoutSecs, 30) }

// ShutdownTimeout bounds graceful server shutdown.
func (c *Config) ShutdownTimeout() time.Duration { return seconds(c.Server.ShutdownTimeoutSecs, 15) }

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
