package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Defaults used when neither the global nor the repo config sets a value.
const (
	DefaultEmbeddingModel = "text-embedding-ada-002"
	DefaultChatModel      = "gpt-3.5-turbo"
	DefaultStorage        = "./emb_store"
	DefaultNThreads       = 25
	DefaultMaxContext     = 1800
	DefaultAPIKeyEnv      = "OPENAI_API_KEY"
	DefaultTimeoutSecs    = 60
	DefaultDocsDir        = "./docs"
)

// Config holds application configuration.
type Config struct {
	// EmbeddingModel is the model requested from the embedding service.
	// It is not part of the cache key, so switching models against the same
	// storage root returns vectors cached under the previous model.
	EmbeddingModel string `json:"embedding_model,omitempty"`

	// ChatModel is the model used for document summarization.
	ChatModel string `json:"chat_model,omitempty"`

	// Storage is the root directory of the embedding cache.
	Storage string `json:"storage,omitempty"`

	// NThreads bounds the number of concurrent embedding calls in a batch.
	NThreads int `json:"nthreads,omitempty"`

	// MaxContext is the number of words per summarization chunk.
	MaxContext int `json:"max_context,omitempty"`

	// MemCacheSize is the number of vectors kept in memory in front of the
	// disk cache. 0 disables the memory layer.
	MemCacheSize int `json:"mem_cache_size,omitempty"`

	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string `json:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `json:"api_key_env,omitempty"`

	// TimeoutSecs bounds each collaborator request.
	TimeoutSecs int `json:"timeout_secs,omitempty"`

	// DocsDir is where downloaded PDF documents are kept.
	DocsDir string `json:"docs_dir,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingModel: DefaultEmbeddingModel,
		ChatModel:      DefaultChatModel,
		Storage:        DefaultStorage,
		NThreads:       DefaultNThreads,
		MaxContext:     DefaultMaxContext,
		APIKeyEnv:      DefaultAPIKeyEnv,
		TimeoutSecs:    DefaultTimeoutSecs,
		DocsDir:        DefaultDocsDir,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global base dir (~/.aka) and the
// nearest repo-level .aka/config.json found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .aka/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".aka", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		EmbeddingModel: firstString(overlay.EmbeddingModel, base.EmbeddingModel),
		ChatModel:      firstString(overlay.ChatModel, base.ChatModel),
		Storage:        firstString(overlay.Storage, base.Storage),
		NThreads:       firstInt(overlay.NThreads, base.NThreads),
		MaxContext:     firstInt(overlay.MaxContext, base.MaxContext),
		MemCacheSize:   firstInt(overlay.MemCacheSize, base.MemCacheSize),
		BaseURL:        firstString(overlay.BaseURL, base.BaseURL),
		APIKeyEnv:      firstString(overlay.APIKeyEnv, base.APIKeyEnv),
		TimeoutSecs:    firstInt(overlay.TimeoutSecs, base.TimeoutSecs),
		DocsDir:        firstString(overlay.DocsDir, base.DocsDir),
		DBMaxOpenConns: firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns: firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		DisabledTools:  mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
	}
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
