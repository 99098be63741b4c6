// Package config loads the application configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"pdfrag/internal/domain"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaConfig locates the Ollama server used for embeddings and generation.
type OllamaConfig struct {
	// Host defaults to $OLLAMA_HOST, then http://localhost:11434.
	Host string `yaml:"host" toml:"host" validate:"required,url"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string `yaml:"type" toml:"type" validate:"oneof=ollama hashing"`
	Model       string `yaml:"model" toml:"model"`
	Path        string `yaml:"path" toml:"path"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs" validate:"gte=0"`
	MaxRetries  int    `yaml:"max_retries" toml:"max_retries" validate:"gte=0,lte=10"`
	// Dimension applies to the hashing embedder.
	Dimension         int     `yaml:"dimension" toml:"dimension" validate:"gte=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" toml:"burst" validate:"gte=0"`
}

// ChunkerConfig configures how documents are split into passages.
type ChunkerConfig struct {
	Type                 string  `yaml:"type" toml:"type" validate:"oneof=recursive semantic sentence"`
	ChunkSize            int     `yaml:"chunk_size" toml:"chunk_size" validate:"gte=0"`
	ChunkOverlap         int     `yaml:"chunk_overlap" toml:"chunk_overlap" validate:"gte=0"`
	BreakpointPercentile float64 `yaml:"breakpoint_percentile" toml:"breakpoint_percentile" validate:"gte=0,lte=100"`
	BufferSize           int     `yaml:"buffer_size" toml:"buffer_size" validate:"gte=0"`
	SentencesPerChunk    int     `yaml:"sentences_per_chunk" toml:"sentences_per_chunk" validate:"gte=0"`
	OverlapSentences     int     `yaml:"overlap_sentences" toml:"overlap_sentences" validate:"gte=0"`
}

// QdrantConfig contains connection details for the Qdrant index store.
type QdrantConfig struct {
	Host      string `yaml:"host" toml:"host" validate:"required"`
	Port      int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	UseTLS    bool   `yaml:"use_tls" toml:"use_tls"`
	Prefix    string `yaml:"prefix" toml:"prefix"`
}

// CacheConfig selects where built indexes are persisted.
type CacheConfig struct {
	Store   string        `yaml:"store" toml:"store" validate:"oneof=file sqlite qdrant memory"`
	Dir     string        `yaml:"dir" toml:"dir"`
	KeyMode string        `yaml:"key_mode" toml:"key_mode" validate:"oneof=name content"`
	SQLite  string        `yaml:"sqlite_path" toml:"sqlite_path"`
	Qdrant  *QdrantConfig `yaml:"qdrant,omitempty" toml:"qdrant,omitempty" validate:"required_if=Store qdrant"`
}

// GeneratorConfig configures the answering model.
type GeneratorConfig struct {
	Model       string  `yaml:"model" toml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	// TimeoutSecs of zero leaves model calls unbounded.
	TimeoutSecs int `yaml:"timeout_secs" toml:"timeout_secs" validate:"gte=0"`
}

// RetrievalConfig configures passage retrieval.
type RetrievalConfig struct {
	K int `yaml:"k" toml:"k" validate:"gte=1,lte=50"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Ollama    OllamaConfig    `yaml:"ollama" toml:"ollama"`
	Embedder  EmbedderConfig  `yaml:"embedder" toml:"embedder"`
	Chunker   ChunkerConfig   `yaml:"chunker" toml:"chunker"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Generator GeneratorConfig `yaml:"generator" toml:"generator"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
}

// Load reads a config from path. YAML is assumed unless the extension is
// .toml. ${VAR} references are expanded from the environment. If the file
// does not exist, defaults are returned.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyConfigDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfiguration, path, err)
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(data))), isTOML(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a config document. Unset fields take defaults.
func Parse(data []byte, asTOML bool) (*AppConfig, error) {
	cfg := defaultConfig()
	var err error
	if asTOML {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %v", domain.ErrConfiguration, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml, ./config.toml, then ~/.config/pdfrag/config.yaml.
// If none exists, it writes defaults to ~/.config/pdfrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	for _, p := range []string{"config.yaml", "config.toml"} {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyConfigDefaults(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field constraints and cross-field rules.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if c.Chunker.Type == "recursive" && c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			domain.ErrConfiguration, c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	return nil
}

// EmbedderAPIKey resolves the embedder API key from the configured variable.
func (c *AppConfig) EmbedderAPIKey() string {
	if c.Embedder.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedder.APIKeyEnv)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Embedder:  EmbedderConfig{Type: "ollama", Model: "nomic-embed-text", TimeoutSecs: 30, MaxRetries: 3},
		Chunker:   ChunkerConfig{Type: "recursive", ChunkSize: 1000, ChunkOverlap: 200},
		Cache:     CacheConfig{Store: "file", Dir: ".", KeyMode: "name"},
		Generator: GeneratorConfig{Model: "llama3.2"},
		Retrieval: RetrievalConfig{K: 3},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = os.Getenv("OLLAMA_HOST")
	}
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = defaultOllamaHost
	}
	if !strings.Contains(cfg.Ollama.Host, "://") {
		cfg.Ollama.Host = "http://" + cfg.Ollama.Host
	}
	cfg.Ollama.Host = strings.TrimRight(cfg.Ollama.Host, "/")

	if cfg.Chunker.Type == "sentence" && cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Chunker.Type == "semantic" {
		if cfg.Chunker.BreakpointPercentile == 0 {
			cfg.Chunker.BreakpointPercentile = 95
		}
		if cfg.Chunker.BufferSize == 0 {
			cfg.Chunker.BufferSize = 1
		}
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "."
	}
	if cfg.Cache.Store == "sqlite" && cfg.Cache.SQLite == "" {
		cfg.Cache.SQLite = filepath.Join(cfg.Cache.Dir, "pdfrag.db")
	}
	if q := cfg.Cache.Qdrant; q != nil {
		if q.Port == 0 {
			q.Port = 6334
		}
		if q.Prefix == "" {
			q.Prefix = "pdfrag_"
		}
	}
}
