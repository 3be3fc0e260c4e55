// Package config provides configuration loading and structs for the anshim server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is constructed once at
// startup and passed explicitly into component constructors.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Index     IndexConfig     `yaml:"index"`
	Providers ProvidersConfig `yaml:"providers"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Storage   StorageConfig   `yaml:"storage"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CorpusConfig holds the reference document directory and the expected files.
// When Files is empty, every supported file in the directory is loaded.
type CorpusConfig struct {
	Dir   string   `yaml:"dir"`
	Files []string `yaml:"files"`
}

// IndexConfig holds chunking and vector index build settings.
type IndexConfig struct {
	Path string `yaml:"path"`
	// KeywordPath is the bleve chunk index location.
	KeywordPath  string `yaml:"keyword_path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	// BatchSize and LargeCorpusThreshold select the incremental build policy:
	// corpora above the threshold are embedded in batches with periodic snapshots.
	BatchSize            int `yaml:"batch_size"`
	LargeCorpusThreshold int `yaml:"large_corpus_threshold"`
	SnapshotEvery        int `yaml:"snapshot_every"`
	GCEvery              int `yaml:"gc_every"`
}

// ProvidersConfig holds external service settings. API keys are read from the
// named environment variables, never stored in the file.
type ProvidersConfig struct {
	OCREndpoint        string `yaml:"ocr_endpoint"`
	OCRKeyEnv          string `yaml:"ocr_key_env"`
	EmbeddingModel     string `yaml:"embedding_model"`
	GenerationModel    string `yaml:"generation_model"`
	GenerativeEndpoint string `yaml:"generative_endpoint"`
	GenerativeKeyEnv   string `yaml:"generative_key_env"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// KeywordWeight blends bleve keyword scores into the semantic ranking.
	// A negative value disables keyword evidence entirely.
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// StorageConfig holds paths for the chunk/log database and saved images.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ImageDir     string `yaml:"image_dir"`
}

// WatchConfig holds corpus directory watch settings.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Corpus.Dir = expandPath(cfg.Corpus.Dir, configDir)
	cfg.Index.Path = expandPath(cfg.Index.Path, configDir)
	cfg.Index.KeywordPath = expandPath(cfg.Index.KeywordPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.ImageDir = expandPath(cfg.Storage.ImageDir, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
