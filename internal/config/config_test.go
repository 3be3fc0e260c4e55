package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
corpus:
  dir: ./thesis
  files:
    - Allergie.pdf
index:
  path: ./data/vectors
  chunk_size: 500
  chunk_overlap: 100
retrieval:
  top_k: 3
storage:
  database_path: ./data/anshim.db
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Debug {
		t.Error("expected debug true")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Index.ChunkSize != 500 || cfg.Index.ChunkOverlap != 100 {
		t.Errorf("chunking = %d/%d, want 500/100", cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("top_k = %d, want 3", cfg.Retrieval.TopK)
	}
	if !filepath.IsAbs(cfg.Corpus.Dir) {
		t.Errorf("corpus dir not expanded: %s", cfg.Corpus.Dir)
	}
	if cfg.Corpus.Dir != filepath.Join(dir, "thesis") {
		t.Errorf("corpus dir = %s, want relative to config dir", cfg.Corpus.Dir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"host", cfg.Server.Host, "localhost"},
		{"port", cfg.Server.Port, 8080},
		{"chunk_size", cfg.Index.ChunkSize, 1000},
		{"chunk_overlap", cfg.Index.ChunkOverlap, 200},
		{"batch_size", cfg.Index.BatchSize, 100},
		{"large_corpus_threshold", cfg.Index.LargeCorpusThreshold, 1000},
		{"snapshot_every", cfg.Index.SnapshotEvery, 10},
		{"gc_every", cfg.Index.GCEvery, 5},
		{"top_k", cfg.Retrieval.TopK, 5},
		{"embedding_model", cfg.Providers.EmbeddingModel, "embedding-001"},
		{"generation_model", cfg.Providers.GenerationModel, "gemini-2.5-flash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
	if len(cfg.Corpus.Files) != 2 {
		t.Errorf("default corpus files = %v", cfg.Corpus.Files)
	}
}

func TestApplyDefaultsKeepsExplicit(t *testing.T) {
	cfg := Config{}
	cfg.Index.ChunkSize = 256
	cfg.Retrieval.TopK = 7
	ApplyDefaults(&cfg)
	if cfg.Index.ChunkSize != 256 {
		t.Errorf("chunk_size overwritten: %d", cfg.Index.ChunkSize)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("top_k overwritten: %d", cfg.Retrieval.TopK)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Server.Port = 7070

	if err := Save(path, &cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != 7070 {
		t.Errorf("port after round trip = %d, want 7070", loaded.Server.Port)
	}
}
