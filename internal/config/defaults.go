package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "/usr/local/var/anshim/thesis"
	}
	if len(cfg.Corpus.Files) == 0 {
		cfg.Corpus.Files = []string{"Allergie.pdf", "Guideline.pdf"}
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "/usr/local/var/anshim/data/indices/vectors"
	}
	if cfg.Index.KeywordPath == "" {
		cfg.Index.KeywordPath = "/usr/local/var/anshim/data/indices/keyword"
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 1000
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 200
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 100
	}
	if cfg.Index.LargeCorpusThreshold == 0 {
		cfg.Index.LargeCorpusThreshold = 1000
	}
	if cfg.Index.SnapshotEvery == 0 {
		cfg.Index.SnapshotEvery = 10
	}
	if cfg.Index.GCEvery == 0 {
		cfg.Index.GCEvery = 5
	}
	if cfg.Providers.OCREndpoint == "" {
		cfg.Providers.OCREndpoint = "https://eu-vision.googleapis.com"
	}
	if cfg.Providers.OCRKeyEnv == "" {
		cfg.Providers.OCRKeyEnv = "GOOGLE_VISION_API_KEY"
	}
	if cfg.Providers.EmbeddingModel == "" {
		cfg.Providers.EmbeddingModel = "embedding-001"
	}
	if cfg.Providers.GenerationModel == "" {
		cfg.Providers.GenerationModel = "gemini-2.5-flash"
	}
	if cfg.Providers.GenerativeEndpoint == "" {
		cfg.Providers.GenerativeEndpoint = "https://generativelanguage.googleapis.com"
	}
	if cfg.Providers.GenerativeKeyEnv == "" {
		cfg.Providers.GenerativeKeyEnv = "GOOGLE_API_KEY"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.KeywordWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/anshim/data/db/anshim.db"
	}
	if cfg.Storage.ImageDir == "" {
		cfg.Storage.ImageDir = "/usr/local/var/anshim/data/images"
	}
}
