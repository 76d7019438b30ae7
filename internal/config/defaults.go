package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.TimeoutSeconds == 0 {
		cfg.Server.TimeoutSeconds = 60
	}
	if cfg.Paths.TextDir == "" {
		cfg.Paths.TextDir = "./data/texts"
	}
	if cfg.Paths.IndexDir == "" {
		cfg.Paths.IndexDir = "./data/index"
	}
	if cfg.Paths.DatabasePath == "" {
		cfg.Paths.DatabasePath = "./data/bayan.db"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 512
	}
	if cfg.Chunking.Pattern == "" {
		cfg.Chunking.Pattern = "*.txt"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "google/gemini-2.0-flash-001"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 2048
	}
	if cfg.Generation.TimeoutSecs == 0 {
		cfg.Generation.TimeoutSecs = 60
	}
	if cfg.Generation.StreamTimeoutSecs == 0 {
		cfg.Generation.StreamTimeoutSecs = 120
	}
	if cfg.Generation.MaxAttempts == 0 {
		cfg.Generation.MaxAttempts = 5
	}
	if cfg.Generation.BaseDelayMS == 0 {
		cfg.Generation.BaseDelayMS = 1000
	}
	if cfg.Generation.MaxDelayMS == 0 {
		cfg.Generation.MaxDelayMS = 30000
	}
	if cfg.Generation.Referer == "" {
		cfg.Generation.Referer = "http://localhost:3000"
	}
	if cfg.Generation.Title == "" {
		cfg.Generation.Title = "Bayan"
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 2000
	}
}
