package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/bayan/internal/config"
	"github.com/hyperjump/bayan/internal/embedding"
	"github.com/hyperjump/bayan/internal/generation"
	"github.com/hyperjump/bayan/internal/rag"
	"github.com/hyperjump/bayan/internal/retry"
	"github.com/hyperjump/bayan/internal/storage"
	"github.com/hyperjump/bayan/internal/store"
	"github.com/hyperjump/bayan/internal/vector"
	"github.com/hyperjump/bayan/internal/watcher"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Embedder  embedding.Embedder
	Store     *store.VectorStore
	Catalog   storage.Catalog
	Generator *generation.Client
	Pipeline  *rag.Pipeline
}

// Close releases every component.
func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// initializeComponents builds the pipeline from cfg. withGeneration wires the
// generation client; a missing API key then only disables answering.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withGeneration bool) (*Components, error) {
	c := &Components{Config: cfg}

	embedder, err := newEmbedder(&cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedder

	st, err := store.New(cfg.Vector.IndexType, embedder.Dimensions(), store.WithLogger(logger))
	if err != nil {
		// Fall back to memory index if configured type fails (e.g., FAISS not available)
		if cfg.Vector.IndexType == "memory" || cfg.Vector.IndexType == "" {
			c.Close()
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		logger.Warn("failed to create vector index, falling back to memory",
			zap.String("requested_type", cfg.Vector.IndexType),
			zap.Error(err))
		st, err = store.New("memory", embedder.Dimensions(), store.WithLogger(logger))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
	}
	c.Store = st
	logger.Debug("vector store initialized",
		zap.String("type", st.IndexType()),
		zap.Int("dimensions", st.Dimensions()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	catalog, err := storage.NewSQLiteCatalog(cfg.Paths.DatabasePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	c.Catalog = catalog

	var answerer rag.Answerer
	if withGeneration {
		gen, err := newGenerationClient(&cfg.Generation, logger)
		if err != nil {
			logger.Warn("generation disabled, only questions without context can be answered",
				zap.String("api_key_env", cfg.Generation.APIKeyEnv), zap.Error(err))
		} else {
			c.Generator = gen
			answerer = gen
		}
	}

	p, err := rag.New(rag.Config{
		TextDir:        cfg.Paths.TextDir,
		Pattern:        cfg.Chunking.Pattern,
		IndexDir:       cfg.Paths.IndexDir,
		ChunkSize:      cfg.Chunking.ChunkSize,
		Overlap:        cfg.Chunking.OverlapOrDefault(),
		MinChunkSize:   cfg.Chunking.MinChunkSizeOrDefault(),
		BatchSize:      cfg.Embedding.BatchSize,
		Concurrency:    cfg.Embedding.Concurrency,
		TopK:           cfg.Retrieval.TopK,
		MinScore:       cfg.Retrieval.MinScoreOrDefault(),
		PromptTemplate: cfg.Prompt.Template,
	}, embedder, st, answerer, rag.WithLogger(logger), rag.WithCatalog(catalog))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	c.Pipeline = p
	return c, nil
}

// newEmbedder builds the configured embedder behind an LRU cache. An ONNX
// model that cannot be loaded falls back to the hash embedder.
func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Provider {
	case config.ProviderHash:
		inner = embedding.NewHashEmbedder(cfg.Dimensions)
	case config.ProviderHTTP:
		e, err := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey(),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout(),
			Retry:      retry.DefaultPolicy(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		inner = e
	case config.ProviderONNX:
		e, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:    cfg.ModelPath,
			Dimensions:   cfg.Dimensions,
			MaxTokens:    cfg.MaxTokens,
			OutputName:   cfg.OutputName,
			Pooling:      cfg.Pooling,
			TokenTypeIDs: cfg.TokenTypeIDs,
		})
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to hash embedder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			inner = embedding.NewHashEmbedder(cfg.Dimensions)
		} else {
			inner = e
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	return embedding.NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newGenerationClient(cfg *config.GenerationConfig, logger *zap.Logger) (*generation.Client, error) {
	return generation.NewClient(generation.Config{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey(),
		Model:         cfg.Model,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.TemperatureOrDefault(),
		Timeout:       time.Duration(cfg.TimeoutSecs) * time.Second,
		StreamTimeout: time.Duration(cfg.StreamTimeoutSecs) * time.Second,
		Retry: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   time.Duration(cfg.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.MaxDelayMS) * time.Millisecond,
		},
		RequestsPerSecond: cfg.RequestsPerSecond,
		Referer:           cfg.Referer,
		Title:             cfg.Title,
	}, generation.WithLogger(logger))
}

// rebuildOnChange rebuilds and saves the index after the text directory changes.
func rebuildOnChange(p *rag.Pipeline, logger *zap.Logger) watcher.ChangeFunc {
	return func(ctx context.Context, changed []string) {
		logger.Info("text directory changed, rebuilding index", zap.Int("changed_files", len(changed)))
		if _, err := p.IndexDocuments(ctx, ""); err != nil {
			logger.Warn("watch rebuild failed", zap.Error(err))
			return
		}
		if err := p.SaveIndex(""); err != nil {
			logger.Warn("watch save failed", zap.Error(err))
		}
	}
}
