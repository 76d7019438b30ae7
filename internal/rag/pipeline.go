// Package rag wires chunking, embedding, the vector store, retrieval and
// generation into a question-answering pipeline.
package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/hyperjump/bayan/internal/embedding"
	"github.com/hyperjump/bayan/internal/indexer"
	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/retrieval"
	"github.com/hyperjump/bayan/internal/storage"
	"github.com/hyperjump/bayan/internal/store"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

// Fixed user-facing strings.
const (
	// InsufficientInfoAnswer is returned instead of calling the model when no
	// context was found.
	InsufficientInfoAnswer = "عذراً، لم أجد معلومات كافية للإجابة على هذا السؤال في المراجع المتاحة."
	// ErrorMessage replaces internal error text at the boundaries.
	ErrorMessage = "عذراً، حدث خطأ أثناء معالجة السؤال. يرجى المحاولة مرة أخرى لاحقاً."
)

var errNoAnswerer = errors.New("generation is not configured")

// Answerer generates answers from a question and retrieved context.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question, retrieved, template string) (string, error)
	StreamAnswerQuestion(ctx context.Context, question, retrieved, template string) iter.Seq2[string, error]
}

// Config holds pipeline settings.
type Config struct {
	TextDir        string
	Pattern        string
	IndexDir       string
	ChunkSize      int
	Overlap        int
	MinChunkSize   int
	BatchSize      int
	Concurrency    int
	TopK           int
	MinScore       float64
	PromptTemplate string
}

// Pipeline answers questions against an index it builds or loads. Queries may
// run concurrently with each other and with a build; builds and loads are
// serialized.
type Pipeline struct {
	cfg      Config
	embedder embedding.Embedder
	store    *store.VectorStore
	engine   *retrieval.Engine
	builder  *indexer.Builder
	answerer Answerer
	catalog  storage.Catalog
	logger   *zap.Logger

	buildMu   sync.Mutex
	mu        sync.RWMutex
	state     State
	lastBuild *models.IndexBuild
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithCatalog records every index build in c.
func WithCatalog(c storage.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// New creates a pipeline over st. answerer may be nil for index-only use;
// questions that need generation then fail.
func New(cfg Config, embedder embedding.Embedder, st *store.VectorStore, answerer Answerer, opts ...Option) (*Pipeline, error) {
	if embedder.Dimensions() != st.Dimensions() {
		return nil, fmt.Errorf("embedder dimension %d does not match store dimension %d: %w",
			embedder.Dimensions(), st.Dimensions(), models.ErrValidation)
	}
	chunker, err := indexer.NewChunker(cfg.ChunkSize, cfg.Overlap, cfg.MinChunkSize)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      cfg,
		embedder: embedder,
		store:    st,
		answerer: answerer,
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.LoggerOrNop(p.logger)
	p.engine = retrieval.NewEngine(embedder, st,
		retrieval.WithTopK(cfg.TopK),
		retrieval.WithMinScore(cfg.MinScore),
		retrieval.WithLogger(p.logger))
	p.builder = indexer.NewBuilder(chunker, embedder,
		indexer.WithBatchSize(cfg.BatchSize),
		indexer.WithConcurrency(cfg.Concurrency),
		indexer.WithLogger(p.logger))
	p.state = StateReady
	return p, nil
}

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Health reports whether the store holds entries and how many.
func (p *Pipeline) Health() (indexed bool, entries int) {
	n := p.store.Size()
	return n > 0, n
}

// IndexDocuments rebuilds the index from the text files in textDir (the
// configured directory when empty). The new index is built off to the side
// and swapped in only on success; a failed build leaves the current index
// serving queries.
func (p *Pipeline) IndexDocuments(ctx context.Context, textDir string) (*models.IndexBuild, error) {
	if textDir == "" {
		textDir = p.cfg.TextDir
	}
	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	build := &models.IndexBuild{TextDir: textDir, StartedAt: time.Now()}
	p.logger.Info("indexing documents", zap.String("text_dir", textDir))

	docs, err := indexer.ListDocuments(textDir, p.cfg.Pattern, p.logger)
	if err != nil {
		return build, p.finishBuild(ctx, build, nil, err)
	}
	build.Documents = len(docs)

	staging, err := p.store.NewStaging()
	if err != nil {
		return build, p.finishBuild(ctx, build, nil, err)
	}
	res, err := p.builder.Build(ctx, docs, staging)
	if err != nil {
		_ = staging.Close()
		return build, p.finishBuild(ctx, build, res.Documents, fmt.Errorf("build index: %w", err))
	}
	build.Chunks = res.Chunks

	if res.Chunks == 0 {
		_ = staging.Close()
		p.logger.Warn("no chunks created, keeping the current index", zap.String("text_dir", textDir))
		return build, p.finishBuild(ctx, build, res.Documents, nil)
	}
	if err := p.store.ReplaceWith(staging); err != nil {
		return build, p.finishBuild(ctx, build, res.Documents, fmt.Errorf("swap index: %w", err))
	}
	p.setState(StateIndexed)
	p.logger.Info("documents indexed",
		zap.Int("documents", build.Documents),
		zap.Int("chunks", build.Chunks),
		zap.Duration("took", time.Since(build.StartedAt)))
	return build, p.finishBuild(ctx, build, res.Documents, nil)
}

// finishBuild stamps and records build, returning buildErr unchanged.
func (p *Pipeline) finishBuild(ctx context.Context, build *models.IndexBuild, docs []models.DocumentRecord, buildErr error) error {
	build.FinishedAt = time.Now()
	build.Status = models.BuildSucceeded
	if buildErr != nil {
		build.Status = models.BuildFailed
		build.Error = buildErr.Error()
		p.logger.Error("index build failed", zap.String("text_dir", build.TextDir), zap.Error(buildErr))
	}
	if p.catalog != nil {
		if err := p.catalog.RecordBuild(context.WithoutCancel(ctx), build, docs); err != nil {
			p.logger.Warn("failed to record index build", zap.Error(err))
		}
	}
	p.mu.Lock()
	b := *build
	p.lastBuild = &b
	p.mu.Unlock()
	return buildErr
}

// SaveIndex persists the index into dir (the configured index directory when empty).
func (p *Pipeline) SaveIndex(dir string) error {
	if dir == "" {
		dir = p.cfg.IndexDir
	}
	p.buildMu.Lock()
	defer p.buildMu.Unlock()
	if err := p.store.Save(dir); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	p.logger.Info("index saved", zap.String("dir", dir), zap.Int("entries", p.store.Size()))
	return nil
}

// LoadIndex replaces the index with the one saved in dir (the configured
// index directory when empty). Missing artifacts are not an error: the store
// is left empty, the pipeline stays Ready and loaded is false.
func (p *Pipeline) LoadIndex(dir string) (loaded bool, err error) {
	if dir == "" {
		dir = p.cfg.IndexDir
	}
	p.buildMu.Lock()
	defer p.buildMu.Unlock()
	if err := p.store.Load(dir); err != nil {
		p.setState(StateReady)
		if errors.Is(err, models.ErrPersistence) {
			p.logger.Warn("no saved index, starting empty", zap.String("dir", dir), zap.Error(err))
			return false, nil
		}
		return false, fmt.Errorf("load index: %w", err)
	}
	p.setState(StateIndexed)
	p.logger.Info("index loaded", zap.String("dir", dir), zap.Int("entries", p.store.Size()))
	return true, nil
}
