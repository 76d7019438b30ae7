package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/bayan/internal/embedding"
	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/store"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Builder chunks documents, embeds the chunks in batches and adds them to a
// vector store.
type Builder struct {
	chunker     *Chunker
	embedder    embedding.Embedder
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for per-batch debug output.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithBatchSize sets how many chunks go into one embedding call and one store Add.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithConcurrency bounds how many embedding batches run at once.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBuilder creates a builder. Defaults are 32 chunks per batch and 4
// concurrent batches.
func NewBuilder(chunker *Chunker, embedder embedding.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		chunker:     chunker,
		embedder:    embedder,
		batchSize:   32,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = utils.LoggerOrNop(b.logger)
	return b
}

// BuildResult reports what a build added.
type BuildResult struct {
	Documents []models.DocumentRecord
	Chunks    int
	Batches   int
}

// BatchError reports a build that stopped at a failing batch. Batches before
// it were committed to the destination store; nothing after it was.
type BatchError struct {
	Batch     int
	Committed int
	Total     int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d of %d failed (%d committed): %v", e.Batch+1, e.Total, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

type batch struct {
	texts    []string
	metadata []models.Metadata
	vectors  [][]float32
	err      error
}

// Build adds docs to dst. Batches are embedded concurrently and committed to
// dst strictly in order; the first failing batch stops the commit and every
// batch before it stays in dst.
func (b *Builder) Build(ctx context.Context, docs []models.Document, dst *store.VectorStore) (*BuildResult, error) {
	res := &BuildResult{}
	var texts []string
	var metadata []models.Metadata
	now := time.Now()
	for _, doc := range docs {
		chunks := b.chunker.Chunk(doc.Text, doc.Source)
		for i := range chunks {
			texts = append(texts, chunks[i].Text)
			metadata = append(metadata, chunks[i].Metadata(doc.Path))
		}
		res.Documents = append(res.Documents, models.DocumentRecord{
			Source:     doc.Source,
			Path:       doc.Path,
			Characters: runeLen(doc.Text),
			Chunks:     len(chunks),
			IndexedAt:  now,
		})
		b.logger.Debug("chunked document", zap.String("source", doc.Source), zap.Int("chunks", len(chunks)))
	}
	if len(texts) == 0 {
		return res, nil
	}

	batches := make([]*batch, 0, (len(texts)+b.batchSize-1)/b.batchSize)
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		batches = append(batches, &batch{texts: texts[start:end], metadata: metadata[start:end]})
	}

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, bt := range batches {
		g.Go(func() error {
			vecs, err := b.embedder.EmbedBatch(ctx, bt.texts)
			if err == nil && len(vecs) != len(bt.texts) {
				err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(bt.texts))
			}
			if err != nil {
				bt.err = fmt.Errorf("embed batch %d: %w", i, err)
				return bt.err
			}
			bt.vectors = vecs
			return nil
		})
	}
	_ = g.Wait()

	for i, bt := range batches {
		if bt.err != nil {
			return res, &BatchError{Batch: i, Committed: res.Batches, Total: len(batches), Err: bt.err}
		}
		if _, err := dst.Add(ctx, bt.vectors, bt.texts, bt.metadata); err != nil {
			return res, &BatchError{Batch: i, Committed: res.Batches, Total: len(batches), Err: err}
		}
		res.Batches++
		res.Chunks += len(bt.texts)
		b.logger.Debug("committed batch", zap.Int("batch", i), zap.Int("chunks", len(bt.texts)))
	}
	return res, nil
}
