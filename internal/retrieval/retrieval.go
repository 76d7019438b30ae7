// Package retrieval ranks stored chunks against a question and formats them
// as generation context.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/bayan/internal/embedding"
	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/store"
	"github.com/hyperjump/bayan/internal/textnorm"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

// NoContext is returned by FormatContext for an empty result list. Callers
// compare against it by value to skip generation.
const NoContext = "لا توجد معلومات متاحة."

// Defaults for retrieval.
const (
	DefaultTopK     = 5
	DefaultMinScore = 0.3
)

// Engine embeds questions and searches a vector store.
type Engine struct {
	embedder embedding.Embedder
	store    *store.VectorStore
	topK     int
	minScore float64
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTopK sets the default number of results.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithMinScore sets the default score threshold.
func WithMinScore(s float64) Option {
	return func(e *Engine) { e.minScore = s }
}

// NewEngine creates a retrieval engine over s.
func NewEngine(embedder embedding.Embedder, s *store.VectorStore, opts ...Option) *Engine {
	e := &Engine{
		embedder: embedder,
		store:    s,
		topK:     DefaultTopK,
		minScore: DefaultMinScore,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.LoggerOrNop(e.logger)
	return e
}

// TopK returns the default number of results.
func (e *Engine) TopK() int { return e.topK }

// MinScore returns the default score threshold.
func (e *Engine) MinScore() float64 { return e.minScore }

// Retrieve embeds query and returns up to topK results scoring at least
// minScore, best first.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]models.QueryResult, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := e.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	e.logger.Debug("retrieved context",
		zap.String("query", utils.Truncate(query, 50)),
		zap.Int("candidates", len(results)),
		zap.Int("kept", len(filtered)))
	return filtered, nil
}

// RetrieveAndFormat runs Retrieve with the engine defaults and formats the result.
func (e *Engine) RetrieveAndFormat(ctx context.Context, query string) (string, []models.QueryResult, error) {
	results, err := e.Retrieve(ctx, query, e.topK, e.minScore)
	if err != nil {
		return "", nil, err
	}
	return FormatContext(results), results, nil
}

// FormatContext renders results as numbered source blocks, or NoContext when
// there are none.
func FormatContext(results []models.QueryResult) string {
	if len(results) == 0 {
		return NoContext
	}
	parts := make([]string, len(results))
	for i, r := range results {
		source := r.Metadata.Source
		if source == "" {
			source = "unknown"
		}
		parts[i] = fmt.Sprintf("[مصدر %d: %s (درجة التشابه: %.2f)]\n%s\n", i+1, source, r.Score, textnorm.Normalize(r.Text))
	}
	return strings.Join(parts, "\n")
}
