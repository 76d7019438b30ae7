// Package store implements the vector store: a vector.VectorIndex kept in
// lock-step with the text and metadata of every entry, persisted as a binary
// index plus a JSON metadata sidecar.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/vector"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

// VectorStore holds unit-normalized vectors with their text and metadata.
// Entry ids are contiguous from 0 and never reused; the store only grows by
// Add or empties by Clear. Safe for concurrent use: searches share a read
// lock, mutations take the write lock.
type VectorStore struct {
	indexType  string
	dimensions int
	index      vector.VectorIndex
	texts      []string
	metadata   []models.Metadata
	logger     *zap.Logger
	mu         sync.RWMutex
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithLogger sets a logger for persistence events.
func WithLogger(l *zap.Logger) Option {
	return func(s *VectorStore) { s.logger = l }
}

// New creates an empty store backed by a vector index of the given type.
func New(indexType string, dimensions int, opts ...Option) (*VectorStore, error) {
	index, err := vector.NewVectorIndex(indexType, dimensions)
	if err != nil {
		return nil, fmt.Errorf("create vector index: %w", err)
	}
	s := &VectorStore{
		indexType:  index.Type(),
		dimensions: dimensions,
		index:      index,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.LoggerOrNop(s.logger)
	return s, nil
}

// NewStaging returns an empty store of the same type, dimension and logger,
// for building an index off to the side before ReplaceWith.
func (s *VectorStore) NewStaging() (*VectorStore, error) {
	return New(s.indexType, s.dimensions, WithLogger(s.logger))
}

// Add inserts entries. vectors, texts and metadata must have equal lengths and
// every vector must match the store dimension, otherwise nothing is inserted
// and the error wraps models.ErrValidation. Vectors are normalized to unit
// length. The returned ids are contiguous, starting at the previous size.
func (s *VectorStore) Add(ctx context.Context, vectors [][]float32, texts []string, metadata []models.Metadata) ([]int64, error) {
	if len(vectors) != len(texts) || len(vectors) != len(metadata) {
		return nil, fmt.Errorf("length mismatch: %d vectors, %d texts, %d metadata: %w",
			len(vectors), len(texts), len(metadata), models.ErrValidation)
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != s.dimensions {
			return nil, fmt.Errorf("vector %d has dimension %d, store expects %d: %w",
				i, len(v), s.dimensions, models.ErrValidation)
		}
		normalized[i] = utils.NormalizedCopy(v)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	start := int64(len(s.texts))
	if err := s.index.Add(ctx, normalized); err != nil {
		return nil, fmt.Errorf("add to vector index: %w", err)
	}
	ids := make([]int64, len(vectors))
	for i := range vectors {
		id := start + int64(i)
		md := metadata[i].Clone()
		md.ID = id
		md.Text = texts[i]
		s.texts = append(s.texts, texts[i])
		s.metadata = append(s.metadata, md)
		ids[i] = id
	}
	return ids, nil
}

// Search returns up to min(k, Size()) entries nearest to query by cosine
// similarity, in non-increasing score order with ties by ascending id. An
// empty store returns an empty slice.
func (s *VectorStore) Search(ctx context.Context, query []float32, k int) ([]models.QueryResult, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("query has dimension %d, store expects %d: %w",
			len(query), s.dimensions, models.ErrValidation)
	}
	q := utils.NormalizedCopy(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.texts) == 0 {
		return []models.QueryResult{}, nil
	}
	hits, err := s.index.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	results := make([]models.QueryResult, 0, len(hits))
	for _, h := range hits {
		if h.ID < 0 || h.ID >= int64(len(s.texts)) {
			continue
		}
		results = append(results, models.QueryResult{
			ID:       h.ID,
			Text:     s.texts[h.ID],
			Score:    h.Score,
			Metadata: s.metadata[h.ID].Clone(),
		})
	}
	return results, nil
}

// Clear resets the store to empty, keeping its dimension and index type.
func (s *VectorStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Reset(); err != nil {
		return fmt.Errorf("reset vector index: %w", err)
	}
	s.texts = nil
	s.metadata = nil
	return nil
}

// ReplaceWith swaps staging's contents into s under the write lock and closes
// the index s held before. staging must share s's dimension and must not be
// used afterwards.
func (s *VectorStore) ReplaceWith(staging *VectorStore) error {
	if staging == s {
		return nil
	}
	if staging.dimensions != s.dimensions {
		return fmt.Errorf("staging dimension %d differs from %d: %w", staging.dimensions, s.dimensions, models.ErrValidation)
	}
	staging.mu.Lock()
	index, texts, metadata := staging.index, staging.texts, staging.metadata
	staging.index, staging.texts, staging.metadata = nil, nil, nil
	staging.mu.Unlock()

	s.mu.Lock()
	old := s.index
	s.index, s.texts, s.metadata = index, texts, metadata
	s.indexType = index.Type()
	s.mu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// Size returns the number of entries.
func (s *VectorStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

// Dimensions returns the fixed vector dimension.
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// IndexType returns the backing vector index type.
func (s *VectorStore) IndexType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexType
}

// Entries returns a copy of all metadata in id order.
func (s *VectorStore) Entries() []models.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Metadata, len(s.metadata))
	for i, m := range s.metadata {
		out[i] = m.Clone()
	}
	return out
}

// Close releases the backing index.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
