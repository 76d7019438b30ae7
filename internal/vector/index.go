// Package vector provides raw nearest-neighbour indexes over dense vectors.
package vector

import "context"

// VectorIndex stores vectors under contiguous int64 ids (0..Size()-1, assigned
// in insertion order) and answers inner-product top-k queries.
type VectorIndex interface {
	// Add appends vectors; the first gets id Size() before the call.
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	// Save writes the index to path. Load replaces the contents from path and
	// returns an error wrapping fs.ErrNotExist when the file is missing.
	Save(path string) error
	Load(path string) error
	Reset() error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single hit. Score is the inner product, which equals cosine
// similarity when both sides are unit-normalized.
type VectorResult struct {
	ID    int64
	Score float64
}
