// Package embedding maps text to fixed-dimension vectors. The model itself is
// a black box; implementations wrap ONNX Runtime, an OpenAI-compatible HTTP
// endpoint, or a deterministic feature-hashing fallback.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
