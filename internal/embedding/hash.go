package embedding

import (
	"context"
	"strings"

	"github.com/hyperjump/bayan/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder using feature hashing.
// Texts sharing words get similar vectors, which is enough for tests and as a
// fallback when no model is available. The same text always gets the same
// embedding.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hashing embedder of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the unit-normalized hashed word counts of text. Text with no
// words yields the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, w := range SplitWords(strings.ToLower(text)) {
		h := HashString(w)
		i := int(h % uint32(e.dimensions))
		if h&0x80000000 != 0 {
			emb[i] -= 1
		} else {
			emb[i] += 1
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
