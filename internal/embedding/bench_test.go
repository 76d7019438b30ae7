package embedding

import (
	"context"
	"testing"
)

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkCachedEmbedder_Embed(b *testing.B) {
	e := NewCachedEmbedder(NewHashEmbedder(384), 100)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
