package indexer

import (
	"strings"
	"testing"
)

func BenchmarkChunker_Chunk(b *testing.B) {
	c, err := NewChunker(512, 128, 100)
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("الكلمة اسم وفعل وحرف، والاسم ما دل على معنى في نفسه. ", 400)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Chunk(text, "bench")
	}
}
