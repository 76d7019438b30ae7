package vector

import (
	"context"
	"testing"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	idx, err := NewVectorIndex("memory", 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(memory): %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
}

func TestNewVectorIndex_Empty(t *testing.T) {
	// Empty string should default to memory
	idx, err := NewVectorIndex("", 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(''): %v", err)
	}
	defer idx.Close()

	if idx.Type() != "memory" {
		t.Errorf("Type=%s, want memory", idx.Type())
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	_, err := NewVectorIndex("unknown", 3)
	if err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_InvalidDimension(t *testing.T) {
	_, err := NewVectorIndex("memory", 0)
	if err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestArtifactName(t *testing.T) {
	if ArtifactName("faiss") != "index.faiss" {
		t.Error("faiss artifact name")
	}
	if ArtifactName("memory") != "index.bin" || ArtifactName("") != "index.bin" {
		t.Error("memory artifact name")
	}
}

func TestIsFAISSAvailable(t *testing.T) {
	// The result depends on build tags.
	t.Logf("FAISS available: %v", IsFAISSAvailable())
}

func TestSortResults(t *testing.T) {
	results := []*VectorResult{{ID: 4, Score: 0.5}, {ID: 2, Score: 0.9}, {ID: 1, Score: 0.5}}
	SortResults(results)
	want := []int64{2, 1, 4}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("position %d: id=%d, want %d", i, results[i].ID, id)
		}
	}
}
