package vector

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

// runIndexContract exercises the VectorIndex behaviour every backend must share.
func runIndexContract(t *testing.T, newIndex func(dim int) VectorIndex) {
	ctx := context.Background()

	t.Run("add assigns contiguous ids and search ranks by score", func(t *testing.T) {
		idx := newIndex(3)
		defer idx.Close()
		vecs := [][]float32{{1, 0, 0}, {0.8, 0.6, 0}, {0, 1, 0}}
		if err := idx.Add(ctx, vecs); err != nil {
			t.Fatal(err)
		}
		if idx.Size() != 3 {
			t.Fatalf("Size=%d, want 3", idx.Size())
		}
		results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if results[0].ID != 0 || results[1].ID != 1 {
			t.Errorf("unexpected order: %d, %d", results[0].ID, results[1].ID)
		}
		if results[0].Score < results[1].Score {
			t.Error("results must be non-increasing by score")
		}
	})

	t.Run("k larger than size is capped", func(t *testing.T) {
		idx := newIndex(2)
		defer idx.Close()
		_ = idx.Add(ctx, [][]float32{{1, 0}})
		results, err := idx.Search(ctx, []float32{1, 0}, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 {
			t.Errorf("expected 1 result, got %d", len(results))
		}
	})

	t.Run("empty index returns no results", func(t *testing.T) {
		idx := newIndex(2)
		defer idx.Close()
		results, err := idx.Search(ctx, []float32{1, 0}, 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
	})

	t.Run("ties break by ascending id", func(t *testing.T) {
		idx := newIndex(2)
		defer idx.Close()
		_ = idx.Add(ctx, [][]float32{{0, 1}, {1, 0}, {1, 0}, {1, 0}})
		results, err := idx.Search(ctx, []float32{1, 0}, 3)
		if err != nil {
			t.Fatal(err)
		}
		for i, want := range []int64{1, 2, 3} {
			if results[i].ID != want {
				t.Errorf("result %d: id=%d, want %d", i, results[i].ID, want)
			}
		}
	})

	t.Run("dimension mismatch inserts nothing", func(t *testing.T) {
		idx := newIndex(3)
		defer idx.Close()
		err := idx.Add(ctx, [][]float32{{1, 0, 0}, {1, 0}})
		if err == nil {
			t.Fatal("expected dimension error")
		}
		if idx.Size() != 0 {
			t.Errorf("Size=%d after failed add, want 0", idx.Size())
		}
		if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
			t.Error("expected error for query of wrong dimension")
		}
	})

	t.Run("save and load round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "index")
		idx := newIndex(3)
		defer idx.Close()
		_ = idx.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}})
		if err := idx.Save(path); err != nil {
			t.Fatal(err)
		}
		loaded := newIndex(3)
		defer loaded.Close()
		if err := loaded.Load(path); err != nil {
			t.Fatal(err)
		}
		if loaded.Size() != 2 {
			t.Fatalf("Size=%d after load, want 2", loaded.Size())
		}
		results, _ := loaded.Search(ctx, []float32{0, 1, 0}, 1)
		if len(results) != 1 || results[0].ID != 1 {
			t.Errorf("unexpected results after load: %+v", results)
		}
	})

	t.Run("load of missing file reports not exist", func(t *testing.T) {
		idx := newIndex(3)
		defer idx.Close()
		err := idx.Load(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("expected fs.ErrNotExist, got %v", err)
		}
	})

	t.Run("reset keeps dimension", func(t *testing.T) {
		idx := newIndex(2)
		defer idx.Close()
		_ = idx.Add(ctx, [][]float32{{1, 0}})
		if err := idx.Reset(); err != nil {
			t.Fatal(err)
		}
		if idx.Size() != 0 || idx.Dimensions() != 2 {
			t.Errorf("after reset: size=%d dim=%d", idx.Size(), idx.Dimensions())
		}
		if err := idx.Add(ctx, [][]float32{{0, 1}}); err != nil {
			t.Fatal(err)
		}
	})
}
