package vector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_UpsertSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	err = idx.Upsert(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0, 0}, {0.9, 0.1, 0}, {0, 1, 0}})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].ID != "b" {
		t.Fatalf("unexpected results: %+v %+v", results[0], results[1])
	}

	// Replacing a's vector moves it away from the query without adding an entry.
	if err := idx.Upsert(ctx, []string{"a"}, [][]float32{{0, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.Count(ctx); n != 3 {
		t.Errorf("count after upsert = %d, want 3", n)
	}
	results, _ = idx.Search(ctx, []float32{1, 0, 0}, 1)
	if results[0].ID != "b" {
		t.Errorf("top after replace = %s, want b", results[0].ID)
	}
}

func TestMemoryIndex_Validation(t *testing.T) {
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.Upsert(ctx, []string{"a"}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := idx.Upsert(ctx, []string{"a"}, [][]float32{{1, 2, 3}}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected query dimension error")
	}
	if res, err := idx.Search(ctx, []float32{1, 0}, 5); err != nil || res != nil {
		t.Errorf("empty index search = %v, %v", res, err)
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}})
	if err := idx.Remove(ctx, []string{"x", "missing"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.Count(ctx); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	// Positions are rebuilt so upserting a survivor still replaces in place.
	_ = idx.Upsert(ctx, []string{"z"}, [][]float32{{1, 0}})
	results, _ := idx.Search(ctx, []float32{1, 0}, 1)
	if results[0].ID != "z" {
		t.Errorf("top = %s, want z", results[0].ID)
	}
	if n, _ := idx.Count(ctx); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "documents.vec")
	ctx := context.Background()
	idx, _ := NewMemoryIndex(2)
	_ = idx.Upsert(ctx, []string{"doc-1", "doc-2"}, [][]float32{{0.6, 0.8}, {1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if n, _ := loaded.Count(ctx); n != 2 {
		t.Fatalf("loaded count = %d", n)
	}
	results, _ := loaded.Search(ctx, []float32{0.6, 0.8}, 1)
	if results[0].ID != "doc-1" {
		t.Errorf("top = %s", results[0].ID)
	}

	wrong, _ := NewMemoryIndex(3)
	if err := wrong.Load(path); err == nil {
		t.Error("expected dimension mismatch on load")
	}
	if err := loaded.Load(filepath.Join(t.TempDir(), "absent.vec")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	if got := InnerProduct([]float32{1, 2}, []float32{3, 4}); got != 11 {
		t.Errorf("inner product = %v", got)
	}
	if InnerProduct([]float32{1}, []float32{1, 2}) != 0 {
		t.Error("mismatched lengths should give 0")
	}
	if CosineSimilarity([]float32{1, 0}, []float32{-1, 0}) != 0 {
		t.Error("cosine should clamp at 0")
	}
}
