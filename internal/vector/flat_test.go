package vector

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func unit(dim int, values ...float32) []float32 {
	v := make([]float32, dim)
	copy(v, values)
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func TestFlatIndexAddAndSearch(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatalf("NewFlatIndex failed: %v", err)
	}
	ids := []string{"a", "b", "c"}
	vecs := [][]float32{
		unit(3, 1, 0, 0),
		unit(3, 0, 1, 0),
		unit(3, 1, 1, 0),
	}
	if err := idx.Add(context.Background(), ids, vecs); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size = %d, want 3", idx.Size())
	}

	results, err := idx.Search(context.Background(), unit(3, 1, 0, 0), 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("top result = %q, want %q", results[0].ID, "a")
	}
	if results[1].ID != "c" {
		t.Errorf("second result = %q, want %q", results[1].ID, "c")
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not ordered by score: %f < %f", results[0].Score, results[1].Score)
	}
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	if err == nil {
		t.Error("expected error for wrong vector dimension")
	}
	if _, err := idx.Search(context.Background(), []float32{1, 0}, 1); err == nil {
		t.Error("expected error for wrong query dimension")
	}
}

func TestFlatIndexSearchEmpty(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	results, err := idx.Search(context.Background(), unit(3, 1, 0, 0), 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty index, want 0", len(results))
	}
}

func TestFlatIndexKLargerThanSize(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	idx.Add(context.Background(), []string{"a", "b"}, [][]float32{unit(2, 1, 0), unit(2, 0, 1)})
	results, err := idx.Search(context.Background(), unit(2, 1, 1), 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestFlatIndexMerge(t *testing.T) {
	a, _ := NewFlatIndex(2)
	b, _ := NewFlatIndex(2)
	a.Add(context.Background(), []string{"a1"}, [][]float32{unit(2, 1, 0)})
	b.Add(context.Background(), []string{"b1", "b2"}, [][]float32{unit(2, 0, 1), unit(2, 1, 1)})

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if a.Size() != 3 {
		t.Errorf("merged size = %d, want 3", a.Size())
	}
	results, err := a.Search(context.Background(), unit(2, 0, 1), 1)
	if err != nil {
		t.Fatalf("Search after merge failed: %v", err)
	}
	if results[0].ID != "b1" {
		t.Errorf("top result = %q, want %q", results[0].ID, "b1")
	}
}

func TestFlatIndexMergeDimensionMismatch(t *testing.T) {
	a, _ := NewFlatIndex(2)
	b, _ := NewFlatIndex(3)
	if err := a.Merge(b); err == nil {
		t.Error("expected error merging indexes of different dimensions")
	}
}

func TestFlatIndexSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")

	idx, _ := NewFlatIndex(4)
	ids := []string{"chunk_0", "chunk_1", "chunk_2", "청크_3"}
	vecs := [][]float32{
		unit(4, 1, 0, 0, 0),
		unit(4, 0, 1, 0, 0),
		unit(4, 0, 0, 1, 0),
		unit(4, 1, 1, 0, 1),
	}
	idx.Add(context.Background(), ids, vecs)
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, _ := NewFlatIndex(4)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Size() != idx.Size() {
		t.Fatalf("loaded size = %d, want %d", loaded.Size(), idx.Size())
	}

	query := unit(4, 1, 1, 0, 1)
	want, err := idx.Search(context.Background(), query, 4)
	if err != nil {
		t.Fatalf("Search original failed: %v", err)
	}
	got, err := loaded.Search(context.Background(), query, 4)
	if err != nil {
		t.Fatalf("Search loaded failed: %v", err)
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("result %d: ID = %q, want %q", i, got[i].ID, want[i].ID)
		}
		if math.Abs(got[i].Score-want[i].Score) > 1e-6 {
			t.Errorf("result %d: Score = %f, want %f", i, got[i].Score, want[i].Score)
		}
	}
}

func TestFlatIndexLoadMissingFile(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if err := idx.Load(filepath.Join(t.TempDir(), "nope.bin")); err != nil {
		t.Errorf("Load of missing file should be a no-op, got: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size = %d, want 0", idx.Size())
	}
}

func TestFlatIndexLoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, _ := NewFlatIndex(2)
	idx.Add(context.Background(), []string{"a"}, [][]float32{unit(2, 1, 0)})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	other, _ := NewFlatIndex(3)
	if err := other.Load(path); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
