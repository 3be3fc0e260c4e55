// Package vector provides the vector index and similarity search.
package vector

import "context"

// Index defines vector storage and similarity search. Writes happen only
// during the build phase; once built, an index may be read concurrently.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	// Merge folds another index of the same dimension into this one.
	Merge(other Index) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single vector search hit; ID is the chunk ID.
type Result struct {
	ID    string
	Score float64 // Inner product; equals cosine similarity for normalized vectors.
}
