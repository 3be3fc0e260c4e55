// Package keyword provides lexical (BM25) search over chunk text, used to
// complement semantic retrieval for queries with rare or exact terms such as
// ingredient names.
package keyword

import "context"

// Index defines keyword search operations over chunks.
type Index interface {
	Index(ctx context.Context, id string, content string) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
