// Package models defines core data structures for corpus documents, chunks, and analysis results.
package models

import "time"

// SourceDocument is one ingested reference document (e.g. an allergen paper).
type SourceDocument struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Pages []Page `json:"pages"`
}

// Page is one page of raw text from a source document.
type Page struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	PageIndex  int    `json:"page_index"`
	Text       string `json:"text"`
}

// Chunk is a bounded slice of page text, the atomic retrieval unit.
// Embedding is attached after the chunk is embedded and never serialized.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Source     string    `json:"source" db:"source"`
	PageIndex  int       `json:"page_index" db:"page_index"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Content    string    `json:"content" db:"content"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
