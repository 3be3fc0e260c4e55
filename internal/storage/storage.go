// Package storage persists corpus chunks and per-user food logs.
package storage

import (
	"context"

	"github.com/anshimlab/anshim/internal/models"
)

// Storage defines persistence operations for chunks and food logs.
type Storage interface {
	// Chunks mirror the vector index contents so retrieval can resolve IDs
	// without re-reading the corpus.
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	ListChunks(ctx context.Context) ([]*models.Chunk, error)
	DeleteChunksByDocumentID(ctx context.Context, docID string) error
	CountChunks(ctx context.Context) (int64, error)

	CreateFoodLog(ctx context.Context, log *models.FoodLog) error
	GetFoodLog(ctx context.Context, id string) (*models.FoodLog, error)
	ListFoodLogsByUser(ctx context.Context, userID string, offset, limit int) ([]*models.FoodLog, error)

	Close() error
}
