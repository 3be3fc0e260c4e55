package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anshimlab/anshim/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		source TEXT NOT NULL,
		page_index INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_chunk ON chunks(document_id, chunk_index);

	CREATE TABLE IF NOT EXISTS food_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		image_url TEXT,
		ocr_result TEXT,
		prompt TEXT,
		response TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_food_logs_user ON food_logs(user_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// BatchCreateChunks inserts chunks in a transaction, replacing existing rows
// with the same ID so a corpus rebuild does not duplicate.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, document_id, source, page_index, chunk_index, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.DocumentID, chunk.Source, chunk.PageIndex,
			chunk.ChunkIndex, chunk.Content, chunk.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	var chunk models.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, source, page_index, chunk_index, content, created_at
		 FROM chunks WHERE id = ?`, id,
	).Scan(&chunk.ID, &chunk.DocumentID, &chunk.Source, &chunk.PageIndex,
		&chunk.ChunkIndex, &chunk.Content, &chunk.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// ListChunks returns all chunks ordered by document and chunk index.
func (s *SQLiteStorage) ListChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, source, page_index, chunk_index, content, created_at
		 FROM chunks ORDER BY document_id, chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Source, &chunk.PageIndex,
			&chunk.ChunkIndex, &chunk.Content, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// DeleteChunksByDocumentID removes all chunks for a document.
func (s *SQLiteStorage) DeleteChunksByDocumentID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID)
	return err
}

// CountChunks returns the total number of stored chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CreateFoodLog inserts a food log record.
func (s *SQLiteStorage) CreateFoodLog(ctx context.Context, log *models.FoodLog) error {
	ocrJSON, err := json.Marshal(log.OCRResult)
	if err != nil {
		return fmt.Errorf("failed to marshal ocr result: %w", err)
	}
	respJSON, err := json.Marshal(log.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO food_logs (id, user_id, image_url, ocr_result, prompt, response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.UserID, log.ImageURL, string(ocrJSON), log.Prompt, string(respJSON), log.CreatedAt,
	)
	return err
}

// GetFoodLog returns a food log by ID.
func (s *SQLiteStorage) GetFoodLog(ctx context.Context, id string) (*models.FoodLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, image_url, ocr_result, prompt, response, created_at
		 FROM food_logs WHERE id = ?`, id,
	)
	log, err := scanFoodLog(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("food log not found: %s", id)
	}
	return log, err
}

// ListFoodLogsByUser returns a user's food logs, newest first.
func (s *SQLiteStorage) ListFoodLogsByUser(ctx context.Context, userID string, offset, limit int) ([]*models.FoodLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, image_url, ocr_result, prompt, response, created_at
		 FROM food_logs WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.FoodLog
	for rows.Next() {
		log, err := scanFoodLog(rows.Scan)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func scanFoodLog(scan func(dest ...interface{}) error) (*models.FoodLog, error) {
	var log models.FoodLog
	var ocrJSON, respJSON string
	if err := scan(&log.ID, &log.UserID, &log.ImageURL, &ocrJSON, &log.Prompt, &respJSON, &log.CreatedAt); err != nil {
		return nil, err
	}
	if ocrJSON != "" {
		if err := json.Unmarshal([]byte(ocrJSON), &log.OCRResult); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ocr result: %w", err)
		}
	}
	if respJSON != "" {
		if err := json.Unmarshal([]byte(respJSON), &log.Response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return &log, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
