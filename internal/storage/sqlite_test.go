package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/anshimlab/anshim/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "anshim.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChunkRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		{ID: "doc1_0", DocumentID: "doc1", Source: "Allergie.pdf", PageIndex: 0, ChunkIndex: 0, Content: "첫 번째 청크"},
		{ID: "doc1_1", DocumentID: "doc1", Source: "Allergie.pdf", PageIndex: 1, ChunkIndex: 1, Content: "두 번째 청크"},
		{ID: "doc2_0", DocumentID: "doc2", Source: "Guideline.pdf", PageIndex: 0, ChunkIndex: 0, Content: "third"},
	}
	if err := s.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatalf("BatchCreateChunks failed: %v", err)
	}

	got, err := s.GetChunk(ctx, "doc1_1")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if got.Content != "두 번째 청크" || got.Source != "Allergie.pdf" || got.PageIndex != 1 {
		t.Errorf("chunk fields lost: %+v", got)
	}

	count, err := s.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	all, err := s.ListChunks(ctx)
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d chunks, want 3", len(all))
	}
	if all[0].ID != "doc1_0" || all[1].ID != "doc1_1" {
		t.Errorf("chunks not ordered by document and index: %s, %s", all[0].ID, all[1].ID)
	}
}

func TestBatchCreateChunksReplaces(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first := []*models.Chunk{{ID: "a_0", DocumentID: "a", Source: "x.pdf", Content: "old"}}
	if err := s.BatchCreateChunks(ctx, first); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	second := []*models.Chunk{{ID: "a_0", DocumentID: "a", Source: "x.pdf", Content: "new"}}
	if err := s.BatchCreateChunks(ctx, second); err != nil {
		t.Fatalf("rebuild insert failed: %v", err)
	}

	got, err := s.GetChunk(ctx, "a_0")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if got.Content != "new" {
		t.Errorf("content = %q, want replacement", got.Content)
	}
	count, _ := s.CountChunks(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1 after replace", count)
	}
}

func TestDeleteChunksByDocumentID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		{ID: "a_0", DocumentID: "a", Source: "x.pdf", Content: "keep not"},
		{ID: "b_0", DocumentID: "b", Source: "y.pdf", Content: "keep"},
	}
	if err := s.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatalf("BatchCreateChunks failed: %v", err)
	}
	if err := s.DeleteChunksByDocumentID(ctx, "a"); err != nil {
		t.Fatalf("DeleteChunksByDocumentID failed: %v", err)
	}
	if _, err := s.GetChunk(ctx, "a_0"); err == nil {
		t.Error("chunk a_0 should be gone")
	}
	if _, err := s.GetChunk(ctx, "b_0"); err != nil {
		t.Errorf("chunk b_0 should remain: %v", err)
	}
}

func TestFoodLogRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	log := &models.FoodLog{
		ID:       "log-1",
		UserID:   "user-7",
		ImageURL: "/images/user-7/abc.jpg",
		OCRResult: map[string]interface{}{
			"ingredients": []interface{}{"밀가루", "설탕"},
			"count":       float64(2),
		},
		Prompt: "analysis prompt",
		Response: map[string]interface{}{
			"verdict": "섭취 가능",
		},
	}
	if err := s.CreateFoodLog(ctx, log); err != nil {
		t.Fatalf("CreateFoodLog failed: %v", err)
	}

	got, err := s.GetFoodLog(ctx, "log-1")
	if err != nil {
		t.Fatalf("GetFoodLog failed: %v", err)
	}
	if got.UserID != "user-7" || got.ImageURL != log.ImageURL {
		t.Errorf("fields lost: %+v", got)
	}
	if got.OCRResult["count"] != float64(2) {
		t.Errorf("ocr_result not preserved: %v", got.OCRResult)
	}
	if got.Response["verdict"] != "섭취 가능" {
		t.Errorf("response not preserved: %v", got.Response)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestListFoodLogsByUser(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"l1", "l2", "l3"} {
		log := &models.FoodLog{ID: id, UserID: "u1"}
		if err := s.CreateFoodLog(ctx, log); err != nil {
			t.Fatalf("CreateFoodLog(%s) failed: %v", id, err)
		}
	}
	if err := s.CreateFoodLog(ctx, &models.FoodLog{ID: "other", UserID: "u2"}); err != nil {
		t.Fatalf("CreateFoodLog failed: %v", err)
	}

	logs, err := s.ListFoodLogsByUser(ctx, "u1", 0, 10)
	if err != nil {
		t.Fatalf("ListFoodLogsByUser failed: %v", err)
	}
	if len(logs) != 3 {
		t.Errorf("got %d logs, want 3", len(logs))
	}
	for _, l := range logs {
		if l.UserID != "u1" {
			t.Errorf("foreign log leaked: %+v", l)
		}
	}

	limited, err := s.ListFoodLogsByUser(ctx, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ListFoodLogsByUser with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d logs, want 2", len(limited))
	}
}

func TestGetFoodLogNotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetFoodLog(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing food log")
	}
}
