package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/analysis"
	"github.com/anshimlab/anshim/internal/models"
	"github.com/anshimlab/anshim/internal/ocr"
	"github.com/anshimlab/anshim/internal/storage"
)

const maxUploadBytes = 10 << 20 // 10MB

type ocrResponse struct {
	ExtractedIngredients []string `json:"extracted_ingredients"`
	IngredientsCount     int      `json:"ingredients_count"`
	ProcessingTime       float64  `json:"processing_time"`
	ImagePath            string   `json:"image_path,omitempty"`
	Message              string   `json:"message"`
}

// handleAnalyzeOCR accepts a multipart image upload, runs OCR extraction, and
// returns the parsed ingredient list. When an X-User-Id header is present the
// image is kept for the user's history.
func (s *Server) handleAnalyzeOCR(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		s.respondError(w, http.StatusServiceUnavailable, "OCR 서비스를 사용할 수 없습니다")
		return
	}
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "파일 크기는 10MB를 초과할 수 없습니다")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "이미지 파일이 필요합니다")
		return
	}
	defer file.Close()
	if header.Size == 0 {
		s.respondError(w, http.StatusBadRequest, "빈 파일입니다")
		return
	}

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		s.logger.Error("temp file creation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "이미지 분석 중 오류가 발생했습니다")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.ReadFrom(file); err != nil {
		_ = tmp.Close()
		s.logger.Error("upload write failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "이미지 분석 중 오류가 발생했습니다")
		return
	}
	_ = tmp.Close()

	ingredients, err := ocr.ExtractIngredients(r.Context(), s.extractor, tmpPath)
	if err != nil {
		s.logger.Error("ocr extraction failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "이미지 분석 중 오류가 발생했습니다")
		return
	}

	imagePath := ""
	if userID := r.Header.Get("X-User-Id"); userID != "" && s.images != nil {
		saved, err := os.Open(tmpPath)
		if err == nil {
			imagePath, err = s.images.Save(userID, header.Filename, saved)
			_ = saved.Close()
		}
		if err != nil {
			s.logger.Warn("image save failed", zap.Error(err))
			imagePath = ""
		}
	}

	s.respondJSON(w, http.StatusOK, ocrResponse{
		ExtractedIngredients: ingredients,
		IngredientsCount:     len(ingredients),
		ProcessingTime:       time.Since(start).Seconds(),
		ImagePath:            imagePath,
		Message:              fmt.Sprintf("%d개 성분이 성공적으로 추출되었습니다.", len(ingredients)),
	})
}

type chatbotRequest struct {
	Ingredients []string               `json:"ingredients"`
	UserID      string                 `json:"user_id"`
	ImageURL    string                 `json:"image_url,omitempty"`
	OCRResult   map[string]interface{} `json:"ocr_result,omitempty"`
}

type chatbotResponse struct {
	ChatbotResult   string                 `json:"chatbot_result"`
	UserFoodLogID   string                 `json:"user_food_log_id,omitempty"`
	AnalysisSummary map[string]interface{} `json:"analysis_summary"`
	Message         string                 `json:"message"`
}

// handleAnalyzeChatbot runs the grounded safety analysis for an ingredient
// list and records the result in the user's food log.
func (s *Server) handleAnalyzeChatbot(w http.ResponseWriter, r *http.Request) {
	var req chatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Ingredients) == 0 {
		s.respondError(w, http.StatusBadRequest, "분석할 성분이 없습니다")
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	start := time.Now()
	result, err := s.analyzer.Analyze(r.Context(), req.Ingredients, true)
	if err != nil {
		s.logger.Error("analysis failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "AI 분석 중 오류가 발생했습니다")
		return
	}
	elapsed := time.Since(start).Seconds()

	ocrResult := req.OCRResult
	if ocrResult == nil {
		ocrResult = map[string]interface{}{
			"extracted_ingredients": req.Ingredients,
			"processing_time":       0.0,
			"source":                "manual_input",
			"ingredients_count":     len(req.Ingredients),
		}
	}

	logID := ""
	if s.store != nil {
		log := &models.FoodLog{
			ID:        uuid.New().String(),
			UserID:    req.UserID,
			ImageURL:  req.ImageURL,
			OCRResult: ocrResult,
			Prompt:    strings.Join(req.Ingredients, " | "),
			Response: map[string]interface{}{
				"text_response":        result,
				"ingredients_analyzed": len(req.Ingredients),
				"processing_time":      elapsed,
			},
		}
		if err := s.store.CreateFoodLog(r.Context(), log); err != nil {
			s.logger.Error("food log save failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "분석 기록 저장 중 오류가 발생했습니다")
			return
		}
		logID = log.ID
	}

	s.respondJSON(w, http.StatusOK, chatbotResponse{
		ChatbotResult: result,
		UserFoodLogID: logID,
		AnalysisSummary: map[string]interface{}{
			"total_ingredients": len(req.Ingredients),
			"analysis_type":     "rag_enabled",
			"processing_time":   elapsed,
			"verdict":           analysis.ExtractVerdict(result),
		},
		Message: "성분 분석이 완료되고 기록에 저장되었습니다.",
	})
}

func (s *Server) handleUserLogs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "storage not enabled")
		return
	}
	userID := chi.URLParam(r, "user_id")
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	logs, err := s.store.ListFoodLogsByUser(r.Context(), userID, offset, limit)
	if err != nil {
		s.logger.Error("list food logs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []*models.FoodLog{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"count":   len(logs),
		"logs":    logs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"rag_initialized": s.corpus != nil && s.corpus.IsInitialized(),
	}
	if s.corpus != nil {
		resp["indexed_chunks"] = s.corpus.ChunkCount()
	}
	if s.store != nil {
		if count, err := s.store.CountChunks(r.Context()); err == nil {
			resp["stored_chunks"] = count
		}
	}
	configInfo := map[string]interface{}{
		"corpus_dir":    s.cfg.Corpus.Dir,
		"chunk_size":    s.cfg.Index.ChunkSize,
		"chunk_overlap": s.cfg.Index.ChunkOverlap,
		"top_k":         s.cfg.Retrieval.TopK,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.cfg.Index.Path,
		s.cfg.Index.KeywordPath,
		s.cfg.Storage.DatabasePath,
		s.cfg.Storage.ImageDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
