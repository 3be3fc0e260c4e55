package ocr

import (
	"context"
	"fmt"
	"os"

	"github.com/anshimlab/anshim/internal/ingredient"
)

// ProgressEvent reports how far an extraction has gotten. Percent is 0-100;
// Message is a user-facing Korean status line.
type ProgressEvent struct {
	Percent int
	Message string
}

// Outcome is the final result of an extraction run.
type Outcome struct {
	Ingredients []string
	Err         error
}

// progressEventCap bounds the number of events one run can emit, so the
// events channel never blocks even when nobody drains it.
const progressEventCap = 8

// ExtractIngredients runs the full OCR pipeline without progress reporting.
func ExtractIngredients(ctx context.Context, extractor TextExtractor, imagePath string) ([]string, error) {
	events, outcome := ExtractIngredientsWithProgress(ctx, extractor, imagePath)
	for range events {
	}
	res := <-outcome
	return res.Ingredients, res.Err
}

// ExtractIngredientsWithProgress runs OCR text detection and ingredient
// parsing, streaming milestone events on the first channel and delivering the
// final result on the second. Both channels are closed when the run finishes.
func ExtractIngredientsWithProgress(ctx context.Context, extractor TextExtractor, imagePath string) (<-chan ProgressEvent, <-chan Outcome) {
	events := make(chan ProgressEvent, progressEventCap)
	outcome := make(chan Outcome, 1)

	go func() {
		defer close(events)
		defer close(outcome)

		emit := func(percent int, message string) {
			events <- ProgressEvent{Percent: percent, Message: message}
		}

		// This goroutine runs outside the HTTP middleware chain, so a panic
		// here must be converted to an Outcome before the channels close.
		defer func() {
			if r := recover(); r != nil {
				emit(100, "오류 발생")
				outcome <- Outcome{Err: fmt.Errorf("ocr extraction panicked: %v", r)}
			}
		}()

		emit(0, "OCR 분석 시작 중...")
		if _, err := os.Stat(imagePath); err != nil {
			emit(100, "오류 발생")
			outcome <- Outcome{Err: fmt.Errorf("image file not found: %w", err)}
			return
		}
		emit(10, "이미지 파일 확인 완료...")

		emit(20, "Google Vision API 호출 중...")
		text, err := extractor.ExtractText(ctx, imagePath)
		if err != nil {
			emit(100, "오류 발생")
			outcome <- Outcome{Err: err}
			return
		}
		if text == "" {
			emit(100, "텍스트를 찾을 수 없음")
			outcome <- Outcome{Ingredients: []string{}}
			return
		}
		emit(60, "텍스트 감지 완료, 성분 파싱 중...")

		candidates := ingredient.Parse(text)
		emit(80, "성분 목록 정리 중...")

		cleaned := ingredient.CleanAndFilter(candidates)
		emit(100, fmt.Sprintf("성분 분석 완료! (%d개 추출)", len(cleaned)))
		outcome <- Outcome{Ingredients: cleaned}
	}()

	return events, outcome
}
