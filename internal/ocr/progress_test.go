package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeTempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "label.jpg")
	if err := os.WriteFile(path, []byte("not a real jpeg"), 0644); err != nil {
		t.Fatalf("write temp image: %v", err)
	}
	return path
}

func collect(events <-chan ProgressEvent) []ProgressEvent {
	var out []ProgressEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestExtractIngredientsWithProgressSuccess(t *testing.T) {
	path := writeTempImage(t)
	extractor := &MockExtractor{Text: "성분: 밀가루, 설탕, 소금\n유통기한: 2025.12.31"}

	events, outcome := ExtractIngredientsWithProgress(context.Background(), extractor, path)
	got := collect(events)
	res := <-outcome

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	want := []string{"밀가루", "설탕", "소금"}
	if !reflect.DeepEqual(res.Ingredients, want) {
		t.Errorf("ingredients = %v, want %v", res.Ingredients, want)
	}

	percents := make([]int, len(got))
	for i, ev := range got {
		percents[i] = ev.Percent
	}
	wantPercents := []int{0, 10, 20, 60, 80, 100}
	if !reflect.DeepEqual(percents, wantPercents) {
		t.Errorf("milestones = %v, want %v", percents, wantPercents)
	}
	last := got[len(got)-1]
	if last.Message != "성분 분석 완료! (3개 추출)" {
		t.Errorf("final message = %q", last.Message)
	}
}

func TestExtractIngredientsWithProgressNoText(t *testing.T) {
	path := writeTempImage(t)
	extractor := &MockExtractor{Text: ""}

	events, outcome := ExtractIngredientsWithProgress(context.Background(), extractor, path)
	got := collect(events)
	res := <-outcome

	if res.Err != nil {
		t.Fatalf("no text should not be an error, got: %v", res.Err)
	}
	if len(res.Ingredients) != 0 {
		t.Errorf("ingredients = %v, want empty", res.Ingredients)
	}
	last := got[len(got)-1]
	if last.Percent != 100 || last.Message != "텍스트를 찾을 수 없음" {
		t.Errorf("final event = %+v", last)
	}
}

func TestExtractIngredientsWithProgressMissingFile(t *testing.T) {
	extractor := &MockExtractor{Text: "anything"}
	events, outcome := ExtractIngredientsWithProgress(context.Background(), extractor, "/nonexistent/label.jpg")
	got := collect(events)
	res := <-outcome

	if res.Err == nil {
		t.Fatal("expected error for missing file")
	}
	last := got[len(got)-1]
	if last.Percent != 100 || last.Message != "오류 발생" {
		t.Errorf("final event = %+v", last)
	}
}

func TestExtractIngredientsWithProgressExtractorError(t *testing.T) {
	path := writeTempImage(t)
	providerErr := errors.New("vision unavailable")
	extractor := &MockExtractor{Err: providerErr}

	events, outcome := ExtractIngredientsWithProgress(context.Background(), extractor, path)
	collect(events)
	res := <-outcome

	if !errors.Is(res.Err, providerErr) {
		t.Errorf("err = %v, want wrapped provider error", res.Err)
	}
}

func TestExtractIngredientsRecoversFromPanic(t *testing.T) {
	path := writeTempImage(t)

	// A nil *Extractor stored in the interface dereferences its receiver
	// inside ExtractText. The goroutine must turn that panic into an error
	// instead of crashing the process.
	var broken *Extractor
	events, outcome := ExtractIngredientsWithProgress(context.Background(), broken, path)
	got := collect(events)
	res := <-outcome

	if res.Err == nil {
		t.Fatal("expected an error from a panicking extractor")
	}
	if !strings.Contains(res.Err.Error(), "panicked") {
		t.Errorf("err = %v, want a recovered panic", res.Err)
	}
	if len(got) == 0 {
		t.Fatal("no progress events emitted")
	}
	last := got[len(got)-1]
	if last.Percent != 100 || last.Message != "오류 발생" {
		t.Errorf("final event = %+v, want 100%% error milestone", last)
	}
}

func TestExtractIngredientsDrainsWithoutConsumer(t *testing.T) {
	path := writeTempImage(t)
	extractor := &MockExtractor{Text: "원재료명: 우유, 유크림"}

	got, err := ExtractIngredients(context.Background(), extractor, path)
	if err != nil {
		t.Fatalf("ExtractIngredients failed: %v", err)
	}
	want := []string{"우유", "유크림"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ingredients = %v, want %v", got, want)
	}
}
