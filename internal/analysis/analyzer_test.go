package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anshimlab/anshim/internal/faults"
	"github.com/anshimlab/anshim/internal/llm"
	"github.com/anshimlab/anshim/internal/models"
)

type fakeQuerier struct {
	answer      string
	err         error
	initialized bool
	questions   []string
}

func (f *fakeQuerier) Query(ctx context.Context, question string) (*models.QueryResult, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return nil, f.err
	}
	return &models.QueryResult{Answer: f.answer}, nil
}

func (f *fakeQuerier) IsInitialized() bool { return f.initialized }

func TestAnalyzeEmptyIngredients(t *testing.T) {
	a := NewAnalyzer(&llm.MockGenerator{}, nil, nil)
	got, err := a.Analyze(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != MsgNoIngredients {
		t.Errorf("got %q, want %q", got, MsgNoIngredients)
	}
}

func TestAnalyzeNotInitialized(t *testing.T) {
	a := NewAnalyzer(nil, nil, nil)
	_, err := a.Analyze(context.Background(), []string{"밀가루"}, false)
	if !errors.Is(err, faults.ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}

func TestAnalyzeDirect(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{"[최종 판단]\n섭취 가능"}}
	a := NewAnalyzer(gen, nil, nil)

	got, err := a.Analyze(context.Background(), []string{"밀가루", "설탕"}, false)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !strings.Contains(got, VerdictSafe) {
		t.Errorf("answer %q does not contain verdict", got)
	}
	if len(gen.Prompts) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.Prompts))
	}
	prompt := gen.Prompts[0]
	if !strings.Contains(prompt, "밀가루, 설탕") {
		t.Errorf("prompt missing joined ingredient list:\n%s", prompt)
	}
	for _, verdict := range []string{VerdictSafe, VerdictCaution, VerdictAvoid} {
		if !strings.Contains(prompt, verdict) {
			t.Errorf("prompt missing verdict option %q", verdict)
		}
	}
	if !strings.Contains(prompt, Disclaimer) {
		t.Error("prompt missing disclaimer instruction")
	}
}

func TestAnalyzeGrounded(t *testing.T) {
	rag := &fakeQuerier{answer: "섭취 주의가 필요합니다.", initialized: true}
	a := NewAnalyzer(&llm.MockGenerator{}, rag, nil)

	got, err := a.Analyze(context.Background(), []string{"아스파탐"}, true)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got != rag.answer {
		t.Errorf("got %q, want grounded answer", got)
	}
	if len(rag.questions) != 1 {
		t.Fatalf("querier called %d times, want 1", len(rag.questions))
	}
	if !strings.Contains(rag.questions[0], "아스파탐") {
		t.Error("grounded prompt missing ingredient")
	}
	if !strings.Contains(rag.questions[0], "논문 자료") {
		t.Error("grounded prompt missing corpus instruction")
	}
}

func TestAnalyzeGroundedFallsBackWhenNotReady(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{"direct answer"}}
	rag := &fakeQuerier{initialized: false}
	a := NewAnalyzer(gen, rag, nil)

	got, err := a.Analyze(context.Background(), []string{"소금"}, true)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got != "direct answer" {
		t.Errorf("got %q, want direct fallback", got)
	}
	if len(rag.questions) != 0 {
		t.Error("querier should not be called when not initialized")
	}
}

func TestAnalyzeGenerationFailureIsSoft(t *testing.T) {
	gen := &llm.MockGenerator{Err: errors.New("provider down")}
	a := NewAnalyzer(gen, nil, nil)

	got, err := a.Analyze(context.Background(), []string{"소금"}, false)
	if err != nil {
		t.Fatalf("provider failure must not surface as error, got: %v", err)
	}
	if got != MsgAnalysisFailure {
		t.Errorf("got %q, want %q", got, MsgAnalysisFailure)
	}
}

func TestAnalyzeGroundedFailureIsSoft(t *testing.T) {
	rag := &fakeQuerier{err: errors.New("index corrupt"), initialized: true}
	a := NewAnalyzer(&llm.MockGenerator{}, rag, nil)

	got, err := a.Analyze(context.Background(), []string{"소금"}, true)
	if err != nil {
		t.Fatalf("corpus failure must not surface as error, got: %v", err)
	}
	if got != MsgAnalysisFailure {
		t.Errorf("got %q, want %q", got, MsgAnalysisFailure)
	}
}
