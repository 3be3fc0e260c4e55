// Package analysis turns an extracted ingredient list into a pregnancy safety
// verdict, optionally grounding the answer in the reference corpus.
package analysis

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/faults"
	"github.com/anshimlab/anshim/internal/llm"
	"github.com/anshimlab/anshim/internal/models"
)

// Messages shown to the user instead of errors. Analysis is a user-facing
// operation; provider failures degrade to an apologetic answer, they never
// surface as transport errors.
const (
	MsgNoIngredients   = "분석할 성분 목록이 제공되지 않았습니다."
	MsgAnalysisFailure = "분석 중 오류가 발생했습니다 잠시 후 다시 시도해 주세요."
)

// Querier answers a grounded question from the corpus.
type Querier interface {
	Query(ctx context.Context, question string) (*models.QueryResult, error)
	IsInitialized() bool
}

// Analyzer generates safety verdicts for ingredient lists. It is ready once
// constructed with a non-nil generator; the corpus querier is optional and
// only used when a caller requests grounded analysis.
type Analyzer struct {
	generator llm.Generator
	rag       Querier
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer. rag may be nil; grounded requests then fall
// back to direct generation.
func NewAnalyzer(generator llm.Generator, rag Querier, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{generator: generator, rag: rag, logger: logger}
}

// Analyze produces a verdict text for the ingredient list. An empty list and
// provider failures both yield a user-facing message with a nil error; the
// only error this returns is ErrNotInitialized.
func (a *Analyzer) Analyze(ctx context.Context, ingredients []string, useRAG bool) (string, error) {
	if a.generator == nil {
		return "", faults.ErrNotInitialized
	}
	if len(ingredients) == 0 {
		return MsgNoIngredients, nil
	}

	if useRAG {
		if a.rag != nil && a.rag.IsInitialized() {
			return a.analyzeGrounded(ctx, ingredients), nil
		}
		a.logger.Warn("grounded analysis requested but corpus is not ready, using direct generation")
	}
	return a.analyzeDirect(ctx, ingredients), nil
}

func (a *Analyzer) analyzeDirect(ctx context.Context, ingredients []string) string {
	a.logger.Info("direct analysis", zap.Int("ingredients", len(ingredients)))
	text, err := a.generator.Generate(ctx, buildDirectPrompt(ingredients))
	if err != nil {
		a.logger.Error("generation failed", zap.Error(err))
		return MsgAnalysisFailure
	}
	return text
}

// ExtractVerdict picks the verdict label out of a generated answer, most
// restrictive first since an answer may mention several.
func ExtractVerdict(answer string) string {
	for _, v := range []string{VerdictAvoid, VerdictCaution, VerdictSafe} {
		if strings.Contains(answer, v) {
			return v
		}
	}
	return ""
}

func (a *Analyzer) analyzeGrounded(ctx context.Context, ingredients []string) string {
	a.logger.Info("grounded analysis", zap.Int("ingredients", len(ingredients)))
	result, err := a.rag.Query(ctx, buildRAGPrompt(ingredients))
	if err != nil {
		a.logger.Error("corpus query failed", zap.Error(err))
		return MsgAnalysisFailure
	}
	if result.Answer == "" {
		return MsgAnalysisFailure
	}
	return result.Answer
}
