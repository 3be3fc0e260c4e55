package retriever

import (
	"sort"

	"github.com/anshimlab/anshim/internal/keyword"
	"github.com/anshimlab/anshim/internal/vector"
)

// fusedResult holds a chunk ID and its blended score components.
type fusedResult struct {
	ID            string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// normalizeKeywordScores normalizes keyword scores to [0,1] by max. Bleve
// scores are unbounded, semantic scores are already cosine similarities.
func normalizeKeywordScores(results []*keyword.Result) map[string]float64 {
	if len(results) == 0 {
		return make(map[string]float64)
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	normalized := make(map[string]float64)
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

func semanticScoreMap(results []*vector.Result) map[string]float64 {
	scores := make(map[string]float64)
	for _, r := range results {
		scores[r.ID] = r.Score
	}
	return scores
}

// fuse merges keyword and semantic score maps with weights and returns results
// sorted best first.
func fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*fusedResult {
	scoreMap := make(map[string]*fusedResult)
	for id, score := range keywordScores {
		scoreMap[id] = &fusedResult{ID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if result, exists := scoreMap[id]; exists {
			result.SemanticScore = score
		} else {
			scoreMap[id] = &fusedResult{ID: id, SemanticScore: score}
		}
	}
	results := make([]*fusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = (keywordWeight * result.KeywordScore) + (semanticWeight * result.SemanticScore)
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}
