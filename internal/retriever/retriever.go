// Package retriever finds the corpus chunks most relevant to a query, blending
// semantic similarity with optional keyword matching.
package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/embedding"
	"github.com/anshimlab/anshim/internal/keyword"
	"github.com/anshimlab/anshim/internal/models"
	"github.com/anshimlab/anshim/internal/vector"
)

// ChunkLookup resolves a chunk ID to its chunk.
type ChunkLookup func(id string) (*models.Chunk, bool)

// Retriever searches the vector index and, when a keyword index and a positive
// keyword weight are configured, fuses semantic and lexical scores.
type Retriever struct {
	embedder      embedding.Embedder
	index         vector.Index
	keywordIndex  keyword.Index
	lookup        ChunkLookup
	keywordWeight float64
	logger        *zap.Logger
}

// New creates a retriever. keywordIndex may be nil; keywordWeight 0 disables
// fusion even when it is set.
func New(embedder embedding.Embedder, index vector.Index, keywordIndex keyword.Index, lookup ChunkLookup, keywordWeight float64, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder:      embedder,
		index:         index,
		keywordIndex:  keywordIndex,
		lookup:        lookup,
		keywordWeight: keywordWeight,
		logger:        logger,
	}
}

// Retrieve returns up to k chunks most relevant to query, best first with
// 1-based ranks. An empty index yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]*models.RetrievalResult, error) {
	if k <= 0 || r.index == nil || r.index.Size() == 0 {
		return nil, nil
	}
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Fetch more than k when fusing so keyword hits outside semantic top-k
	// can still surface.
	fetchK := k
	hybrid := r.keywordIndex != nil && r.keywordWeight > 0
	if hybrid {
		fetchK = k * 2
	}
	semantic, err := r.index.Search(ctx, queryVec, fetchK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var ranked []*fusedResult
	if hybrid {
		kwResults, err := r.keywordIndex.Search(ctx, query, fetchK)
		if err != nil {
			// Lexical search is an enhancement; degrade to semantic only.
			r.logger.Warn("keyword search failed, using semantic only", zap.Error(err))
			kwResults = nil
		}
		ranked = fuse(
			normalizeKeywordScores(kwResults),
			semanticScoreMap(semantic),
			r.keywordWeight,
			1-r.keywordWeight,
		)
	} else {
		ranked = make([]*fusedResult, len(semantic))
		for i, res := range semantic {
			ranked[i] = &fusedResult{ID: res.ID, Score: res.Score, SemanticScore: res.Score}
		}
	}

	out := make([]*models.RetrievalResult, 0, k)
	for _, res := range ranked {
		if len(out) == k {
			break
		}
		chunk, ok := r.lookup(res.ID)
		if !ok {
			r.logger.Warn("indexed chunk missing from store", zap.String("chunk_id", res.ID))
			continue
		}
		out = append(out, &models.RetrievalResult{
			Chunk: chunk,
			Score: res.Score,
			Rank:  len(out) + 1,
		})
	}
	return out, nil
}
