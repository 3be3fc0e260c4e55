package models

// RetrievalResult is a single retrieved chunk with its similarity score,
// ordered best-to-worst within a retrieval.
type RetrievalResult struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// QueryResult is the outcome of one RAG query: the generated answer plus the
// source passages that grounded it.
type QueryResult struct {
	Answer  string             `json:"answer"`
	Sources []*RetrievalResult `json:"sources"`
}
