// Package chunker splits page text into overlapping fixed-size chunks, the
// atomic units of retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/anshimlab/anshim/internal/models"
)

// DefaultSeparators are tried best-first when choosing a break point.
// The final empty separator permits character-level splitting.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter produces deterministic overlapping chunks. Sizes and overlap are
// counted in characters (runes), matching label and paper text where bytes
// and characters diverge.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a splitter with the given chunk size and overlap.
// Overlap must be smaller than chunk size; separators default to
// DefaultSeparators when none are given.
func NewSplitter(chunkSize, overlap int, separators ...string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap, separators: separators}
}

// Split chunks the pages of each source document. Page text is concatenated
// per document, so a chunk may span pages of one document, but overlap is
// never taken across distinct documents. Same input and parameters always
// produce the same chunk sequence.
func (s *Splitter) Split(pages []models.Page) []*models.Chunk {
	byDoc := groupByDocument(pages)
	var chunks []*models.Chunk
	for _, docPages := range byDoc {
		chunks = append(chunks, s.splitDocument(docPages)...)
	}
	return chunks
}

// groupByDocument preserves first-seen document order.
func groupByDocument(pages []models.Page) [][]models.Page {
	var order []string
	grouped := make(map[string][]models.Page)
	for _, p := range pages {
		if _, ok := grouped[p.DocumentID]; !ok {
			order = append(order, p.DocumentID)
		}
		grouped[p.DocumentID] = append(grouped[p.DocumentID], p)
	}
	out := make([][]models.Page, 0, len(order))
	for _, id := range order {
		out = append(out, grouped[id])
	}
	return out
}

func (s *Splitter) splitDocument(pages []models.Page) []*models.Chunk {
	if len(pages) == 0 {
		return nil
	}

	// Concatenate pages, remembering the starting rune offset of each page so
	// a chunk can be attributed to the page it starts on.
	var sb strings.Builder
	pageStarts := make([]int, len(pages))
	runeLen := 0
	for i, p := range pages {
		if i > 0 {
			sb.WriteByte('\n')
			runeLen++
		}
		pageStarts[i] = runeLen
		sb.WriteString(p.Text)
		runeLen += len([]rune(p.Text))
	}
	text := []rune(sb.String())

	doc := pages[0]
	var chunks []*models.Chunk
	start := 0
	for start < len(text) {
		end := start + s.chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = s.breakPoint(text, start, end)
		}

		page := pages[pageIndexAt(pageStarts, start)]
		chunks = append(chunks, &models.Chunk{
			ID:         fmt.Sprintf("%s_%d", doc.DocumentID, len(chunks)),
			DocumentID: doc.DocumentID,
			Source:     doc.Source,
			PageIndex:  page.PageIndex,
			ChunkIndex: len(chunks),
			Content:    string(text[start:end]),
		})

		if end >= len(text) {
			break
		}
		// The next chunk begins with exactly the last overlap characters of
		// this one; that region is identical in both chunks.
		start = end - s.overlap
	}
	return chunks
}

// breakPoint picks the chunk end in (start+overlap, start+chunkSize], trying
// each separator in priority order and taking its last occurrence inside the
// window. A break at or before start+overlap would stall the scan, so such
// candidates are rejected and the next separator is tried; the empty separator
// (or no usable occurrence at all) means a hard cut at the size limit.
func (s *Splitter) breakPoint(text []rune, start, limit int) int {
	window := string(text[start:limit])
	for _, sep := range s.separators {
		if sep == "" {
			break
		}
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		end := start + len([]rune(window[:idx])) + len([]rune(sep))
		if end > start+s.overlap {
			return end
		}
	}
	return limit
}

func pageIndexAt(pageStarts []int, offset int) int {
	idx := 0
	for i, ps := range pageStarts {
		if ps <= offset {
			idx = i
		}
	}
	return idx
}
