// Package indexer builds the vector index from corpus chunks, batching large
// corpora to bound memory.
package indexer

import (
	"context"
	"runtime"

	"github.com/anshimlab/anshim/internal/config"
	"github.com/anshimlab/anshim/internal/embedding"
	"github.com/anshimlab/anshim/internal/faults"
	"github.com/anshimlab/anshim/internal/models"
	"github.com/anshimlab/anshim/internal/vector"
	"go.uber.org/zap"
)

// Builder embeds chunks and assembles them into a vector index. Corpora above
// the configured threshold are built incrementally in fixed-size batches, with
// periodic GC and snapshot saves, so a large reference corpus does not hold
// every intermediate allocation live at once.
type Builder struct {
	embedder embedding.Embedder
	cfg      *config.IndexConfig
	logger   *zap.Logger
}

// BuildStats reports what a build did. Useful for logging and tests.
type BuildStats struct {
	Chunks    int
	Batches   int
	GCCycles  int
	Snapshots int
}

// NewBuilder creates a builder using the given embedder and index settings.
func NewBuilder(embedder embedding.Embedder, cfg *config.IndexConfig, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{embedder: embedder, cfg: cfg, logger: logger}
}

// Build embeds all chunks and returns a populated index. Chunks get their
// Embedding field set as a side effect so callers can persist them. Any
// embedding failure aborts the whole build; a partial index is never returned.
func (b *Builder) Build(ctx context.Context, chunks []*models.Chunk) (vector.Index, *BuildStats, error) {
	stats := &BuildStats{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return nil, stats, faults.ErrEmptyInput
	}
	if len(chunks) <= b.cfg.LargeCorpusThreshold {
		idx, err := b.buildOnce(ctx, chunks)
		if err != nil {
			return nil, stats, err
		}
		stats.Batches = 1
		return idx, stats, nil
	}
	idx, err := b.buildIncremental(ctx, chunks, stats)
	if err != nil {
		return nil, stats, err
	}
	return idx, stats, nil
}

// buildOnce embeds everything in one pass. The embedder handles provider-side
// sub-batching internally.
func (b *Builder) buildOnce(ctx context.Context, chunks []*models.Chunk) (vector.Index, error) {
	b.logger.Info("building index in one pass", zap.Int("chunks", len(chunks)))
	vectors, err := b.embedChunks(ctx, chunks)
	if err != nil {
		return nil, &faults.BuildError{Batch: -1, Err: err}
	}
	idx, err := vector.NewFlatIndex(b.embedder.Dimensions())
	if err != nil {
		return nil, &faults.BuildError{Batch: -1, Err: err}
	}
	if err := idx.Add(ctx, chunkIDs(chunks), vectors); err != nil {
		return nil, &faults.BuildError{Batch: -1, Err: err}
	}
	return idx, nil
}

// buildIncremental processes chunks in batches, merging each batch's sub-index
// into the main index. It logs heap usage per batch, forces GC every GCEvery
// batches, and snapshots the index to disk every SnapshotEvery batches so an
// interrupted build does not start from zero.
func (b *Builder) buildIncremental(ctx context.Context, chunks []*models.Chunk, stats *BuildStats) (vector.Index, error) {
	batchSize := b.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	total := (len(chunks) + batchSize - 1) / batchSize
	b.logger.Info("building index incrementally",
		zap.Int("chunks", len(chunks)),
		zap.Int("batch_size", batchSize),
		zap.Int("batches", total))

	var main vector.Index
	for batch := 0; batch*batchSize < len(chunks); batch++ {
		if err := ctx.Err(); err != nil {
			return nil, &faults.BuildError{Batch: batch, Err: err}
		}
		start := batch * batchSize
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		part := chunks[start:end]

		vectors, err := b.embedChunks(ctx, part)
		if err != nil {
			return nil, &faults.BuildError{Batch: batch, Err: err}
		}
		sub, err := vector.NewFlatIndex(b.embedder.Dimensions())
		if err != nil {
			return nil, &faults.BuildError{Batch: batch, Err: err}
		}
		if err := sub.Add(ctx, chunkIDs(part), vectors); err != nil {
			return nil, &faults.BuildError{Batch: batch, Err: err}
		}
		if main == nil {
			main = sub
		} else if err := main.Merge(sub); err != nil {
			return nil, &faults.BuildError{Batch: batch, Err: err}
		}
		stats.Batches++

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		b.logger.Debug("batch indexed",
			zap.Int("batch", batch+1),
			zap.Int("of", total),
			zap.Int("indexed", main.Size()),
			zap.Uint64("heap_alloc_mb", mem.HeapAlloc/1024/1024))

		done := batch + 1
		if gcEvery := b.cfg.GCEvery; gcEvery > 0 && done%gcEvery == 0 {
			before := mem.HeapAlloc
			runtime.GC()
			runtime.ReadMemStats(&mem)
			stats.GCCycles++
			freed := int64(before) - int64(mem.HeapAlloc)
			b.logger.Debug("forced gc",
				zap.Int("batch", done),
				zap.Int64("freed_bytes", freed))
		}
		if snapEvery := b.cfg.SnapshotEvery; snapEvery > 0 && b.cfg.Path != "" && done%snapEvery == 0 && done < total {
			if err := main.Save(b.cfg.Path); err != nil {
				b.logger.Warn("snapshot save failed", zap.Int("batch", done), zap.Error(err))
			} else {
				stats.Snapshots++
				b.logger.Info("snapshot saved", zap.Int("batch", done), zap.Int("indexed", main.Size()))
			}
		}
	}
	return main, nil
}

// embedChunks embeds the chunk contents and attaches each vector to its chunk.
func (b *Builder) embedChunks(ctx context.Context, chunks []*models.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return vectors, nil
}

func chunkIDs(chunks []*models.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	return ids
}
