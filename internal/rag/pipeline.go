// Package rag wires corpus loading, chunking, embedding, indexing, retrieval,
// and generation into one question answering pipeline.
package rag

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/chunker"
	"github.com/anshimlab/anshim/internal/config"
	"github.com/anshimlab/anshim/internal/corpus"
	"github.com/anshimlab/anshim/internal/embedding"
	"github.com/anshimlab/anshim/internal/faults"
	"github.com/anshimlab/anshim/internal/indexer"
	"github.com/anshimlab/anshim/internal/keyword"
	"github.com/anshimlab/anshim/internal/llm"
	"github.com/anshimlab/anshim/internal/models"
	"github.com/anshimlab/anshim/internal/retriever"
	"github.com/anshimlab/anshim/internal/storage"
	"github.com/anshimlab/anshim/internal/vector"
)

// Pipeline is the question answering system over the reference corpus.
// Construct it with New, call Initialize once, then Query freely; all methods
// are safe for concurrent use.
type Pipeline struct {
	loader       *corpus.Loader
	splitter     *chunker.Splitter
	builder      *indexer.Builder
	embedder     embedding.Embedder
	generator    llm.Generator
	keywordIndex keyword.Index
	store        storage.Storage
	cfg          *config.Config
	logger       *zap.Logger

	mu          sync.RWMutex
	initialized bool
	index       vector.Index
	chunks      map[string]*models.Chunk
	retr        *retriever.Retriever
}

// New assembles a pipeline from its dependencies. keywordIndex and store may
// be nil; retrieval then runs semantic-only and chunks live only in memory.
func New(cfg *config.Config, embedder embedding.Embedder, generator llm.Generator, keywordIndex keyword.Index, store storage.Storage, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		loader:       corpus.NewLoader(&cfg.Corpus, logger),
		splitter:     chunker.NewSplitter(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap),
		builder:      indexer.NewBuilder(embedder, &cfg.Index, logger),
		embedder:     embedder,
		generator:    generator,
		keywordIndex: keywordIndex,
		store:        store,
		cfg:          cfg,
		logger:       logger,
	}
}

// IsInitialized reports whether the pipeline is ready to answer queries.
func (p *Pipeline) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

// Initialize loads the corpus, reuses a persisted index when it matches, and
// otherwise builds and persists a fresh one. Calling it again is a no-op.
func (p *Pipeline) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	return p.initializeLocked(ctx)
}

// Rebuild discards the current index and rebuilds from the corpus on disk.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg.Index.Path != "" {
		if err := os.Remove(p.cfg.Index.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale index: %w", err)
		}
	}
	p.initialized = false
	return p.initializeLocked(ctx)
}

func (p *Pipeline) initializeLocked(ctx context.Context) error {
	docs, err := p.loader.Load()
	if err != nil {
		return err
	}
	chunks := p.splitter.Split(corpus.Pages(docs))
	if len(chunks) == 0 {
		return faults.ErrEmptyCorpus
	}
	p.logger.Info("corpus split",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)))

	idx := p.loadPersistedIndex(len(chunks))
	if idx == nil {
		built, stats, err := p.builder.Build(ctx, chunks)
		if err != nil {
			return err
		}
		p.logger.Info("index built",
			zap.Int("chunks", stats.Chunks),
			zap.Int("batches", stats.Batches),
			zap.Int("snapshots", stats.Snapshots))
		if p.cfg.Index.Path != "" {
			if err := built.Save(p.cfg.Index.Path); err != nil {
				return fmt.Errorf("persist index: %w", err)
			}
		}
		idx = built
	}

	// Sync on the reuse path too. The keyword index and chunk store live in
	// separate files from the vector index, so a persisted index can outlive
	// them. Both writes are idempotent upserts.
	if err := p.syncAuxiliaryStores(ctx, chunks); err != nil {
		return err
	}

	byID := make(map[string]*models.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}

	p.index = idx
	p.chunks = byID
	p.retr = retriever.New(
		p.embedder,
		idx,
		p.keywordIndex,
		func(id string) (*models.Chunk, bool) {
			ch, ok := byID[id]
			return ch, ok
		},
		p.cfg.Retrieval.KeywordWeight,
		p.logger,
	)
	p.initialized = true
	return nil
}

// loadPersistedIndex opens the saved index when it exists and its size matches
// the current corpus split. Chunking is deterministic, so a size match means
// chunk IDs line up and no re-embedding is needed.
func (p *Pipeline) loadPersistedIndex(wantChunks int) vector.Index {
	path := p.cfg.Index.Path
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	idx, err := vector.OpenFlatIndex(path)
	if err != nil {
		p.logger.Warn("persisted index unreadable, rebuilding", zap.Error(err))
		return nil
	}
	if idx.Size() != wantChunks {
		p.logger.Warn("persisted index out of date, rebuilding",
			zap.Int("indexed", idx.Size()),
			zap.Int("corpus_chunks", wantChunks))
		return nil
	}
	p.logger.Info("persisted index loaded", zap.Int("chunks", idx.Size()))
	return idx
}

// syncAuxiliaryStores upserts chunks into the keyword index and the database.
// It runs on every initialization, whether the vector index was rebuilt or
// loaded from disk.
func (p *Pipeline) syncAuxiliaryStores(ctx context.Context, chunks []*models.Chunk) error {
	if p.keywordIndex != nil {
		for _, ch := range chunks {
			if err := p.keywordIndex.Index(ctx, ch.ID, ch.Content); err != nil {
				return fmt.Errorf("keyword index chunk %s: %w", ch.ID, err)
			}
		}
	}
	if p.store != nil {
		if err := p.store.BatchCreateChunks(ctx, chunks); err != nil {
			return fmt.Errorf("persist chunks: %w", err)
		}
	}
	return nil
}

// ChunkCount returns the number of indexed chunks, 0 before initialization.
func (p *Pipeline) ChunkCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index == nil {
		return 0
	}
	return p.index.Size()
}

const groundedPromptTemplate = `다음은 참고 자료에서 검색된 문단입니다. 이 자료를 근거로 질문에 답변해 주세요.
자료에 없는 내용은 일반적인 지식으로 보완하되, 자료의 내용과 상충되지 않게 해 주세요.

참고 자료:
%s

질문:
%s`

// Query retrieves the most relevant corpus passages for question and generates
// a grounded answer.
func (p *Pipeline) Query(ctx context.Context, question string) (*models.QueryResult, error) {
	p.mu.RLock()
	retr := p.retr
	initialized := p.initialized
	p.mu.RUnlock()

	if !initialized {
		return nil, faults.ErrNotInitialized
	}
	if strings.TrimSpace(question) == "" {
		return nil, faults.ErrEmptyInput
	}

	sources, err := retr.Retrieve(ctx, question, p.cfg.Retrieval.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	prompt := question
	if len(sources) > 0 {
		var sb strings.Builder
		for i, src := range sources {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			fmt.Fprintf(&sb, "[%d] (%s, p.%d)\n%s", src.Rank, src.Chunk.Source, src.Chunk.PageIndex+1, src.Chunk.Content)
		}
		prompt = fmt.Sprintf(groundedPromptTemplate, sb.String(), question)
	}

	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &models.QueryResult{Answer: answer, Sources: sources}, nil
}

// Close releases the pipeline's owned resources.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index != nil {
		_ = p.index.Close()
	}
	return nil
}
