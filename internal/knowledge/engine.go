package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cginside/hobi/internal/settings"
	"github.com/cginside/hobi/pkg/llm"
	"github.com/cginside/hobi/pkg/logging"
)

const (
	// rrfK is the standard reciprocal-rank-fusion damping constant.
	rrfK = 60
	// similarityFloor filters vector-only results when the lexical path is
	// unavailable and no rank fusion can compensate for weak matches.
	similarityFloor = 0.1
)

// SearchResult is a chunk hit with its fused ranking score and the search
// path that produced it.
type SearchResult struct {
	Chunk
	Score      float64
	SearchPath string
}

type chunkStore interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteChunks(ctx context.Context, documentID string) error
	ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk) error
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]Chunk, error)
	LexicalSearch(ctx context.Context, query string, limit int) ([]Chunk, error)
}

type settingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Engine maintains the searchable chunk index and serves similarity queries.
type Engine struct {
	store    chunkStore
	embedder llm.EmbeddingClient
	settings settingsSource
	logger   logging.Logger

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

func NewEngine(store chunkStore, embedder llm.EmbeddingClient, settingsStore settingsSource, logger logging.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("chunk store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedding client is required")
	}
	if settingsStore == nil {
		return nil, errors.New("settings source is required")
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		settings: settingsStore,
		logger:   logger,
		docLocks: make(map[string]*sync.Mutex),
	}, nil
}

// lockDocument serializes re-indexing per document id. Different documents
// index concurrently; the same document never does.
func (e *Engine) lockDocument(id string) func() {
	e.mu.Lock()
	lock, ok := e.docLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.docLocks[id] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// EmbedAndStoreDocument chunks, embeds, and indexes one document, returning
// the number of chunks written. The previously indexed chunk set is deleted
// only after every new chunk has an embedding; an embedding failure leaves
// the old index fully intact and is returned to the caller. An empty
// document clears any existing chunks for the id.
func (e *Engine) EmbedAndStoreDocument(ctx context.Context, documentID, title, content string) (int, error) {
	if documentID == "" {
		return 0, errors.New("document id is required")
	}
	unlock := e.lockDocument(documentID)
	defer unlock()

	cfg, err := e.settings.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}
	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("configure splitter: %w", err)
	}

	texts := splitter.Split(content)
	if len(texts) == 0 {
		if err := e.store.DeleteChunks(ctx, documentID); err != nil {
			return 0, err
		}
		e.logger.WithField("document_id", documentID).Info("Cleared chunks for empty document")
		return 0, nil
	}

	embedStart := time.Now()
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	embedDuration.Observe(time.Since(embedStart).Seconds())
	if err != nil {
		embedCallsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("embed document %s: %w", documentID, err)
	}
	embedCallsTotal.WithLabelValues("success").Inc()
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedding mismatch for %s: %d chunks, %d vectors", documentID, len(texts), len(vectors))
	}

	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Content:    text,
			Index:      i,
			Embedding:  vectors[i],
			Metadata: map[string]any{
				"source": title,
			},
		})
	}

	if err := e.store.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return 0, err
	}
	indexedChunksTotal.Add(float64(len(chunks)))

	e.logger.WithFields(logging.Fields{
		"document_id": documentID,
		"chunks":      len(chunks),
	}).Info("Document indexed")
	return len(chunks), nil
}

// RebuildAll re-indexes every stored document and returns the total chunk
// count. The first failing document aborts the rebuild; partial progress on
// other documents is kept since each document swap is independent.
func (e *Engine) RebuildAll(ctx context.Context) (int, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, doc := range docs {
		count, err := e.EmbedAndStoreDocument(ctx, doc.ID, doc.Title, doc.Content)
		if err != nil {
			return total, fmt.Errorf("rebuild aborted at %s: %w", doc.ID, err)
		}
		total += count
	}

	e.logger.WithFields(logging.Fields{
		"documents": len(docs),
		"chunks":    total,
	}).Info("Knowledge index rebuilt")
	return total, nil
}

// SearchSimilar embeds the query and returns the top-k chunks, best first.
// The primary path fuses vector and lexical result sets by reciprocal rank;
// when lexical search is unavailable it falls back to vector-only search
// with a similarity floor.
func (e *Engine) SearchSimilar(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if query == "" {
		return nil, errors.New("query is required")
	}
	if k <= 0 {
		k = 3
	}

	start := time.Now()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	embedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		embedCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embed query: %w", err)
	}
	embedCallsTotal.WithLabelValues("success").Inc()

	vectorHits, err := e.store.VectorSearch(ctx, embedding, k)
	if err != nil {
		return nil, err
	}

	lexicalHits, err := e.store.LexicalSearch(ctx, query, k)
	if err != nil {
		e.logger.WithError(err).Warn("Lexical search unavailable, falling back to vector-only")
		searchesTotal.WithLabelValues("vector").Inc()
		return vectorOnly(vectorHits, k), nil
	}

	searchesTotal.WithLabelValues("hybrid").Inc()
	return fuseByRank(vectorHits, lexicalHits, k), nil
}

func vectorOnly(hits []Chunk, k int) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < similarityFloor {
			continue
		}
		results = append(results, SearchResult{
			Chunk:      hit,
			Score:      hit.Similarity,
			SearchPath: "vector",
		})
		if len(results) == k {
			break
		}
	}
	return results
}

// fuseByRank merges two ranked result sets with reciprocal-rank fusion.
// Cosine similarity is carried from the vector set so callers can still
// apply similarity thresholds to the fused output.
func fuseByRank(vectorHits, lexicalHits []Chunk, k int) []SearchResult {
	fused := make(map[string]*SearchResult)

	for rank, hit := range vectorHits {
		fused[hit.ID] = &SearchResult{
			Chunk:      hit,
			Score:      1.0 / float64(rrfK+rank+1),
			SearchPath: "hybrid",
		}
	}
	for rank, hit := range lexicalHits {
		score := 1.0 / float64(rrfK+rank+1)
		if existing, ok := fused[hit.ID]; ok {
			existing.Score += score
			continue
		}
		fused[hit.ID] = &SearchResult{
			Chunk:      hit,
			Score:      score,
			SearchPath: "hybrid",
		}
	}

	results := make([]SearchResult, 0, len(fused))
	for _, result := range fused {
		results = append(results, *result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
