// Package retrieval finds passages relevant to a query by embedding it and
// querying a vector index.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
)

// DefaultTopK is used when a retriever is built with a non-positive topK.
const DefaultTopK = 3

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns the passages nearest to a vector.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) ([]model.RetrievedPassage, error)
}

// Retriever combines an embedder and a vector index.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	topK     int
	logger   *slog.Logger
}

// New builds a retriever returning at most topK passages per query.
func New(embedder Embedder, index VectorIndex, topK int, l *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger.OrDiscard(l).With("component", "retrieval"),
	}
}

// TopK returns the configured passage limit.
func (r *Retriever) TopK() int { return r.topK }

// Search returns up to TopK passages ordered by descending score. Provider
// failures are returned as *ProviderError.
func (r *Retriever) Search(ctx context.Context, query string) ([]model.RetrievedPassage, error) {
	start := time.Now()

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &ProviderError{Op: "embed", Err: err}
	}

	passages, err := r.index.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, &ProviderError{Op: "query", Err: err}
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > r.topK {
		passages = passages[:r.topK]
	}

	r.logger.Debug("passages retrieved",
		slog.Int("count", len(passages)),
		slog.Duration("took", time.Since(start)),
	)
	return passages, nil
}
