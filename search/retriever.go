package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 10

// probeText is embedded by HasData; any vector will do.
const probeText = " "

// Retriever finds the chunks most similar to a question.
type Retriever struct {
	embedder ai.Embedder
	store    storage.VectorStore
	defaultK int
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithDefaultK sets the result count used when a call passes k <= 0.
func WithDefaultK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			return ErrInvalidK
		}
		r.defaultK = k
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(embedder ai.Embedder, store storage.VectorStore, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	r := &Retriever{
		embedder: embedder,
		store:    store,
		defaultK: DefaultK,
		logger:   slog.Default().With("component", "retriever"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// DefaultK returns the result count used when a call passes k <= 0.
func (r *Retriever) DefaultK() int {
	return r.defaultK
}

// Search returns up to k chunks similar to question, most similar first.
func (r *Retriever) Search(ctx context.Context, question string, k int) ([]*core.SearchResult, error) {
	return r.SearchWithMonitor(ctx, question, k, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (r *Retriever) SearchWithMonitor(ctx context.Context, question string, k int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if k <= 0 {
		k = r.defaultK
	}

	monitor.Start(question, k)

	embedding, err := r.embedder.EmbedText(ctx, question)
	if err != nil {
		r.logger.Error("error generating embedding for question", "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(embedding))

	results, err := r.store.SimilaritySearch(ctx, embedding, k)
	if err != nil {
		r.logger.Error("error querying for similar chunks", "k", k, "err", err)
		return nil, err
	}
	monitor.AfterSearch(results)

	r.logger.Debug("retrieved chunks", "k", k, "hits", len(results))
	return results, nil
}

// Context returns the text of the k chunks most similar to question joined
// by ContextSeparator, or "" when nothing matches.
func (r *Retriever) Context(ctx context.Context, question string, k int) (string, error) {
	return r.ContextWithMonitor(ctx, question, k, nil)
}

// ContextWithMonitor is Context with callbacks at each stage.
func (r *Retriever) ContextWithMonitor(ctx context.Context, question string, k int, monitor SearchMonitor) (string, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	results, err := r.SearchWithMonitor(ctx, question, k, monitor)
	if err != nil {
		return "", err
	}

	joined := JoinContext(results)
	monitor.Finish(joined)
	return joined, nil
}

// HasData reports whether the store holds at least one chunk.
// Errors are logged and reported as false, so a failing store looks empty.
func (r *Retriever) HasData(ctx context.Context) bool {
	embedding, err := r.embedder.EmbedText(ctx, probeText)
	if err != nil {
		r.logger.Debug("probe embedding failed", "err", err)
		return false
	}
	results, err := r.store.SimilaritySearch(ctx, embedding, 1)
	if err != nil {
		r.logger.Debug("probe search failed", "err", err)
		return false
	}
	return len(results) > 0
}

// JoinContext joins the contents of results with ContextSeparator.
func JoinContext(results []*core.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, result := range results {
		if result == nil || result.Chunk == nil {
			continue
		}
		parts = append(parts, result.Chunk.Content)
	}
	return strings.Join(parts, ContextSeparator)
}
