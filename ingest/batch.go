package ingest

import (
	"context"
	"fmt"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// BatchProcessor embeds batches of chunks and upserts them into a store.
type BatchProcessor struct {
	store    storage.VectorStore
	embedder ai.Embedder
	policy   RetryPolicy
}

// NewBatchProcessor creates a new batch processor.
// policy governs retries of the whole embed and upsert unit.
func NewBatchProcessor(store storage.VectorStore, embedder ai.Embedder, policy RetryPolicy) *BatchProcessor {
	return &BatchProcessor{
		store:    store,
		embedder: embedder,
		policy:   policy,
	}
}

// Process embeds the chunks and upserts them paired with their vectors.
// A failed embedding never reaches the store, so each successful attempt
// writes the batch exactly once.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	return RetryWithBackoff(ctx, func() error {
		vectors, err := bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(chunks), len(vectors))
		}
		if err := bp.store.Upsert(ctx, chunks, vectors); err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
		return nil
	}, bp.policy)
}

// IsRetryable reports whether an ingestion error is worth retrying:
// provider throttling or outages, and transient storage failures.
func IsRetryable(err error) bool {
	return ai.IsRetryable(err) || storage.IsTransient(err)
}
