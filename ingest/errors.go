package ingest

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRetriesExhausted is returned when every retry attempt failed with a retryable error.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInvalidBatchSize is returned when BatchSize is <= 0
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidDelay is returned for negative or inverted retry delays.
	ErrInvalidDelay = errors.New("retry delays must be non-negative and base must not exceed max")

	// ErrInvalidJitter is returned when Jitter is outside [0, 1].
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")

	// ErrLoaderRequired is returned when no chunk loader is provided.
	ErrLoaderRequired = errors.New("chunk loader is required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrStoreRequired is returned when no store is provided.
	ErrStoreRequired = errors.New("store is required")

	// ErrEmbeddingCountMismatch is returned when the embedder returns a
	// different number of vectors than texts.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)
