// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/document"
	"github.com/poiesic/docrag/storage"
)

// ChunkLoader produces the chunks of a document.
// document.PDFLoader is the production implementation.
type ChunkLoader interface {
	Load(ctx context.Context) (*document.Document, error)
}

// Result summarizes an ingestion run.
type Result struct {
	Chunks  int
	Batches int
	Pruned  int
	Skipped bool
	Elapsed time.Duration
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) {
		i.logger = logger
	}
}

// WithEmbeddingModel records the embedding model name in the manifest.
func WithEmbeddingModel(name string) Option {
	return func(i *Ingester) {
		i.embeddingModel = name
	}
}

// WithClock overrides the time source used for manifest timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) {
		i.now = now
	}
}

// Ingester loads a document, embeds its chunks in batches and stores them.
type Ingester struct {
	loader         ChunkLoader
	embedder       ai.Embedder
	store          storage.Store
	config         *Config
	out            io.Writer
	logger         *slog.Logger
	embeddingModel string
	now            func() time.Time
}

// NewIngester creates a new ingester.
// out receives user-facing progress (typically os.Stdout).
func NewIngester(loader ChunkLoader, embedder ai.Embedder, store storage.Store, config *Config, out io.Writer, opts ...Option) (*Ingester, error) {
	if loader == nil {
		return nil, ErrLoaderRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}

	i := &Ingester{
		loader:   loader,
		embedder: embedder,
		store:    store,
		config:   config,
		out:      out,
		logger:   slog.Default().With("component", "ingester"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Run executes the ingestion.
// A document without chunks returns early without touching the store.
func (i *Ingester) Run(ctx context.Context) (*Result, error) {
	doc, err := i.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Chunks: len(doc.Chunks)}
	if len(doc.Chunks) == 0 {
		i.logger.Info("document produced no chunks", "source", doc.Source)
		return result, nil
	}

	tracker := NewProgressTracker(i.out, len(doc.Chunks), i.config.BatchSize)
	tracker.Start()

	if i.config.SkipUnchanged {
		manifest, err := i.store.LoadManifest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		if manifest.Matches(doc.Fingerprint, len(doc.Chunks)) {
			tracker.Skipped()
			result.Skipped = true
			result.Elapsed = tracker.Elapsed()
			return result, nil
		}
	}

	processor := NewBatchProcessor(i.store, i.embedder, i.retryPolicy(tracker))
	result.Batches = tracker.Batches()

	for b := 0; b < result.Batches; b++ {
		start := b * i.config.BatchSize
		end := min(start+i.config.BatchSize, len(doc.Chunks))
		batch := doc.Chunks[start:end]

		tracker.BeginBatch(b + 1)
		if err := processor.Process(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to process batch %d of %d: %w", b+1, result.Batches, err)
		}
		sent := tracker.Sent(len(batch))
		i.logger.Debug("batch stored", "batch", b+1, "chunks", len(batch), "sent", sent, "total", len(doc.Chunks))
	}

	if i.config.Prune {
		keep := make([]string, len(doc.Chunks))
		for n, chunk := range doc.Chunks {
			keep[n] = chunk.ID
		}
		pruned, err := i.store.DeleteExcept(ctx, keep)
		if err != nil {
			return nil, fmt.Errorf("failed to prune stale chunks: %w", err)
		}
		result.Pruned = pruned
		if pruned > 0 {
			i.logger.Info("pruned stale chunks", "count", pruned)
		}
	}

	manifest := &core.Manifest{
		Source:         doc.Source,
		Fingerprint:    doc.Fingerprint,
		Chunks:         len(doc.Chunks),
		EmbeddingModel: i.embeddingModel,
		IngestedAt:     i.now().UTC(),
	}
	if err := i.store.SaveManifest(ctx, manifest); err != nil {
		return nil, fmt.Errorf("failed to save manifest: %w", err)
	}

	tracker.Finish()
	result.Elapsed = tracker.Elapsed()
	i.logger.Info("ingestion complete",
		"source", doc.Source,
		"chunks", result.Chunks,
		"batches", result.Batches,
		"elapsed", result.Elapsed.Round(time.Millisecond))

	return result, nil
}

func (i *Ingester) retryPolicy(tracker *ProgressTracker) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: i.config.MaxAttempts,
		Backoff:     i.config.backoff(),
		Retryable:   IsRetryable,
		RetryHint:   ai.RetryAfter,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			i.logger.Warn("batch failed, retrying", "attempt", attempt, "delay", delay, "error", err)
			tracker.Retrying(delay, err)
		},
	}
}
