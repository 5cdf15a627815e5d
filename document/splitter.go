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

package document

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default splitting parameters, measured in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// Page is the extracted text of one document page.
type Page struct {
	Content  string
	Metadata map[string]any
}

// Splitter cuts pages into overlapping chunks with a recursive character
// strategy: paragraph breaks first, then line breaks, then spaces, then
// single characters. Pages are split concurrently; chunk order always follows
// page order.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
	pool     *ants.Pool
	logger   *slog.Logger
}

// SplitterOption configures a Splitter.
type SplitterOption func(*splitterConfig)

type splitterConfig struct {
	chunkSize    int
	chunkOverlap int
	workers      int
	logger       *slog.Logger
}

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) SplitterOption {
	return func(c *splitterConfig) {
		c.chunkSize = size
	}
}

// WithChunkOverlap sets how many characters consecutive chunks may share.
func WithChunkOverlap(overlap int) SplitterOption {
	return func(c *splitterConfig) {
		c.chunkOverlap = overlap
	}
}

// WithWorkers sets the number of pages split concurrently.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithWorkers(n int) SplitterOption {
	return func(c *splitterConfig) {
		c.workers = n
	}
}

// WithSplitterLogger sets a custom logger.
func WithSplitterLogger(logger *slog.Logger) SplitterOption {
	return func(c *splitterConfig) {
		c.logger = logger
	}
}

// NewSplitter creates a splitter. Call Release when done.
func NewSplitter(opts ...SplitterOption) (*Splitter, error) {
	cfg := &splitterConfig{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		workers:      runtime.NumCPU(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.chunkSize < 1 {
		return nil, ErrInvalidChunkSize
	}
	if cfg.chunkOverlap < 0 || cfg.chunkOverlap >= cfg.chunkSize {
		return nil, ErrInvalidChunkOverlap
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	pool, err := ants.NewPool(cfg.workers)
	if err != nil {
		return nil, err
	}

	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.chunkSize),
			textsplitter.WithChunkOverlap(cfg.chunkOverlap),
		),
		pool:   pool,
		logger: cfg.logger.With("component", "splitter"),
	}, nil
}

// Split cuts pages into chunks and assigns sequential IDs in page order.
// Each chunk carries a sanitized copy of its page's metadata. Pages without
// text produce no chunks.
func (s *Splitter) Split(ctx context.Context, pages []Page) ([]*core.Chunk, error) {
	perPage := make([][]string, len(pages))
	errs := make([]error, len(pages))

	var wg sync.WaitGroup
	for i := range pages {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			perPage[i], errs[i] = s.splitter.SplitText(pages[i].Content)
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, submitErr
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	chunks := make([]*core.Chunk, 0, len(pages))
	for i, texts := range perPage {
		metadata := SanitizeMetadata(pages[i].Metadata)
		for _, text := range texts {
			if text == "" {
				continue
			}
			chunks = append(chunks, &core.Chunk{
				ID:       core.ChunkID(len(chunks)),
				Content:  text,
				Metadata: mergeMetadata(metadata, nil),
			})
		}
	}

	s.logger.Debug("split pages", "pages", len(pages), "chunks", len(chunks))
	return chunks, nil
}

// Release stops the worker pool.
func (s *Splitter) Release() {
	s.pool.Release()
}
