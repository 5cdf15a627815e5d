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

// Package docrag answers questions about a PDF document using retrieval
// augmented generation.
//
// A System ties together the configuration, the AI provider and the vector
// store, and hands out the ingester, retriever and chat session built on them.
package docrag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/ai/googleai"
	"github.com/poiesic/docrag/ai/openai"
	"github.com/poiesic/docrag/chat"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/document"
	"github.com/poiesic/docrag/ingest"
	"github.com/poiesic/docrag/search"
	"github.com/poiesic/docrag/storage"
	"github.com/poiesic/docrag/storage/badger"
	"github.com/poiesic/docrag/storage/pgvector"
)

// ErrConfigRequired is returned when NewSystem is called without a config.
var ErrConfigRequired = errors.New("config required")

type System struct {
	config   *config.Config
	store    storage.Store
	provider ai.Provider
	splitter *document.Splitter
	logger   *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	store    storage.Store
	provider ai.Provider
}

// WithStore uses store instead of opening the configured backend.
// The System takes ownership and closes it.
func WithStore(store storage.Store) SystemOption {
	return func(o *systemOptions) {
		o.store = store
	}
}

// WithProvider uses provider instead of the configured AI provider.
// The System takes ownership and closes it.
func WithProvider(provider ai.Provider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// NewSystem connects to the AI provider and the vector store.
// cfg must already be validated.
func NewSystem(ctx context.Context, cfg *config.Config, opts ...SystemOption) (*System, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	options := &systemOptions{}
	for _, opt := range opts {
		opt(options)
	}

	splitter, err := document.NewSplitter(
		document.WithChunkSize(cfg.ChunkSize),
		document.WithChunkOverlap(cfg.ChunkOverlap),
	)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = newProvider(ctx, cfg.AI)
		if err != nil {
			splitter.Release()
			return nil, fmt.Errorf("failed to create AI provider: %w", err)
		}
	}

	store := options.store
	if store == nil {
		store, err = openStore(ctx, cfg)
		if err != nil {
			provider.Close()
			splitter.Release()
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
	}

	return &System{
		config:   cfg,
		store:    store,
		provider: provider,
		splitter: splitter,
		logger:   slog.Default().With("component", "system"),
	}, nil
}

func newProvider(ctx context.Context, cfg *ai.Config) (ai.Provider, error) {
	switch cfg.Provider {
	case ai.ProviderGoogleAI:
		return googleai.NewProvider(ctx, cfg)
	case ai.ProviderOpenAI:
		return openai.NewProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendPGVector:
		return pgvector.Open(ctx, cfg.PostgresURL, cfg.Collection)
	case config.BackendBadger:
		return badger.Open(cfg.DataDir, cfg.Collection)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Close releases the provider, the store and the splitter workers.
func (s *System) Close() error {
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	s.splitter.Release()

	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}

func (s *System) Config() *config.Config {
	return s.config
}

func (s *System) Store() storage.Store {
	return s.store
}

func (s *System) Provider() ai.Provider {
	return s.provider
}

// NewIngester returns an ingester for the configured PDF.
// Progress is written to out.
func (s *System) NewIngester(out io.Writer, opts ...ingest.Option) (*ingest.Ingester, error) {
	loader := document.NewPDFLoader(s.config.PDFPath, s.splitter)
	opts = append([]ingest.Option{ingest.WithEmbeddingModel(s.provider.EmbeddingModel())}, opts...)
	return ingest.NewIngester(loader, s.provider.Embedder(), s.store, s.config.Ingest, out, opts...)
}

func (s *System) NewRetriever(opts ...search.Option) (*search.Retriever, error) {
	opts = append([]search.Option{search.WithDefaultK(s.config.TopK)}, opts...)
	return search.NewRetriever(s.provider.Embedder(), s.store, opts...)
}

// NewSession returns a chat session reading questions from in.
func (s *System) NewSession(in io.Reader, out io.Writer, opts ...chat.Option) (*chat.Session, error) {
	retriever, err := s.NewRetriever()
	if err != nil {
		return nil, err
	}
	opts = append([]chat.Option{chat.WithTopK(s.config.TopK)}, opts...)
	return chat.NewSession(retriever, s.provider.ChatModel(), in, out, opts...), nil
}

// Status describes what the vector store currently holds.
type Status struct {
	HasData  bool
	Count    int
	Manifest *core.Manifest
}

// Status probes the store and reads its manifest.
func (s *System) Status(ctx context.Context) (*Status, error) {
	retriever, err := s.NewRetriever()
	if err != nil {
		return nil, err
	}

	status := &Status{HasData: retriever.HasData(ctx)}

	status.Count, err = s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	status.Manifest, err = s.store.LoadManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return status, nil
}
