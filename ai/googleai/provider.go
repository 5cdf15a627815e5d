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

package googleai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docrag/ai"
	"github.com/tmc/langchaingo/llms/googleai"
)

const providerName = ai.ProviderGoogleAI

// Provider implements ai.Provider on top of a single Gemini client.
// The embedder and chat model share one circuit breaker and rate limit.
type Provider struct {
	config   *ai.Config
	client   *googleai.GoogleAI
	embedder *Embedder
	chat     *ChatModel
	logger   *slog.Logger
}

// NewProvider creates a Gemini-backed provider.
// The config is validated and normalized before use.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Provider != ai.ProviderGoogleAI {
		return nil, errors.New("googleai: config is for provider " + config.Provider)
	}

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(config.APIKey),
		googleai.WithDefaultModel(config.ChatModel),
		googleai.WithDefaultEmbeddingModel(config.EmbeddingModel),
		googleai.WithDefaultTemperature(config.Temperature),
	)
	if err != nil {
		return nil, ai.Classify(providerName, err)
	}

	logger := slog.Default().With("component", "googleai-provider")
	g := newGuard("googleai", config.RequestsPerMinute, defaultGuardSettings, logger)

	embedder, err := newEmbedder(client, g)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &Provider{
		config:   config,
		client:   client,
		embedder: embedder,
		chat:     newChatModel(client, g),
		logger:   logger,
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// ChatModel returns the answer generation service.
func (p *Provider) ChatModel() ai.ChatModel {
	return p.chat
}

// EmbeddingModel names the configured embedding model.
func (p *Provider) EmbeddingModel() string {
	return p.config.EmbeddingModel
}

// Close releases the underlying Gemini client.
func (p *Provider) Close() error {
	p.logger.Debug("closing googleai provider")
	return p.client.Close()
}
