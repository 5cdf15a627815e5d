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

package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Supported provider names.
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Provider selects the backing service: ProviderGoogleAI or ProviderOpenAI.
	Provider string

	// APIKey authenticates against the provider. Required for Google AI.
	// OpenAI-compatible local servers accept any value.
	APIKey string

	// Host is the base URL of an OpenAI-compatible API.
	// Example: "http://localhost:11434/v1"
	Host string

	// EmbeddingModel is the model identifier used for embeddings.
	// Example: "models/gemini-embedding-001", "embeddinggemma"
	EmbeddingModel string

	// ChatModel is the model identifier used to answer questions.
	// Example: "gemini-2.5-flash-lite", "qwen2.5:3b"
	ChatModel string

	// Temperature is the sampling temperature for answers.
	Temperature float64

	// RequestsPerMinute caps outgoing requests. Zero disables client-side limiting.
	RequestsPerMinute int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the provider.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithHost sets the OpenAI-compatible host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithRequestsPerMinute caps the request rate. Zero disables the limit.
func WithRequestsPerMinute(rpm int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerMinute = rpm
	}
}

// DefaultConfig returns a Config targeting Google AI with the default models.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderGoogleAI,
		Host:           "http://localhost:11434/v1",
		EmbeddingModel: "models/gemini-embedding-001",
		ChatModel:      "gemini-2.5-flash-lite",
		Temperature:    0.5,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
//	    WithChatModel("gemini-2.5-flash"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// The provider name is lowercased and, for OpenAI-compatible providers, the
// host gets the /v1 suffix most servers (Ollama, LocalAI, vLLM) expect.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == ProviderOpenAI && c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderGoogleAI:
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for googleai")
		}
	case ProviderOpenAI:
		if c.Host == "" {
			return errors.New("ai config: Host is required for openai")
		}
	default:
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}

	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	if c.RequestsPerMinute < 0 {
		return errors.New("ai config: RequestsPerMinute must not be negative")
	}
	return nil
}
