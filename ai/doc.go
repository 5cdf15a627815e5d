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

// Package ai provides abstractions for the AI services used by docrag.
//
// The package defines three interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - ChatModel: Answers a single prompt
//   - Provider: Aggregates both for initialization and shutdown
//
// # Implementation Packages
//
//   - ai/googleai: Gemini models through langchaingo, with a circuit breaker
//     and optional client-side rate limiting
//   - ai/openai: OpenAI-compatible APIs (OpenAI, Ollama, LocalAI, vLLM)
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors return interface types. Mock constructors return
// concrete types so tests can inject behavior and inspect call counts.
//
// # Errors
//
// Implementations pass provider failures through Classify, which wraps them
// in a *ProviderError. Rate limits (HTTP 429) are KindThrottled and temporary
// outages (500, 502, 503, 504) are KindUnavailable; IsRetryable reports both.
// Everything else is KindFatal.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(os.Getenv("GOOGLE_API_KEY")))
//	provider, err := googleai.NewProvider(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Qual o faturamento?")
//	answer, err := provider.ChatModel().Generate(ctx, prompt)
package ai
