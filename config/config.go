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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/document"
	"github.com/poiesic/docrag/ingest"
	"github.com/poiesic/docrag/search"
)

// Supported vector store backends.
const (
	BackendPGVector = "pgvector"
	BackendBadger   = "badger"
)

// Environment variable names.
const (
	EnvGoogleAPIKey      = "GOOGLE_API_KEY"
	EnvPGVectorURL       = "PGVECTOR_URL"
	EnvCollection        = "PGVECTOR_COLLECTION"
	EnvEmbeddingModel    = "GOOGLE_EMBEDDING_MODEL"
	EnvLLMModel          = "GOOGLE_LLM_MODEL"
	EnvPDFPath           = "DOCRAG_PDF_PATH"
	EnvBackend           = "DOCRAG_BACKEND"
	EnvDataDir           = "DOCRAG_DATA_DIR"
	EnvAIProvider        = "DOCRAG_AI_PROVIDER"
	EnvAIHost            = "DOCRAG_AI_HOST"
	EnvRequestsPerMinute = "DOCRAG_REQUESTS_PER_MINUTE"
	EnvTopK              = "DOCRAG_TOP_K"
	EnvChunkSize         = "DOCRAG_CHUNK_SIZE"
	EnvChunkOverlap      = "DOCRAG_CHUNK_OVERLAP"
	EnvBatchSize         = "DOCRAG_BATCH_SIZE"
	EnvMaxRetries        = "DOCRAG_MAX_RETRIES"
	EnvRetryDelay        = "DOCRAG_RETRY_DELAY"
	EnvMaxRetryDelay     = "DOCRAG_MAX_RETRY_DELAY"
	EnvRetryJitter       = "DOCRAG_RETRY_JITTER"
)

// Defaults for values not set in the environment.
const (
	DefaultPDFPath = "document.pdf"
	DefaultBackend = BackendPGVector
	DefaultDataDir = ".docrag"
)

// Config is the process configuration, built once at startup and passed to
// every component.
type Config struct {
	AI     *ai.Config
	Ingest *ingest.Config

	Backend     string
	PostgresURL string
	Collection  string
	DataDir     string

	PDFPath      string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// Option configures Load.
type Option func(*loader)

type loader struct {
	lookup   LookupFunc
	envFiles []string
}

// WithLookup replaces os.LookupEnv as the source of variables.
func WithLookup(lookup LookupFunc) Option {
	return func(l *loader) {
		l.lookup = lookup
	}
}

// WithEnvFiles sets the dotenv files consulted for variables missing from
// the environment. Defaults to ".env"; files that do not exist are skipped.
func WithEnvFiles(files ...string) Option {
	return func(l *loader) {
		l.envFiles = files
	}
}

// Default returns a Config holding only default values.
func Default() *Config {
	return &Config{
		AI:           ai.DefaultConfig(),
		Ingest:       ingest.DefaultConfig(),
		Backend:      DefaultBackend,
		DataDir:      DefaultDataDir,
		PDFPath:      DefaultPDFPath,
		ChunkSize:    document.DefaultChunkSize,
		ChunkOverlap: document.DefaultChunkOverlap,
		TopK:         search.DefaultK,
	}
}

// Load builds a Config from the environment and any dotenv files.
// Variables already present in the environment win over dotenv values.
// Load does not validate; call Validate once all overrides are applied.
func Load(opts ...Option) (*Config, error) {
	l := &loader{
		lookup:   os.LookupEnv,
		envFiles: []string{".env"},
	}
	for _, opt := range opts {
		opt(l)
	}

	fileVars, err := readEnvFiles(l.envFiles)
	if err != nil {
		return nil, err
	}
	env := &environment{lookup: l.lookup, file: fileVars}

	cfg := Default()
	cfg.AI.APIKey = env.str(EnvGoogleAPIKey, cfg.AI.APIKey)
	cfg.AI.EmbeddingModel = env.str(EnvEmbeddingModel, cfg.AI.EmbeddingModel)
	cfg.AI.ChatModel = env.str(EnvLLMModel, cfg.AI.ChatModel)
	cfg.AI.Provider = env.str(EnvAIProvider, cfg.AI.Provider)
	cfg.AI.Host = env.str(EnvAIHost, cfg.AI.Host)
	cfg.AI.RequestsPerMinute = env.intVal(EnvRequestsPerMinute, cfg.AI.RequestsPerMinute)

	cfg.PostgresURL = env.str(EnvPGVectorURL, "")
	cfg.Collection = env.str(EnvCollection, "")
	cfg.Backend = strings.ToLower(env.str(EnvBackend, cfg.Backend))
	cfg.DataDir = env.str(EnvDataDir, cfg.DataDir)
	cfg.PDFPath = env.str(EnvPDFPath, cfg.PDFPath)
	cfg.ChunkSize = env.intVal(EnvChunkSize, cfg.ChunkSize)
	cfg.ChunkOverlap = env.intVal(EnvChunkOverlap, cfg.ChunkOverlap)
	cfg.TopK = env.intVal(EnvTopK, cfg.TopK)

	cfg.Ingest.BatchSize = env.intVal(EnvBatchSize, cfg.Ingest.BatchSize)
	cfg.Ingest.MaxAttempts = env.intVal(EnvMaxRetries, cfg.Ingest.MaxAttempts)
	cfg.Ingest.RetryBaseDelay = env.durationVal(EnvRetryDelay, cfg.Ingest.RetryBaseDelay)
	cfg.Ingest.RetryMaxDelay = env.durationVal(EnvMaxRetryDelay, cfg.Ingest.RetryMaxDelay)
	cfg.Ingest.Jitter = env.floatVal(EnvRetryJitter, cfg.Ingest.Jitter)

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration once, before any network call.
// The first missing required variable is reported as a *MissingVarError.
func (c *Config) Validate() error {
	c.AI.Normalize()

	if c.AI.Provider == ai.ProviderGoogleAI && c.AI.APIKey == "" {
		return &MissingVarError{Name: EnvGoogleAPIKey}
	}
	switch c.Backend {
	case BackendPGVector:
		if c.PostgresURL == "" {
			return &MissingVarError{Name: EnvPGVectorURL}
		}
	case BackendBadger:
		if c.DataDir == "" {
			return &MissingVarError{Name: EnvDataDir}
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidValue, c.Backend)
	}
	if c.Collection == "" {
		return &MissingVarError{Name: EnvCollection}
	}

	if err := c.AI.Validate(); err != nil {
		return err
	}
	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest config: %w", err)
	}
	if c.PDFPath == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidValue, EnvPDFPath)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: %s must be greater than 0", ErrInvalidValue, EnvTopK)
	}
	if c.ChunkSize < 1 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrInvalidValue)
	}
	return nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
		for k, v := range values {
			// Earlier files win, matching godotenv.Load.
			if _, ok := vars[k]; !ok {
				vars[k] = v
			}
		}
	}
	return vars, nil
}

// environment resolves variables and collects parse errors.
type environment struct {
	lookup LookupFunc
	file   map[string]string
	errs   []error
}

func (e *environment) get(key string) (string, bool) {
	if v, ok := e.lookup(key); ok && v != "" {
		return v, true
	}
	if v, ok := e.file[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (e *environment) str(key, def string) string {
	if v, ok := e.get(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *environment) intVal(key string, def int) int {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, key, v))
		return def
	}
	return n
}

func (e *environment) floatVal(key string, def float64) float64 {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidValue, key, v))
		return def
	}
	return f
}

// durationVal accepts Go durations ("2s", "1m30s") or plain seconds ("60").
func (e *environment) durationVal(key string, def time.Duration) time.Duration {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidValue, key, v))
		return def
	}
	return d
}
