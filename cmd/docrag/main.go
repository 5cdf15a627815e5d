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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/docrag"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/search"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdin, os.Stdout)
	if err := app.RunContext(ctx, os.Args); err != nil {
		if !errors.Is(err, config.ErrMissingVar) {
			slog.Error("docrag failed", "err", err)
		}
		stop()
		os.Exit(1)
	}
}

// application carries the process streams and the configuration loaded by
// the Before hooks.
type application struct {
	in      io.Reader
	out     io.Writer
	sysOpts []docrag.SystemOption
	config  *config.Config
}

func newApp(in io.Reader, out io.Writer, sysOpts ...docrag.SystemOption) *cli.App {
	a := &application{in: in, out: out, sysOpts: sysOpts}

	return &cli.App{
		Name:      "docrag",
		Usage:     "Ask questions about a PDF document",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file read for variables missing from the environment (empty to skip)",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "pdf",
				Usage: "Path to the PDF document (overrides " + config.EnvPDFPath + ")",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Vector store backend: pgvector or badger (overrides " + config.EnvBackend + ")",
			},
			&cli.StringFlag{
				Name:  "collection",
				Usage: "Vector collection name (overrides " + config.EnvCollection + ")",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "BadgerDB directory for the badger backend (overrides " + config.EnvDataDir + ")",
			},
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "Number of chunks retrieved per question (overrides " + config.EnvTopK + ")",
			},
		},
		Before: a.before,
		Action: a.chatCommand,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "Answer questions interactively, ingesting the document first if the store is empty",
				Before: a.loadConfig,
				Action: a.chatCommand,
			},
			{
				Name:   "ingest",
				Usage:  "Load the PDF into the vector store",
				Before: a.loadConfig,
				Action: a.ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "skip-unchanged",
						Usage: "Skip ingestion when the stored manifest matches the PDF",
					},
					&cli.BoolFlag{
						Name:  "no-prune",
						Usage: "Keep chunks left over from a previous, longer document",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks embedded and stored per request",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Show the chunks retrieved for a question",
				ArgsUsage: "<question>",
				Before:    a.loadConfig,
				Action:    a.searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of chunks to retrieve (defaults to --top-k)",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Report what the vector store holds",
				Before: a.loadConfig,
				Action: a.statusCommand,
			},
		},
	}
}

func (a *application) before(c *cli.Context) error {
	if err := setupLogger(c); err != nil {
		return err
	}
	// Anything that is not a subcommand runs chat, which needs the config
	if c.App.Command(c.Args().First()) == nil {
		return a.loadConfig(c)
	}
	return nil
}

// loadConfig reads the environment, applies flag overrides and validates
// the result once, before any network call.
func (a *application) loadConfig(c *cli.Context) error {
	opts := []config.Option{config.WithEnvFiles()}
	if file := c.String("env-file"); file != "" {
		opts = []config.Option{config.WithEnvFiles(file)}
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}

	if c.IsSet("pdf") {
		cfg.PDFPath = c.String("pdf")
	}
	if c.IsSet("backend") {
		cfg.Backend = strings.ToLower(c.String("backend"))
	}
	if c.IsSet("collection") {
		cfg.Collection = c.String("collection")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("top-k") {
		cfg.TopK = c.Int("top-k")
	}

	if err := cfg.Validate(); err != nil {
		var missing *config.MissingVarError
		if errors.As(err, &missing) {
			fmt.Fprintf(a.out, "Erro: variável de ambiente %s não definida.\n", missing.Name)
		}
		return err
	}

	a.config = cfg
	return nil
}

func (a *application) openSystem(c *cli.Context) (*docrag.System, error) {
	if a.config == nil {
		return nil, errors.New("configuration not loaded")
	}
	return docrag.NewSystem(c.Context, a.config, a.sysOpts...)
}

func (a *application) chatCommand(c *cli.Context) error {
	ctx := c.Context

	sys, err := a.openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	retriever, err := sys.NewRetriever()
	if err != nil {
		return err
	}

	if !retriever.HasData(ctx) {
		fmt.Fprintln(a.out, "Banco vetorial vazio ou inexistente. Executando ingestão...")
		ingester, err := sys.NewIngester(a.out)
		if err != nil {
			return err
		}
		if _, err := ingester.Run(ctx); err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		fmt.Fprintln(a.out)
	}

	session, err := sys.NewSession(a.in, a.out)
	if err != nil {
		return err
	}
	return session.Run(ctx)
}

func (a *application) ingestCommand(c *cli.Context) error {
	ingestConfig := a.config.Ingest
	ingestConfig.SkipUnchanged = c.Bool("skip-unchanged")
	ingestConfig.Prune = !c.Bool("no-prune")
	if c.IsSet("batch-size") {
		ingestConfig.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("max-retries") {
		ingestConfig.MaxAttempts = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		ingestConfig.RetryBaseDelay = c.Duration("retry-delay")
	}
	if err := ingestConfig.Validate(); err != nil {
		return fmt.Errorf("invalid ingest configuration: %w", err)
	}

	sys, err := a.openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ingester, err := sys.NewIngester(a.out)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Documento: %s\n", a.config.PDFPath)
	fmt.Fprintf(a.out, "Coleção: %s (%s)\n", a.config.Collection, a.config.Backend)
	fmt.Fprintf(a.out, "Modelo de embeddings: %s\n", sys.Provider().EmbeddingModel())
	fmt.Fprintln(a.out)

	result, err := ingester.Run(c.Context)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if result.Chunks == 0 {
		fmt.Fprintln(a.out, "Nenhum trecho extraído do documento.")
		return nil
	}

	slog.Info("ingestion finished",
		"chunks", result.Chunks,
		"batches", result.Batches,
		"pruned", result.Pruned,
		"skipped", result.Skipped,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return nil
}

func (a *application) searchCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	sys, err := a.openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	retriever, err := sys.NewRetriever()
	if err != nil {
		return err
	}

	monitor := &printMonitor{out: a.out}
	text, err := retriever.ContextWithMonitor(c.Context, question, c.Int("k"), monitor)
	if err != nil {
		return err
	}

	if text == "" {
		fmt.Fprintln(a.out, "Nenhum trecho encontrado.")
		return nil
	}
	fmt.Fprintf(a.out, "\nContexto:\n%s\n", text)
	return nil
}

// printMonitor writes each retrieval stage to out.
type printMonitor struct {
	out   io.Writer
	start time.Time
}

var _ search.SearchMonitor = (*printMonitor)(nil)

func (m *printMonitor) Start(question string, k int) {
	m.start = time.Now()
	fmt.Fprintf(m.out, "Pergunta: %s (k=%d)\n", question, k)
}

func (m *printMonitor) AfterEmbedding(dimensions int) {
	fmt.Fprintf(m.out, "Vetor da pergunta: %d dimensões\n", dimensions)
}

func (m *printMonitor) AfterSearch(results []*core.SearchResult) {
	fmt.Fprintf(m.out, "Encontrados %d trechos\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(m.out, "%d: %s %s [%0.3f]\n", i, hit.Chunk.ID, pageLabel(hit.Chunk), hit.Score)
	}
}

func (m *printMonitor) Finish(text string) {
	fmt.Fprintf(m.out, "Busca concluída em %v (%d caracteres de contexto)\n",
		time.Since(m.start).Round(time.Millisecond), len(text))
}

func pageLabel(chunk *core.Chunk) string {
	if page, ok := chunk.Metadata["page"]; ok {
		return fmt.Sprintf("(página %v)", page)
	}
	return ""
}

func (a *application) statusCommand(c *cli.Context) error {
	sys, err := a.openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	status, err := sys.Status(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Coleção: %s (%s)\n", a.config.Collection, a.config.Backend)
	if status.HasData {
		fmt.Fprintln(a.out, "Dados: sim")
	} else {
		fmt.Fprintln(a.out, "Dados: não")
	}
	fmt.Fprintf(a.out, "Trechos: %d\n", status.Count)

	if status.Manifest == nil {
		fmt.Fprintln(a.out, "Última ingestão: nenhuma registrada")
		return nil
	}
	m := status.Manifest
	fmt.Fprintf(a.out, "Última ingestão: %s\n", m.IngestedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(a.out, "  Documento: %s\n", m.Source)
	fmt.Fprintf(a.out, "  Impressão digital: %s\n", m.Fingerprint)
	fmt.Fprintf(a.out, "  Trechos: %d\n", m.Chunks)
	fmt.Fprintf(a.out, "  Modelo de embeddings: %s\n", m.EmbeddingModel)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
