package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docrag"
	"github.com/poiesic/docrag/ai/mock"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/document"
	"github.com/poiesic/docrag/storage"
	"github.com/poiesic/docrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// setEnv isolates the test from the caller's environment.
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, key := range []string{
		config.EnvGoogleAPIKey, config.EnvPGVectorURL, config.EnvCollection,
		config.EnvBackend, config.EnvDataDir, config.EnvPDFPath, config.EnvAIProvider,
		config.EnvTopK, config.EnvBatchSize, config.EnvMaxRetries,
	} {
		t.Setenv(key, vars[key])
	}
}

func badgerEnv(t *testing.T) map[string]string {
	return map[string]string{
		config.EnvGoogleAPIKey: "key",
		config.EnvCollection:   "documento",
		config.EnvBackend:      config.BackendBadger,
		config.EnvDataDir:      filepath.Join(t.TempDir(), "data"),
		config.EnvPDFPath:      filepath.Join(t.TempDir(), "document.pdf"),
	}
}

func seededStore(t *testing.T, embedder *mock.MockEmbedder, contents ...string) storage.Store {
	t.Helper()
	store, err := badger.NewMemoryStore("documento")
	require.NoError(t, err)
	if len(contents) == 0 {
		return store
	}

	chunks := make([]*core.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = &core.Chunk{ID: core.ChunkID(i), Content: c, Metadata: map[string]any{"page": 1}}
	}
	vectors, err := embedder.EmbedTexts(context.Background(), contents)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), chunks, vectors))
	return store
}

func run(t *testing.T, stdin string, sysOpts []docrag.SystemOption, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out, sysOpts...)
	err := app.RunContext(context.Background(), append([]string{"docrag", "--env-file", ""}, args...))
	return out.String(), err
}

func TestMissingConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		backend string
	}{
		{name: "api key", unset: config.EnvGoogleAPIKey},
		{name: "connection url", unset: config.EnvPGVectorURL, backend: config.BackendPGVector},
		{name: "collection", unset: config.EnvCollection},
	}

	for _, tt := range tests {
		for _, command := range [][]string{nil, {"chat"}, {"ingest"}} {
			t.Run(tt.name+" "+strings.Join(command, ""), func(t *testing.T) {
				env := badgerEnv(t)
				if tt.backend != "" {
					env[config.EnvBackend] = tt.backend
				}
				delete(env, tt.unset)
				setEnv(t, env)

				provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockChatModel(""))
				out, err := run(t, "", []docrag.SystemOption{docrag.WithProvider(provider)}, command...)
				require.Error(t, err)
				assert.ErrorIs(t, err, config.ErrMissingVar)
				assert.Equal(t, "Erro: variável de ambiente "+tt.unset+" não definida.\n", out)
				assert.Equal(t, 0, provider.GetMockEmbedder().CallCount(), "no network call before validation")
			})
		}
	}
}

func TestChatCommand(t *testing.T) {
	t.Run("answers from existing data", func(t *testing.T) {
		setEnv(t, badgerEnv(t))
		embedder := mock.NewMockEmbedder()
		store := seededStore(t, embedder, "A empresa foi fundada em 1990.")
		provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChatModel("Em 1990."))

		out, err := run(t, "quando foi fundada?\nsair\n",
			[]docrag.SystemOption{docrag.WithStore(store), docrag.WithProvider(provider)})
		require.NoError(t, err)

		assert.NotContains(t, out, "Executando ingestão")
		assert.Contains(t, out, "Chat (baseado no documento). Digite 'sair' para encerrar.")
		assert.Contains(t, out, "Assistente: Em 1990.")
		assert.True(t, strings.HasSuffix(out, "Até logo.\n"))
		assert.Contains(t, provider.GetMockChatModel().Prompts()[0], "A empresa foi fundada em 1990.")
	})

	t.Run("loads config when the first argument is not a command", func(t *testing.T) {
		setEnv(t, badgerEnv(t))
		embedder := mock.NewMockEmbedder()
		store := seededStore(t, embedder, "O prazo é de trinta dias.")
		provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChatModel("Trinta dias."))

		out, err := run(t, "sair\n",
			[]docrag.SystemOption{docrag.WithStore(store), docrag.WithProvider(provider)}, "qual o prazo?")
		require.NoError(t, err)
		assert.Contains(t, out, "Chat (baseado no documento).")
		assert.True(t, strings.HasSuffix(out, "Até logo.\n"))
	})

	t.Run("reports missing variable when the first argument is not a command", func(t *testing.T) {
		env := badgerEnv(t)
		delete(env, config.EnvCollection)
		setEnv(t, env)

		out, err := run(t, "", []docrag.SystemOption{docrag.WithProvider(mock.NewMockProvider())}, "qual o prazo?")
		assert.ErrorIs(t, err, config.ErrMissingVar)
		assert.Equal(t, "Erro: variável de ambiente "+config.EnvCollection+" não definida.\n", out)
	})

	t.Run("empty store triggers ingestion", func(t *testing.T) {
		setEnv(t, badgerEnv(t))
		embedder := mock.NewMockEmbedder()
		provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChatModel(""))

		out, err := run(t, "", []docrag.SystemOption{
			docrag.WithStore(seededStore(t, embedder)),
			docrag.WithProvider(provider),
		}, "chat")
		require.Error(t, err)
		assert.ErrorIs(t, err, document.ErrPDFNotFound)
		assert.Contains(t, out, "Banco vetorial vazio ou inexistente. Executando ingestão...")
	})
}

func TestIngestCommand(t *testing.T) {
	t.Run("missing pdf", func(t *testing.T) {
		env := badgerEnv(t)
		setEnv(t, env)
		provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockChatModel(""))

		out, err := run(t, "", []docrag.SystemOption{docrag.WithProvider(provider)}, "ingest")
		require.Error(t, err)
		assert.ErrorIs(t, err, document.ErrPDFNotFound)
		assert.Contains(t, err.Error(), env[config.EnvPDFPath])
		assert.Contains(t, out, "Modelo de embeddings: mock-embedding")
	})

	t.Run("invalid batch size flag", func(t *testing.T) {
		setEnv(t, badgerEnv(t))
		_, err := run(t, "", []docrag.SystemOption{docrag.WithProvider(mock.NewMockProvider())}, "ingest", "--batch-size", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size")
	})
}

func TestSearchCommand(t *testing.T) {
	t.Run("prints hits and context", func(t *testing.T) {
		setEnv(t, badgerEnv(t))
		embedder := mock.NewMockEmbedder()
		store := seededStore(t, embedder, "faturamento anual", "número de clientes")
		provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChatModel(""))

		out, err := run(t, "", []docrag.SystemOption{docrag.WithStore(store), docrag.WithProvider(provider)},
			"search", "--k", "1", "faturamento", "anual")
		require.NoError(t, err)

		assert.Contains(t, out, "Pergunta: faturamento anual (k=1)")
		assert.Contains(t, out, "Encontrados 1 trechos")
		assert.Contains(t, out, "0: doc-0 (página 1)")
		assert.Contains(t, out, "Contexto:\nfaturamento anual\n")
	})

	t.Run("empty store", func(t *testing.T) {
		setEnv(t, badgerEnv(t))
		embedder := mock.NewMockEmbedder()
		provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChatModel(""))

		out, err := run(t, "", []docrag.SystemOption{docrag.WithStore(seededStore(t, embedder)), docrag.WithProvider(provider)},
			"search", "qualquer")
		require.NoError(t, err)
		assert.Contains(t, out, "Nenhum trecho encontrado.")
	})

	t.Run("question required", func(t *testing.T) {
		setEnv(t, badgerEnv(t))
		_, err := run(t, "", []docrag.SystemOption{docrag.WithProvider(mock.NewMockProvider())}, "search")
		assert.Error(t, err)
	})
}

func TestStatusCommand(t *testing.T) {
	setEnv(t, badgerEnv(t))
	embedder := mock.NewMockEmbedder()
	store := seededStore(t, embedder, "um", "dois", "três")
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChatModel(""))

	out, err := run(t, "", []docrag.SystemOption{docrag.WithStore(store), docrag.WithProvider(provider)},
		"--collection", "documento", "status")
	require.NoError(t, err)

	assert.Contains(t, out, "Coleção: documento (badger)")
	assert.Contains(t, out, "Dados: sim")
	assert.Contains(t, out, "Trechos: 3")
	assert.Contains(t, out, "Última ingestão: nenhuma registrada")
}

func TestFlags(t *testing.T) {
	app := newApp(strings.NewReader(""), &bytes.Buffer{})

	findFlag := func(flags []cli.Flag, name string) cli.Flag {
		for _, f := range flags {
			for _, n := range f.Names() {
				if n == name {
					return f
				}
			}
		}
		return nil
	}

	t.Run("log-level has default and alias", func(t *testing.T) {
		flag, ok := findFlag(app.Flags, "l").(*cli.StringFlag)
		require.True(t, ok)
		assert.Equal(t, "info", flag.Value)
	})

	t.Run("ingest flags", func(t *testing.T) {
		var ingest *cli.Command
		for _, cmd := range app.Commands {
			if cmd.Name == "ingest" {
				ingest = cmd
			}
		}
		require.NotNil(t, ingest)
		assert.NotNil(t, findFlag(ingest.Flags, "skip-unchanged"))
		assert.NotNil(t, findFlag(ingest.Flags, "no-prune"))
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := run(t, "", nil, "--log-level", "verbose", "status")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
