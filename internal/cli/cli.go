// Package cli builds the populate and query cobra commands.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/llmservice"
)

const defaultConfigPath = "./configs/config.yaml"

// Dependencies holds the collaborator constructors so tests can swap in fakes.
type Dependencies struct {
	NewEmbedder  func(ctx context.Context, cfg config.LLMConfig) (embeddings.Embedder, error)
	NewGenerator func(ctx context.Context, cfg config.LLMConfig) (llmservice.Generator, error)
}

func DefaultDependencies() Dependencies {
	return Dependencies{
		NewEmbedder:  embedding.NewEmbedder,
		NewGenerator: llmservice.NewGenerator,
	}
}

type commonFlags struct {
	configPath string
	verbose    bool
}

// setup loads the configuration and points the global logger at w.
func (f *commonFlags) setup(w io.Writer) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(w, cfg.LogLevel, f.verbose)
	log.Debug().Str("config", f.configPath).Interface("settings", redacted(cfg)).Msg("Loaded config")
	return cfg, nil
}

func setupLogging(w io.Writer, level string, verbose bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Caller().Logger()
}

// redacted hides secrets before the config is logged.
func redacted(cfg *config.Config) config.Config {
	c := *cfg
	if c.EmbedLLM.Key != "" {
		c.EmbedLLM.Key = "***"
	}
	if c.InferenceLLM.Key != "" {
		c.InferenceLLM.Key = "***"
	}
	if c.Store.EncryptionKey != "" {
		c.Store.EncryptionKey = "***"
	}
	if c.Store.Postgres.Password != "" {
		c.Store.Postgres.Password = "***"
	}
	c.Store.Postgres.DSN = ""
	return c
}
