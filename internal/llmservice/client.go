package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
)

var ErrUnknownProvider = errors.New("unknown llm provider")

// Generator turns a fully rendered prompt into the model's text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerator builds the language model named by llmConfig.Provider.
func NewGenerator(ctx context.Context, llmConfig config.LLMConfig) (Generator, error) {
	log.Debug().Interface("llmConfig", map[string]string{
		"provider": llmConfig.Provider,
		"base_url": llmConfig.BaseURL,
		"model":    llmConfig.Model,
	}).Msg("Creating generator")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return NewModelGenerator(llm), nil
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(llmConfig.Model),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return NewModelGenerator(llm), nil
	case config.ProviderGemini:
		return NewGeminiGenerator(ctx, llmConfig)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, llmConfig.Provider)
	}
}

// ModelGenerator sends single prompts to any langchaingo model.
type ModelGenerator struct {
	llm llms.Model
}

func NewModelGenerator(llm llms.Model) *ModelGenerator {
	return &ModelGenerator{llm: llm}
}

func (g *ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	return res, nil
}
