package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
)

var ErrEmptyQuery = errors.New("query must not be empty")

type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type RAG struct {
	retriever Retriever
	llm       Generator
	topK      int
	template  prompts.PromptTemplate
	metrics   *metrics.Recorder
}

func NewRAG(retriever Retriever, llm Generator, topK int, rec *metrics.Recorder) *RAG {
	return &RAG{
		retriever: retriever,
		llm:       llm,
		topK:      topK,
		template:  prompts.NewPromptTemplate(models.PromptTemplate, []string{"context", "question"}),
		metrics:   rec,
	}
}

// Query answers query from the topK most similar chunks. Sources lists the
// chunk IDs in ranking order.
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	results, err := r.retriever.Search(ctx, query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	r.metrics.Since("retrieve", start)
	log.Debug().Int("results", len(results)).Msg("Retrieved context")

	prompt, err := r.BuildPrompt(results, query)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	answer, err := r.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	r.metrics.Since("generate", start)

	sources := make([]string, len(results))
	for i, res := range results {
		sources[i] = res.Chunk.ID
	}
	return &models.PromptResponse{Query: query, Content: answer, Sources: sources}, nil
}

func (r *RAG) BuildPrompt(results []models.SearchResult, query string) (string, error) {
	prompt, err := r.template.Format(map[string]any{
		"context":  BuildContext(results),
		"question": query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return prompt, nil
}

// BuildContext joins result texts with models.ContextSeparator, keeping order.
func BuildContext(results []models.SearchResult) string {
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Chunk.Content
	}
	return strings.Join(texts, models.ContextSeparator)
}
