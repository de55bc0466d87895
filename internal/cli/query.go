package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/rag"
	"pdf-rag/internal/store"
)

type queryOptions struct {
	commonFlags
	json bool
}

func NewQueryCommand(deps Dependencies) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query [query_text]",
		Short: "Answer a question from the stored documents",
		Long: `Retrieves the chunks most similar to the question and asks the language
model to answer using only that context.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, deps, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to the config file")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the response as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runQuery(cmd *cobra.Command, deps Dependencies, opts *queryOptions, query string) error {
	ctx := cmd.Context()

	cfg, err := opts.setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	embedder, err := deps.NewEmbedder(ctx, cfg.EmbedLLM)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	s, err := store.Open(ctx, cfg.Store, embedder)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer s.Close()

	identity := embedding.Identity(cfg.EmbedLLM)
	recorded, err := store.CheckIdentity(ctx, s, identity)
	if err != nil {
		return err
	}
	if !recorded {
		log.Warn().Str("embedder", identity).Msg("Store has no recorded embedder, results may be meaningless")
	}

	llm, err := deps.NewGenerator(ctx, cfg.InferenceLLM)
	if err != nil {
		return fmt.Errorf("failed to initialize llm: %w", err)
	}

	rec := metrics.NewRecorder()
	response, err := rag.NewRAG(s, llm, cfg.RAG.TopK, rec).Query(ctx, query)
	if err != nil {
		return err
	}

	if err := rec.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		log.Warn().Err(err).Str("file", cfg.Metrics.TextfilePath).Msg("Failed to write metrics")
	}

	if opts.json {
		return helper.PrettyPrint(cmd.OutOrStdout(), response)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Response: %s\nSources: %s\n", response.Content, formatSources(response.Sources))
	return nil
}

// formatSources renders ids as a quoted list, e.g. ['data/a.pdf:0:0', 'data/a.pdf:0:1'],
// so IDs containing spaces or commas stay unambiguous.
func formatSources(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = quoteSource(id)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func quoteSource(id string) string {
	id = strings.ReplaceAll(id, `\`, `\\`)
	if strings.Contains(id, "'") && !strings.Contains(id, `"`) {
		return `"` + id + `"`
	}
	return "'" + strings.ReplaceAll(id, "'", `\'`) + "'"
}
