package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/chunker"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/store"
)

type populateOptions struct {
	commonFlags
	reset      bool
	exportPath string
}

func NewPopulateCommand(deps Dependencies) *cobra.Command {
	opts := &populateOptions{}
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Load documents into the vector store",
		Long: `Loads every supported document from the data directory, splits it into
overlapping chunks and stores the chunks whose IDs are not in the store yet.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPopulate(cmd, deps, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "reset the database before loading")
	cmd.Flags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to the config file")
	cmd.Flags().StringVar(&opts.exportPath, "export", "", "write a snapshot of the collection to this file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runPopulate(cmd *cobra.Command, deps Dependencies, opts *populateOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := opts.setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if opts.reset {
		fmt.Fprintln(out, "Clearing Database")
		if err := store.Reset(ctx, cfg.Store); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
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
	if _, err := store.CheckIdentity(ctx, s, identity); err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	report, err := ingest.NewIngestor(chunker.NewSplitter(cfg.RAG), s, rec).Run(ctx, cfg.DataPath)
	if err != nil {
		return err
	}
	// only a store holding vectors is bound to an embedder
	if len(report.Added) > 0 {
		if err := store.RecordIdentity(ctx, s, identity); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Number of existing document IDs in DB: %d\n", report.ExistingCount)
	if len(report.Added) > 0 {
		fmt.Fprintf(out, "Adding new documents: %d\n", len(report.Added))
	} else {
		fmt.Fprintln(out, "No new documents to add")
	}
	fmt.Fprintln(out, "Chunk IDs and content preview (all input chunks):")
	for _, chunk := range report.Chunks {
		fmt.Fprintf(out, "ID: %s | Content: %s...\n\n", chunk.ID, chunk.Preview(cfg.RAG.PreviewLength))
	}

	if opts.exportPath != "" {
		if err := store.Export(ctx, s, opts.exportPath); err != nil {
			return err
		}
		log.Info().Str("file", opts.exportPath).Msg("Exported collection")
	}

	if err := rec.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		log.Warn().Err(err).Str("file", cfg.Metrics.TextfilePath).Msg("Failed to write metrics")
	}
	return nil
}
