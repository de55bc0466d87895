// Package ingest loads documents, splits and identifies chunks, and writes
// only the chunks the store does not hold yet.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/chunker"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/store"
)

// Report describes one ingestion run.
type Report struct {
	RunID         string
	ExistingCount int
	// Added are the chunks written in this run, in input order.
	Added []models.Chunk
	// Chunks are all identified input chunks, new or already stored.
	Chunks []models.Chunk
	// Total is the number of records in the store after the run.
	Total int
}

// AddNew writes the chunks whose ID is not stored yet. Existing records are
// never touched, and nothing is written when every ID is already present.
// Duplicates inside chunks are passed through as-is.
func AddNew(ctx context.Context, s store.VectorStore, runID string, chunks []models.Chunk) (*Report, error) {
	existing, err := s.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing ids: %w", err)
	}

	report := &Report{RunID: runID, ExistingCount: len(existing), Chunks: chunks}
	for _, chunk := range chunks {
		if _, ok := existing[chunk.ID]; !ok {
			report.Added = append(report.Added, chunk)
		}
	}

	if len(report.Added) == 0 {
		log.Debug().Str("run_id", runID).Msg("Nothing new to store")
	} else if err := s.Add(ctx, runID, report.Added); err != nil {
		return nil, err
	}

	if report.Total, err = s.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	return report, nil
}

type Ingestor struct {
	splitter *chunker.Splitter
	store    store.VectorStore
	metrics  *metrics.Recorder
}

func NewIngestor(splitter *chunker.Splitter, s store.VectorStore, rec *metrics.Recorder) *Ingestor {
	return &Ingestor{splitter: splitter, store: s, metrics: rec}
}

// Run ingests every supported file under dataPath.
func (in *Ingestor) Run(ctx context.Context, dataPath string) (*Report, error) {
	runID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	logger := log.With().Str("run_id", runID).Logger()

	start := time.Now()
	docs, err := parser.LoadDirectory(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	in.metrics.Since("load", start)
	logger.Info().Int("pages", len(docs)).Str("data_path", dataPath).Msg("Loaded documents")

	start = time.Now()
	chunks, err := in.splitter.Split(docs)
	if err != nil {
		return nil, err
	}
	in.metrics.Since("split", start)

	start = time.Now()
	chunks, err = chunker.AssignIDs(chunks)
	if err != nil {
		return nil, err
	}
	in.metrics.Since("identify", start)
	in.metrics.AddChunks("seen", len(chunks))
	logger.Debug().Int("chunks", len(chunks)).Msg("Split documents")

	start = time.Now()
	report, err := AddNew(ctx, in.store, runID, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	in.metrics.Since("store", start)
	in.metrics.AddChunks("added", len(report.Added))
	logger.Info().
		Int("existing", report.ExistingCount).
		Int("added", len(report.Added)).
		Int("total", report.Total).
		Msg("Ingestion finished")

	return report, nil
}
