// Package store selects and opens the configured vector store backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/models"
)

var (
	ErrUnknownBackend    = errors.New("unknown store backend")
	ErrEmbedderMismatch  = errors.New("store was built with a different embedder")
	ErrExportUnsupported = errors.New("export is not supported by this store backend")
)

// VectorStore is the contract shared by every backend.
type VectorStore interface {
	// IDs lists the IDs of all stored records without loading vectors.
	IDs(ctx context.Context) (map[string]struct{}, error)
	// Add embeds and persists chunks keyed by their ID.
	Add(ctx context.Context, runID string, chunks []models.Chunk) error
	// Search returns at most k records ordered by descending similarity.
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
	// Count is the number of stored records.
	Count(ctx context.Context) (int, error)
	Embedder(ctx context.Context) (string, error)
	SetEmbedder(ctx context.Context, identity string) error
	Close() error
}

// Exporter is implemented by backends that can write a snapshot file.
type Exporter interface {
	Export(ctx context.Context, filePath string) error
}

var (
	_ VectorStore = (*chromemdb.VectorDBManager)(nil)
	_ Exporter    = (*chromemdb.VectorDBManager)(nil)
	_ VectorStore = (*db.Store)(nil)
)

func Open(ctx context.Context, cfg config.StoreConfig, embedder embeddings.Embedder) (VectorStore, error) {
	switch cfg.Backend {
	case config.BackendChromem:
		m, err := chromemdb.NewVectorDBManager(cfg, embedder)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.BackendPgvector:
		s, err := db.Open(ctx, &cfg.Postgres, embedder)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Reset wipes the configured store. A store that does not exist yet is not an error.
func Reset(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.Backend {
	case config.BackendChromem:
		log.Info().Str("path", cfg.Path).Msg("Clearing database")
		if err := os.RemoveAll(cfg.Path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", cfg.Path, err)
		}
		return nil
	case config.BackendPgvector:
		log.Info().Msg("Dropping pgvector tables")
		return db.Reset(ctx, &cfg.Postgres)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Export writes a snapshot when the backend supports it.
func Export(ctx context.Context, s VectorStore, filePath string) error {
	e, ok := s.(Exporter)
	if !ok {
		return ErrExportUnsupported
	}
	return e.Export(ctx, filePath)
}

// CheckIdentity fails with ErrEmbedderMismatch when the store recorded an
// embedder other than identity. recorded is false when nothing is recorded yet.
func CheckIdentity(ctx context.Context, s VectorStore, identity string) (recorded bool, err error) {
	stored, err := s.Embedder(ctx)
	if err != nil {
		return false, err
	}
	if stored != "" && stored != identity {
		return true, fmt.Errorf("%w: stored %q, configured %q", ErrEmbedderMismatch, stored, identity)
	}
	return stored != "", nil
}

// RecordIdentity stores identity unless one is recorded already.
func RecordIdentity(ctx context.Context, s VectorStore, identity string) error {
	recorded, err := CheckIdentity(ctx, s, identity)
	if err != nil || recorded {
		return err
	}
	log.Debug().Str("embedder", identity).Msg("Recording embedder identity")
	return s.SetEmbedder(ctx, identity)
}
