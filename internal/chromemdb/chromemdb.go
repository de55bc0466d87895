package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/catalog"
	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

const (
	vectorsDir  = "vectors"
	catalogFile = "catalog.db"
	embedderKey = "embedder"

	// inserts stay single-threaded
	addConcurrency = 1
)

var ErrEmbeddingCount = errors.New("embedder returned a different number of vectors than texts")

// VectorDBManager encapsulates the chromem-go database and its ID catalog.
// Layout under the store path:
//
//	<path>/vectors/     chromem persistent DB
//	<path>/catalog.db   SQLite list of stored IDs and store metadata
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	catalog       *catalog.Catalog
	embedder      embeddings.Embedder
	dbPath        string
	compress      bool
	encryptionKey string
}

// NewVectorDBManager opens (creating if needed) the persistent store at cfg.Path.
func NewVectorDBManager(cfg config.StoreConfig, embedder embeddings.Embedder) (*VectorDBManager, error) {
	if err := helper.CreateFolder(cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to create store folder: %w", err)
	}

	db, err := chromem.NewPersistentDB(filepath.Join(cfg.Path, vectorsDir), cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	c, err := db.GetOrCreateCollection(cfg.CollectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	cat, err := catalog.Open(filepath.Join(cfg.Path, catalogFile))
	if err != nil {
		return nil, err
	}

	log.Debug().Str("path", cfg.Path).Str("collection", c.Name).Int("documents", c.Count()).Msg("Opened chromem store")

	return &VectorDBManager{
		db:            db,
		collection:    c,
		catalog:       cat,
		embedder:      embedder,
		dbPath:        cfg.Path,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
	}, nil
}

// IDs lists every stored chunk ID. Only the catalog is read, no vectors or text.
func (m *VectorDBManager) IDs(ctx context.Context) (map[string]struct{}, error) {
	return m.catalog.IDs(ctx)
}

// Count reports the number of records in the catalog.
func (m *VectorDBManager) Count(ctx context.Context) (int, error) {
	return m.catalog.Count(ctx)
}

// Add embeds the chunks in one batch and persists them keyed by chunk ID.
func (m *VectorDBManager) Add(ctx context.Context, runID string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d texts, %d vectors", ErrEmbeddingCount, len(chunks), len(vectors))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		metadata := chunk.Metadata()
		metadata[models.MetadataRunID] = runID
		docs[i] = chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Metadata:  metadata,
			Embedding: vectors[i],
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, addConcurrency); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	// chromem upserts by ID, so a catalog failure here is repaired by the next run
	if err := m.catalog.Record(ctx, runID, chunks); err != nil {
		return fmt.Errorf("failed to record ids: %w", err)
	}
	return nil
}

// Search returns at most k chunks ordered by descending cosine similarity.
func (m *VectorDBManager) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	count := m.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}

	queryEmbedding, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// chromem rejects nResults larger than the collection
	results, err := m.collection.QueryEmbedding(ctx, queryEmbedding, min(k, count), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, len(results))
	for i, r := range results {
		page, _ := strconv.Atoi(r.Metadata[models.MetadataPage])
		out[i] = models.SearchResult{
			Chunk: models.Chunk{
				ID:      r.ID,
				Content: r.Content,
				Source:  r.Metadata[models.MetadataSource],
				Page:    page,
			},
			Score: r.Similarity,
		}
	}
	return out, nil
}

// Embedder returns the recorded embedder identity, "" if none was recorded yet.
func (m *VectorDBManager) Embedder(ctx context.Context) (string, error) {
	return m.catalog.Get(ctx, embedderKey)
}

func (m *VectorDBManager) SetEmbedder(ctx context.Context, identity string) error {
	return m.catalog.Set(ctx, embedderKey, identity)
}

// Export writes the collection to filePath, gzip-compressed when configured
// and AES-GCM encrypted when an encryption key is set.
func (m *VectorDBManager) Export(ctx context.Context, filePath string) error {
	log.Debug().
		Str("collection", m.collection.Name).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")

	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Close() error {
	return m.catalog.Close()
}
