package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

const embedderKey = "embedder"

// Document is one stored chunk.
type Document struct {
	bun.BaseModel `bun:"table:rag_chunks,alias:d"`
	ID            string          `bun:"id,pk"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	Page          int             `bun:"page,notnull"`
	RunID         string          `bun:"run_id,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Score         float64         `bun:"score,scanonly"`
}

// Meta holds store-level key/value settings such as the embedder identity.
type Meta struct {
	bun.BaseModel `bun:"table:rag_meta,alias:m"`
	Key           string `bun:"key,pk"`
	Value         string `bun:"value,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection pool with bun's pgdriver, or lib/pq when
// cfg.Driver is "pq".
func ConnectDB(cfg *config.PostgresConfig) (*sql.DB, error) {
	if cfg.Driver == "pq" {
		return sql.Open("postgres", cfg.DSN)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create chunk table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Meta)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}
	return nil
}

func DropDocuments(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewDropTable().Model((*Meta)(nil)).IfExists().Exec(ctx)
	return err
}

// Store is the pgvector-backed vector store.
type Store struct {
	db       *bun.DB
	embedder embeddings.Embedder
}

// Open connects and makes sure the extension and tables exist.
func Open(ctx context.Context, cfg *config.PostgresConfig, embedder embeddings.Embedder) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, embedder: embedder}, nil
}

// Reset drops every table owned by the store.
func Reset(ctx context.Context, cfg *config.PostgresConfig) error {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	defer db.Close()
	return DropDocuments(ctx, db)
}

func (s *Store) IDs(ctx context.Context) (map[string]struct{}, error) {
	var list []string
	err := s.db.NewSelect().Model((*Document)(nil)).Column("id").Scan(ctx, &list)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	ids := make(map[string]struct{}, len(list))
	for _, id := range list {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *Store) Add(ctx context.Context, runID string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Source:    chunk.Source,
			Page:      chunk.Page,
			RunID:     runID,
			Embedding: pgvector.NewVector(vectors[i]),
		}
	}
	_, err = s.db.NewInsert().Model(&docs).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	log.Debug().Int("documents", len(docs)).Msg("Stored documents")
	return nil
}

// Search orders by cosine distance; Score is cosine similarity.
func (s *Store) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	queryEmbedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	vec := pgvector.NewVector(queryEmbedding)

	var docs []Document
	err = s.db.NewSelect().
		Model(&docs).
		Column("id", "content", "source", "page").
		ColumnExpr("1 - (embedding <=> ?) AS score", vec).
		OrderExpr("embedding <=> ?", vec).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	results := make([]models.SearchResult, len(docs))
	for i, d := range docs {
		results[i] = models.SearchResult{
			Chunk: models.Chunk{ID: d.ID, Content: d.Content, Source: d.Source, Page: d.Page},
			Score: float32(d.Score),
		}
	}
	return results, nil
}

func (s *Store) Embedder(ctx context.Context) (string, error) {
	meta := new(Meta)
	err := s.db.NewSelect().Model(meta).Where("key = ?", embedderKey).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read embedder identity: %w", err)
	}
	return meta.Value, nil
}

func (s *Store) SetEmbedder(ctx context.Context, identity string) error {
	meta := &Meta{Key: embedderKey, Value: identity}
	_, err := s.db.NewInsert().Model(meta).On("CONFLICT (key) DO UPDATE").Set("value = EXCLUDED.value").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write embedder identity: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
