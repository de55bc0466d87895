package chromemdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
	"pdf-rag/internal/testutil"
)

func storeConfig(t *testing.T) config.StoreConfig {
	t.Helper()
	cfg := config.Default().Store
	cfg.Path = filepath.Join(t.TempDir(), "chroma")
	return cfg
}

func openManager(t *testing.T, cfg config.StoreConfig, e *testutil.HashEmbedder) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(cfg, e)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

var fixtureChunks = []models.Chunk{
	{ID: "data/monopoly.pdf:0:0", Content: "Each player collects two hundred dollars when passing GO.", Source: "data/monopoly.pdf", Page: 0},
	{ID: "data/monopoly.pdf:0:1", Content: "Houses must be built evenly across a colour group.", Source: "data/monopoly.pdf", Page: 0},
	{ID: "data/ticket.pdf:2:0", Content: "Train cards of the same colour claim a route.", Source: "data/ticket.pdf", Page: 2},
}

func TestVectorDBManager_EmptyStore(t *testing.T) {
	ctx := context.Background()
	m := openManager(t, storeConfig(t), testutil.NewHashEmbedder())

	ids, err := m.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	results, err := m.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorDBManager_AddAndList(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewHashEmbedder()
	m := openManager(t, storeConfig(t), e)

	require.NoError(t, m.Add(ctx, "run-1", fixtureChunks))

	ids, err := m.IDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	for _, c := range fixtureChunks {
		assert.Contains(t, ids, c.ID)
	}
	assert.Equal(t, 1, e.Calls, "chunks are embedded in one batch")

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestVectorDBManager_AddNothingSkipsEmbedder(t *testing.T) {
	e := testutil.NewHashEmbedder()
	m := openManager(t, storeConfig(t), e)

	require.NoError(t, m.Add(context.Background(), "run", nil))
	assert.Zero(t, e.Calls)
}

func TestVectorDBManager_AddEmbedderError(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewHashEmbedder()
	e.Err = testutil.ErrBoom
	m := openManager(t, storeConfig(t), e)

	err := m.Add(ctx, "run", fixtureChunks)
	assert.ErrorIs(t, err, testutil.ErrBoom)

	ids, err := m.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestVectorDBManager_SearchOrderAndBounds(t *testing.T) {
	ctx := context.Background()
	m := openManager(t, storeConfig(t), testutil.NewHashEmbedder())
	require.NoError(t, m.Add(ctx, "run", fixtureChunks))

	results, err := m.Search(ctx, "how many dollars when passing GO", 5)
	require.NoError(t, err)
	require.Len(t, results, 3, "k larger than the store returns everything")

	assert.Equal(t, "data/monopoly.pdf:0:0", results[0].Chunk.ID)
	assert.Equal(t, "data/monopoly.pdf", results[0].Chunk.Source)
	assert.Equal(t, fixtureChunks[0].Content, results[0].Chunk.Content)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	top, err := m.Search(ctx, "train route colour", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "data/ticket.pdf:2:0", top[0].Chunk.ID)
	assert.Equal(t, 2, top[0].Chunk.Page)
}

func TestVectorDBManager_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := storeConfig(t)
	e := testutil.NewHashEmbedder()

	first, err := NewVectorDBManager(cfg, e)
	require.NoError(t, err)
	require.NoError(t, first.Add(ctx, "run", fixtureChunks))
	require.NoError(t, first.SetEmbedder(ctx, "ollama/nomic-embed-text"))
	require.NoError(t, first.Close())

	second := openManager(t, cfg, e)
	ids, err := second.IDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	identity, err := second.Embedder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text", identity)

	results, err := second.Search(ctx, "houses colour group", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "data/monopoly.pdf:0:1", results[0].Chunk.ID)
}

func TestVectorDBManager_Export(t *testing.T) {
	ctx := context.Background()
	cfg := storeConfig(t)
	cfg.Compress = true
	cfg.EncryptionKey = "0123456789abcdef0123456789abcdef"
	m := openManager(t, cfg, testutil.NewHashEmbedder())
	require.NoError(t, m.Add(ctx, "run", fixtureChunks))

	out := filepath.Join(t.TempDir(), "snapshot.gob.gz.enc")
	require.NoError(t, m.Export(ctx, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
