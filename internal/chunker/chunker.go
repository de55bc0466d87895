// Package chunker splits page-level documents into overlapping chunks and
// gives every chunk its "{source}:{page}:{index}" ID.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// ErrNonContiguousPage means chunks of one page were not emitted back to back,
// so the running index would hand out duplicate IDs.
var ErrNonContiguousPage = errors.New("chunks of a page are not contiguous")

// Splitter wraps a langchaingo recursive character splitter.
type Splitter struct {
	splitter textsplitter.TextSplitter
}

func NewSplitter(cfg config.RAGConfig) *Splitter {
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}
}

// Split returns the chunks of docs in document order. Blank pages yield no chunks.
func (s *Splitter) Split(docs []models.Document) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		parts, err := textsplitter.SplitDocuments(s.splitter, []schema.Document{{
			PageContent: doc.Content,
		}})
		if err != nil {
			return nil, fmt.Errorf("failed to split %s page %d: %w", doc.Source, doc.Page, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part.PageContent) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Content: part.PageContent,
				Source:  doc.Source,
				Page:    doc.Page,
			})
		}
	}
	return chunks, nil
}

// AssignIDs tags each chunk with "{source}:{page}:{index}", where index counts
// chunks of the same page in input order and restarts at 0 on every page
// change. The slice is modified in place and returned.
func AssignIDs(chunks []models.Chunk) ([]models.Chunk, error) {
	var lastPageKey string
	currentIndex := 0
	seen := make(map[string]struct{})

	for i := range chunks {
		pageKey := chunks[i].PageKey()
		if i > 0 && pageKey == lastPageKey {
			currentIndex++
		} else {
			if _, ok := seen[pageKey]; ok {
				return nil, fmt.Errorf("%w: %s reappears at position %d", ErrNonContiguousPage, pageKey, i)
			}
			seen[pageKey] = struct{}{}
			currentIndex = 0
		}
		chunks[i].ID = fmt.Sprintf("%s:%d", pageKey, currentIndex)
		lastPageKey = pageKey
	}
	return chunks, nil
}
