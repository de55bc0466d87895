package models

import (
	"fmt"
	"strconv"
)

// Document is the text of one page of one source file.
type Document struct {
	Content string
	Source  string
	Page    int
}

// Chunk is a bounded slice of a Document. ID stays empty until the chunk
// has been identified.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
}

// PageKey is the "{source}:{page}" prefix shared by all chunks of one page.
func (c Chunk) PageKey() string {
	return fmt.Sprintf("%s:%d", c.Source, c.Page)
}

// Preview returns at most n runes of the chunk content.
func (c Chunk) Preview(n int) string {
	r := []rune(c.Content)
	if len(r) <= n {
		return c.Content
	}
	return string(r[:n])
}

// Metadata is the string map stored next to the vector.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetadataSource: c.Source,
		MetadataPage:   strconv.Itoa(c.Page),
	}
}

type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

type PromptResponse struct {
	Query   string   `json:"query"`
	Content string   `json:"response"`
	Sources []string `json:"sources"`
}
