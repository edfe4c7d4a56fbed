package interfaces

import (
	"context"
	"time"
)

// Chunk is a piece of a loaded document, the unit of retrieval
type Chunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
	Source     string `json:"source"`
}

// SearchResult represents a ranked chunk
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Searcher finds chunks relevant to a free-text query
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// FileResult describes the outcome of loading one file
type FileResult struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Encoding string `json:"encoding,omitempty"`
	Chunks   int    `json:"chunks,omitempty"`
	Rows     int    `json:"rows,omitempty"`
	Error    string `json:"error,omitempty"`
}

// LoadStats contains statistics about a knowledge base load
type LoadStats struct {
	Found    int           `json:"found"`
	Loaded   int           `json:"loaded"`
	Failed   int           `json:"failed"`
	Files    []FileResult  `json:"files"`
	Duration time.Duration `json:"duration"`
}
