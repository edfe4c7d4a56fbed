package knowledge

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nid-27/regnex/internal/processing"
	"github.com/nid-27/regnex/pkg/interfaces"
)

// Document is a decoded text file from the finance folder
type Document struct {
	Name     string             `json:"name"`
	Path     string             `json:"path"`
	Encoding string             `json:"encoding"`
	Content  string             `json:"-"`
	Chunks   []interfaces.Chunk `json:"-"`
	LoadedAt time.Time          `json:"loaded_at"`
}

// DocumentInfo is the listing view of a document
type DocumentInfo struct {
	Name       string `json:"name"`
	Characters int    `json:"characters"`
	Chunks     int    `json:"chunks"`
	Encoding   string `json:"encoding"`
}

// DocumentOptions configures chunking and loading
type DocumentOptions struct {
	ChunkSize      int
	ChunkOverlap   int
	MaxConcurrency int
	Logger         *zerolog.Logger
}

type indexedChunk struct {
	chunk  interfaces.Chunk
	terms  map[string]int
	length int
}

// DocumentStore holds the finance documents and a term index over their chunks
type DocumentStore struct {
	opts DocumentOptions

	mu     sync.RWMutex
	docs   map[string]*Document
	order  []string
	chunks []indexedChunk
	df     map[string]int
	avgLen float64
}

// NewDocumentStore creates an empty document store
func NewDocumentStore(opts DocumentOptions) *DocumentStore {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 2000
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &DocumentStore{
		opts: opts,
		docs: make(map[string]*Document),
		df:   make(map[string]int),
	}
}

type loadResult struct {
	file interfaces.FileResult
	doc  *Document
}

// Load reads every *.txt file in dir, replacing the current contents.
// Unreadable or empty files are reported in the stats and skipped.
func (s *DocumentStore) Load(ctx context.Context, dir string) (*interfaces.LoadStats, error) {
	start := time.Now()

	files, err := listFiles(dir, ".txt")
	if err != nil {
		return nil, err
	}
	s.opts.Logger.Info().Str("dir", dir).Int("files", len(files)).Msg("loading finance documents")

	fileChan := make(chan string, len(files))
	resultChan := make(chan loadResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < min(s.opts.MaxConcurrency, max(len(files), 1)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileChan {
				if ctx.Err() != nil {
					resultChan <- loadResult{file: interfaces.FileResult{Name: filepath.Base(path), Path: path, Error: ctx.Err().Error()}}
					continue
				}
				resultChan <- s.loadFile(path)
			}
		}()
	}

	for _, f := range files {
		fileChan <- f
	}
	close(fileChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	stats := &interfaces.LoadStats{Found: len(files)}
	docs := make(map[string]*Document)
	for res := range resultChan {
		stats.Files = append(stats.Files, res.file)
		if res.doc == nil {
			stats.Failed++
			s.opts.Logger.Warn().Str("file", res.file.Name).Str("error", res.file.Error).Msg("skipped document")
			continue
		}
		stats.Loaded++
		docs[res.doc.Name] = res.doc
		s.opts.Logger.Debug().Str("file", res.file.Name).Str("encoding", res.file.Encoding).Int("chunks", res.file.Chunks).Msg("loaded document")
	}
	sort.Slice(stats.Files, func(i, j int) bool { return stats.Files[i].Name < stats.Files[j].Name })

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	s.replace(docs)
	stats.Duration = time.Since(start)
	return stats, nil
}

func (s *DocumentStore) loadFile(path string) loadResult {
	name := filepath.Base(path)
	res := loadResult{file: interfaces.FileResult{Name: name, Path: path}}

	text, enc, err := processing.ReadTextFile(path)
	if err != nil {
		res.file.Error = err.Error()
		return res
	}
	res.file.Encoding = enc
	if strings.TrimSpace(text) == "" {
		res.file.Error = "could not decode file or file is empty"
		return res
	}

	doc := &Document{
		Name:     name,
		Path:     path,
		Encoding: enc,
		Content:  text,
		LoadedAt: time.Now(),
	}
	for i, piece := range processing.ChunkText(text, s.opts.ChunkSize, s.opts.ChunkOverlap) {
		doc.Chunks = append(doc.Chunks, interfaces.Chunk{
			ID:         fmt.Sprintf("%s#%d", name, i),
			Text:       piece,
			ChunkIndex: i,
			Source:     name,
		})
	}
	res.file.Chunks = len(doc.Chunks)
	res.doc = doc
	return res
}

func (s *DocumentStore) replace(docs map[string]*Document) {
	order := make([]string, 0, len(docs))
	for name := range docs {
		order = append(order, name)
	}
	sort.Strings(order)

	var chunks []indexedChunk
	df := make(map[string]int)
	total := 0
	for _, name := range order {
		for _, c := range docs[name].Chunks {
			terms := processing.Tokenize(c.Text)
			tf := make(map[string]int, len(terms))
			for _, t := range terms {
				tf[t]++
			}
			for t := range tf {
				df[t]++
			}
			total += len(terms)
			chunks = append(chunks, indexedChunk{chunk: c, terms: tf, length: len(terms)})
		}
	}

	avg := 0.0
	if len(chunks) > 0 {
		avg = float64(total) / float64(len(chunks))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = docs
	s.order = order
	s.chunks = chunks
	s.df = df
	s.avgLen = avg
}

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Search ranks chunks against the query terms with BM25.
func (s *DocumentStore) Search(ctx context.Context, query string, limit int) ([]interfaces.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	terms := processing.Tokenize(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("query has no searchable terms")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := float64(len(s.chunks))
	var results []interfaces.SearchResult
	for i, ic := range s.chunks {
		if i%256 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		score := 0.0
		for _, t := range terms {
			tf := float64(ic.terms[t])
			if tf == 0 {
				continue
			}
			df := float64(s.df[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - bm25B + bm25B*float64(ic.length)/math.Max(s.avgLen, 1)
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
		if score > 0 {
			results = append(results, interfaces.SearchResult{Chunk: ic.chunk, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Get returns a document by file name, with or without extension
func (s *DocumentStore) Get(name string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.docs[name]; ok {
		return doc, true
	}
	doc, ok := s.docs[name+".txt"]
	return doc, ok
}

// List returns the loaded documents ordered by name
func (s *DocumentStore) List() []DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DocumentInfo, 0, len(s.order))
	for _, name := range s.order {
		d := s.docs[name]
		out = append(out, DocumentInfo{
			Name:       d.Name,
			Characters: len([]rune(d.Content)),
			Chunks:     len(d.Chunks),
			Encoding:   d.Encoding,
		})
	}
	return out
}

// Len returns the number of loaded documents
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// listFiles returns the regular files in dir (not recursive) with the given
// extension, compared case-insensitively.
func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
