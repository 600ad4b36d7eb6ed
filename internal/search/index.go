package search

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

const (
	// mappingVersion changes whenever buildIndexMapping does. An index
	// written under another version is discarded on open.
	mappingVersion = "ingest-2"

	indexDirName    = "books.bleve"
	versionFileName = "mapping.version"

	// batchSize bounds documents per committed batch, both when indexing
	// and when purging a book.
	batchSize = 500
)

// SearchIndex holds book and chapter documents in a Bleve index. It is safe
// for concurrent use; Rebuild takes the lock exclusively.
type SearchIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	dir    string
	logger *slog.Logger
}

// Options configures the search index.
type Options struct {
	// DataPath is the directory holding the index and its version marker.
	DataPath string
	Logger   *slog.Logger
}

// NewSearchIndex opens the index under opts.DataPath, creating it when
// missing. Indexes that fail to open or were built with an older mapping
// are replaced by an empty one; callers reindex from their manifests.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.DataPath == "" {
		return nil, errors.New("search data path is required")
	}
	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create search data dir: %w", err)
	}

	s := &SearchIndex{
		dir:    filepath.Join(opts.DataPath, indexDirName),
		logger: log.With("component", "search"),
	}
	versionPath := filepath.Join(opts.DataPath, versionFileName)

	if idx, ok := s.openCurrent(versionPath); ok {
		s.index = idx
		s.logger.Info("opened search index", "path", s.dir)
		return s, nil
	}

	if err := os.RemoveAll(s.dir); err != nil {
		return nil, fmt.Errorf("remove stale index: %w", err)
	}
	idx, err := bleve.New(s.dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
		s.logger.Warn("could not record mapping version", "error", err)
	}
	s.index = idx
	s.logger.Info("created search index", "path", s.dir, "mapping_version", mappingVersion)
	return s, nil
}

// openCurrent opens the existing index when its recorded mapping version
// matches the current one.
func (s *SearchIndex) openCurrent(versionPath string) (bleve.Index, bool) {
	if _, err := os.Stat(s.dir); err != nil {
		return nil, false
	}
	recorded, err := os.ReadFile(versionPath)
	if err != nil || !bytes.Equal(bytes.TrimSpace(recorded), []byte(mappingVersion)) {
		s.logger.Info("search mapping changed, discarding index",
			"recorded", string(recorded), "current", mappingVersion)
		return nil, false
	}
	idx, err := bleve.Open(s.dir)
	if err != nil {
		s.logger.Warn("search index unreadable, discarding", "error", err)
		return nil, false
	}
	return idx, true
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument adds or replaces one document.
func (s *SearchIndex) IndexDocument(doc *SearchDocument) error {
	return s.IndexDocuments([]*SearchDocument{doc})
}

// IndexDocuments adds or replaces documents, committing in batches.
func (s *SearchIndex) IndexDocuments(docs []*SearchDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := s.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit documents %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DeleteBook removes the book document and every chapter document that
// belongs to it, returning how many were removed.
func (s *SearchIndex) DeleteBook(bookID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byBook := bleve.NewTermQuery(bookID)
	byBook.SetField("book_id")

	removed := 0
	for {
		res, err := s.index.Search(bleve.NewSearchRequestOptions(byBook, batchSize, 0, false))
		if err != nil {
			return removed, fmt.Errorf("find documents of %s: %w", bookID, err)
		}
		if len(res.Hits) == 0 {
			return removed, nil
		}
		batch := s.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := s.index.Batch(batch); err != nil {
			return removed, fmt.Errorf("delete documents of %s: %w", bookID, err)
		}
		removed += len(res.Hits)
	}
}

// DocumentCount returns the number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild replaces the index with an empty one. Searches block until it
// returns.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	idx, err := bleve.New(s.dir, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = idx
	s.logger.Info("search index emptied for rebuild", "path", s.dir)
	return nil
}
