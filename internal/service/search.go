package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/search"
)

// SearchService keeps the chapter index in step with ingested books.
// A nil index disables search; writes become no-ops.
type SearchService struct {
	index  *search.SearchIndex
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SearchService{index: index, logger: logger}
}

// Enabled reports whether an index is attached.
func (s *SearchService) Enabled() bool {
	return s != nil && s.index != nil
}

// Search runs a query against the index.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if !s.Enabled() {
		return nil, errors.Conflict("search is disabled")
	}
	return s.index.Search(ctx, params)
}

// IndexBook indexes a ready book and the text of each manifest chapter.
// Chapters without a text file are indexed by title only.
func (s *SearchService) IndexBook(ctx context.Context, book *domain.Book, m *domain.Manifest) error {
	if !s.Enabled() {
		return nil
	}

	docs := make([]*search.SearchDocument, 0, len(m.Chapters)+1)
	docs = append(docs, search.BookToSearchDocument(book))
	for _, ch := range m.Chapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		docs = append(docs, search.ChapterToSearchDocument(book, ch, s.chapterText(book.StoragePath, ch)))
	}

	if err := s.index.IndexDocuments(docs); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "index book")
	}
	s.logger.Debug("indexed book", "book_id", book.ID, "chapters", len(m.Chapters))
	return nil
}

func (s *SearchService) chapterText(dir string, ch domain.ManifestChapter) string {
	path, err := manifest.ResolveChapter(dir, ch, manifest.ArtifactText)
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("failed to read chapter text", "path", path, "error", err)
		return ""
	}
	return string(data)
}

// RemoveBook drops a book and its chapters from the index.
func (s *SearchService) RemoveBook(bookID string) error {
	if !s.Enabled() {
		return nil
	}
	n, err := s.index.DeleteBook(bookID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "remove book from index")
	}
	s.logger.Debug("removed book from index", "book_id", bookID, "documents", n)
	return nil
}

// DocumentCount returns the number of indexed documents.
func (s *SearchService) DocumentCount() (uint64, error) {
	if !s.Enabled() {
		return 0, errors.Conflict("search is disabled")
	}
	return s.index.DocumentCount()
}
