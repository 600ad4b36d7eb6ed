package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/sse"
	"github.com/listenupapp/listenup-ingest/internal/store"
)

// BookService serves reads of ingested books and their chapter artifacts.
type BookService struct {
	store  store.Store
	search *SearchService
	events EventEmitter
	logger *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(st store.Store, searchService *SearchService, events EventEmitter, logger *slog.Logger) *BookService {
	if events == nil {
		events = discardEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BookService{store: st, search: searchService, events: events, logger: logger}
}

// Get returns one book.
func (s *BookService) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, storeErr(err, "book "+bookID)
	}
	return book, nil
}

// List returns a page of books, newest first.
func (s *BookService) List(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Book], error) {
	result, err := s.store.ListBooks(ctx, params)
	if err != nil {
		return nil, storeErr(err, "list books")
	}
	return result, nil
}

// ready loads a book whose chapters can be read.
func (s *BookService) ready(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	switch book.Status {
	case domain.StatusProcessing:
		return nil, errors.Statef("book %s is still processing", bookID)
	case domain.StatusFailed:
		return nil, errors.Statef("book %s failed: %s", bookID, book.StatusError)
	}
	return book, nil
}

// Manifest returns the simplified manifest, deriving it from the EPUB
// structure when the manifest file is absent.
func (s *BookService) Manifest(ctx context.Context, bookID string) (*domain.Manifest, error) {
	book, err := s.ready(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return manifest.Load(book.StoragePath)
}

// Structure returns the full EPUB structure of an EPUB book.
func (s *BookService) Structure(ctx context.Context, bookID string) (*domain.EpubStructure, error) {
	book, err := s.ready(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.Type != domain.BookTypeEPUB {
		return nil, errors.NotFoundf("book %s has no EPUB structure", bookID)
	}
	if book.EpubStructure != nil {
		return book.EpubStructure, nil
	}
	return manifest.LoadStructure(book.StoragePath)
}

// Chapter locates one manifest chapter and its book directory.
func (s *BookService) Chapter(ctx context.Context, bookID, chapterID string) (domain.ManifestChapter, string, error) {
	m, err := s.Manifest(ctx, bookID)
	if err != nil {
		return domain.ManifestChapter{}, "", err
	}
	for _, ch := range m.Chapters {
		if ch.ID == chapterID {
			book, err := s.Get(ctx, bookID)
			if err != nil {
				return domain.ManifestChapter{}, "", err
			}
			return ch, book.StoragePath, nil
		}
	}
	return domain.ManifestChapter{}, "", errors.NotFoundf("chapter %s not found in book %s", chapterID, bookID)
}

// Alignment returns a chapter's alignment.
func (s *BookService) Alignment(ctx context.Context, bookID, chapterID string) (domain.Alignment, error) {
	ch, dir, err := s.Chapter(ctx, bookID, chapterID)
	if err != nil {
		return nil, err
	}
	return manifest.ReadAlignment(dir, ch)
}

// ChapterText returns a chapter's text.
func (s *BookService) ChapterText(ctx context.Context, bookID, chapterID string) (string, error) {
	ch, dir, err := s.Chapter(ctx, bookID, chapterID)
	if err != nil {
		return "", err
	}
	path, err := manifest.ResolveChapter(dir, ch, manifest.ArtifactText)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorage, "read chapter text")
	}
	return string(data), nil
}

// AudioPath returns the file path of a chapter's audio.
func (s *BookService) AudioPath(ctx context.Context, bookID, chapterID string) (string, error) {
	ch, dir, err := s.Chapter(ctx, bookID, chapterID)
	if err != nil {
		return "", err
	}
	return manifest.ResolveChapter(dir, ch, manifest.ArtifactAudio)
}

// CoverPath returns the file path of a book's cover.
func (s *BookService) CoverPath(ctx context.Context, bookID string) (string, error) {
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return "", err
	}
	if book.CoverPath == "" {
		return "", errors.NotFoundf("book %s has no cover", bookID)
	}
	path := filepath.Join(book.StoragePath, filepath.Base(book.CoverPath))
	if _, err := os.Stat(path); err != nil {
		return "", errors.NotFoundf("cover file for book %s is missing", bookID)
	}
	return path, nil
}

// Delete removes a book row, its directory and its search documents.
// Books still processing cannot be deleted.
func (s *BookService) Delete(ctx context.Context, bookID string) error {
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return err
	}
	if book.Status == domain.StatusProcessing {
		return errors.Conflict("book is still processing")
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return storeErr(err, "delete book "+bookID)
	}
	if book.StoragePath != "" {
		if err := os.RemoveAll(book.StoragePath); err != nil {
			s.logger.Error("failed to remove book directory", slog.String("path", book.StoragePath), slog.Any("error", err))
		}
	}
	if err := s.search.RemoveBook(bookID); err != nil {
		s.logger.Warn("failed to remove book from index", slog.String("book_id", bookID), slog.Any("error", err))
	}

	s.logger.Info("book deleted", slog.String("book_id", bookID))
	s.events.Emit(sse.NewBookDeletedEvent(bookID))
	return nil
}
