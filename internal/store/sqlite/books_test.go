package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/store"
)

// makeTestBook creates a domain.Book with sensible defaults for testing.
func makeTestBook(id, title string) *domain.Book {
	now := time.Now()
	return &domain.Book{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       title,
		Type:        domain.BookTypeText,
		StoragePath: "/media/books/" + id,
		Status:      domain.StatusReady,
	}
}

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "The Hobbit")
	book.Author = "J.R.R. Tolkien"
	book.Type = domain.BookTypeEPUB
	book.CoverPath = "/media/books/book-1/cover.jpg"
	book.CoverBlurHash = "LEHV6nWB2yk8"
	book.TotalDuration = 61.24
	book.TotalChapters = 2
	book.TotalWords = 1234
	book.TotalSegments = 87
	book.EpubStructure = &domain.EpubStructure{
		Type:     "epub",
		Metadata: domain.EpubMetadata{Title: "The Hobbit", Creator: "J.R.R. Tolkien"},
		Chapters: []domain.EpubChapter{
			{ID: "1", EpubID: "ch1", Title: "An Unexpected Party", Href: "ch1.xhtml", Type: domain.ChapterTypeChapter, Order: 1, HasAudio: true},
		},
		TotalChapters: 1,
	}

	require.NoError(t, s.CreateBook(ctx, book))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "The Hobbit", got.Title)
	assert.Equal(t, "J.R.R. Tolkien", got.Author)
	assert.Equal(t, domain.BookTypeEPUB, got.Type)
	assert.Equal(t, domain.StatusReady, got.Status)
	assert.Empty(t, got.StatusError)
	assert.Equal(t, "LEHV6nWB2yk8", got.CoverBlurHash)
	assert.Equal(t, 61.24, got.TotalDuration)
	assert.Equal(t, 87, got.TotalSegments)
	assert.True(t, book.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.EpubStructure)
	assert.Equal(t, book.EpubStructure, got.EpubStructure)
}

func TestCreateBook_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, makeTestBook("book-1", "A")))
	err := s.CreateBook(ctx, makeTestBook("book-1", "B"))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestCreateBook_DefaultsReady(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "A")
	book.Status = ""
	require.NoError(t, s.CreateBook(ctx, book))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, got.Status)
}

func TestGetBook_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetBook(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "Draft")
	require.NoError(t, s.CreateBook(ctx, book))

	book.Title = "Final"
	book.TotalChapters = 3
	book.TotalDuration = 37
	require.NoError(t, s.UpdateBook(ctx, book))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.Equal(t, 3, got.TotalChapters)
	assert.Equal(t, 37.0, got.TotalDuration)

	assert.ErrorIs(t, s.UpdateBook(ctx, makeTestBook("missing", "x")), store.ErrNotFound)
}

func TestTransitionBookStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "Manuscript")
	book.Status = domain.StatusProcessing
	require.NoError(t, s.CreateBook(ctx, book))

	require.NoError(t, s.TransitionBookStatus(ctx, "book-1", domain.StatusProcessing, domain.StatusFailed, "chapter 4 of 6: engine failed"))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "chapter 4 of 6: engine failed", got.StatusError)

	// Terminal states never change.
	err = s.TransitionBookStatus(ctx, "book-1", domain.StatusProcessing, domain.StatusReady, "")
	assert.ErrorIs(t, err, store.ErrStatusChanged)

	err = s.TransitionBookStatus(ctx, "missing", domain.StatusProcessing, domain.StatusReady, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, makeTestBook("book-1", "A")))
	require.NoError(t, s.CreateSynthesisJob(ctx, makeTestJob("job-1", "book-1")))

	require.NoError(t, s.DeleteBook(ctx, "book-1"))
	_, err := s.GetBook(ctx, "book-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The job row goes with its book.
	_, err = s.GetSynthesisJob(ctx, "job-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteBook(ctx, "book-1"), store.ErrNotFound)
}

func TestListBooks_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		b := makeTestBook(fmt.Sprintf("book-%d", i), fmt.Sprintf("Book %d", i))
		b.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateBook(ctx, b))
	}

	page, err := s.ListBooks(ctx, store.PaginationParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "book-0", page.Items[0].ID)

	var ids []string
	for _, b := range page.Items {
		ids = append(ids, b.ID)
	}
	for page.HasMore {
		page, err = s.ListBooks(ctx, store.PaginationParams{Limit: 2, Cursor: page.NextCursor})
		require.NoError(t, err)
		for _, b := range page.Items {
			ids = append(ids, b.ID)
		}
	}
	assert.Equal(t, []string{"book-0", "book-1", "book-2", "book-3", "book-4"}, ids)
}

func TestListBooks_EmptyAndBadCursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	page, err := s.ListBooks(ctx, store.DefaultPaginationParams())
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)

	_, err = s.ListBooks(ctx, store.PaginationParams{Cursor: "%%%"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestListBooksByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ready := makeTestBook("book-ready", "Ready")
	processing := makeTestBook("book-busy", "Busy")
	processing.Status = domain.StatusProcessing
	require.NoError(t, s.CreateBook(ctx, ready))
	require.NoError(t, s.CreateBook(ctx, processing))

	books, err := s.ListBooksByStatus(ctx, domain.StatusProcessing)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "book-busy", books[0].ID)
}
