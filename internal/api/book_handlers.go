package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	domainerrors "github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns ingested books, newest first",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book and its aggregate numbers",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Removes a book, its files and its search documents. Books still processing cannot be deleted.",
		Tags:        []string{"Books"},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/status",
		Summary:     "Get processing status",
		Description: "Returns the processing status and, for synthesized books, job progress",
		Tags:        []string{"Books"},
	}, s.handleGetBookStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookManifest",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/manifest",
		Summary:     "Get chapter manifest",
		Description: "Returns the chapter manifest a player needs, derived from the EPUB structure for older books",
		Tags:        []string{"Books"},
	}, s.handleGetManifest)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookStructure",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/structure",
		Summary:     "Get EPUB structure",
		Description: "Returns the full spine of an EPUB book",
		Tags:        []string{"Books"},
	}, s.handleGetStructure)
}

// === DTOs ===

// BookIDInput identifies a book.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// ListBooksInput contains pagination parameters.
type ListBooksInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" doc:"Page size (default 100)"`
	Cursor string `query:"cursor" doc:"Cursor from the previous page"`
}

// BookListResponse is one page of books.
type BookListResponse struct {
	Books      []*domain.Book `json:"books" doc:"Books on this page"`
	NextCursor string         `json:"next_cursor,omitempty" doc:"Cursor for the next page"`
	HasMore    bool           `json:"has_more" doc:"Whether more pages exist"`
}

// BookListOutput wraps the book list for Huma.
type BookListOutput struct {
	Body BookListResponse
}

// BookOutput wraps a book for Huma.
type BookOutput struct {
	Body *domain.Book
}

// StatusResponse describes where a book is in processing.
type StatusResponse struct {
	BookID        string                  `json:"book_id" doc:"Book ID"`
	Status        domain.ProcessingStatus `json:"processing_status" doc:"processing, ready or failed"`
	Error         string                  `json:"processing_error,omitempty" doc:"Failure message"`
	JobID         string                  `json:"job_id,omitempty" doc:"Synthesis job ID"`
	ChaptersDone  int                     `json:"chapters_done,omitempty" doc:"Chapters synthesized so far"`
	ChaptersTotal int                     `json:"chapters_total,omitempty" doc:"Chapters planned"`
}

// StatusOutput wraps the status response for Huma.
type StatusOutput struct {
	Body StatusResponse
}

// ManifestOutput wraps a manifest for Huma.
type ManifestOutput struct {
	Body *domain.Manifest
}

// StructureOutput wraps an EPUB structure for Huma.
type StructureOutput struct {
	Body *domain.EpubStructure
}

// DeleteOutput confirms a deletion.
type DeleteOutput struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation"`
	}
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*BookListOutput, error) {
	params := store.PaginationParams{Limit: input.Limit, Cursor: input.Cursor}
	params.Validate()

	result, err := s.services.Book.List(ctx, params)
	if err != nil {
		return nil, err
	}

	books := result.Items
	if books == nil {
		books = []*domain.Book{}
	}
	return &BookListOutput{Body: BookListResponse{
		Books:      books,
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	book, err := s.services.Book.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*DeleteOutput, error) {
	if err := s.services.Book.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	out := &DeleteOutput{}
	out.Body.Message = "book deleted"
	return out, nil
}

func (s *Server) handleGetBookStatus(ctx context.Context, input *BookIDInput) (*StatusOutput, error) {
	book, err := s.services.Status.Status(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	resp := StatusResponse{
		BookID: book.ID,
		Status: book.Status,
		Error:  book.StatusError,
	}

	if s.services.Synthesis != nil {
		job, err := s.services.Synthesis.Job(ctx, book.ID)
		switch {
		case err == nil:
			resp.JobID = job.ID
			resp.ChaptersDone = job.ChaptersDone
			resp.ChaptersTotal = job.ChaptersTotal
		case !errors.Is(err, domainerrors.ErrNotFound):
			return nil, err
		}
	}

	return &StatusOutput{Body: resp}, nil
}

func (s *Server) handleGetManifest(ctx context.Context, input *BookIDInput) (*ManifestOutput, error) {
	m, err := s.services.Book.Manifest(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ManifestOutput{Body: m}, nil
}

func (s *Server) handleGetStructure(ctx context.Context, input *BookIDInput) (*StructureOutput, error) {
	structure, err := s.services.Book.Structure(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &StructureOutput{Body: structure}, nil
}
