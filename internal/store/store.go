// Package store defines persistence for book rows and synthesis jobs.
// Manifests and chapter artifacts live on disk beside each book and are
// not stored here.
package store

import (
	"context"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// Books
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	UpdateBook(ctx context.Context, book *domain.Book) error
	// TransitionBookStatus moves a book from one processing status to
	// another in a single conditional write. It returns ErrStatusChanged
	// when the stored status is not from.
	TransitionBookStatus(ctx context.Context, id string, from, to domain.ProcessingStatus, errMsg string) error
	DeleteBook(ctx context.Context, id string) error
	ListBooks(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Book], error)
	ListBooksByStatus(ctx context.Context, status domain.ProcessingStatus) ([]*domain.Book, error)

	// Synthesis jobs
	CreateSynthesisJob(ctx context.Context, job *domain.SynthesisJob) error
	GetSynthesisJob(ctx context.Context, id string) (*domain.SynthesisJob, error)
	GetSynthesisJobByBook(ctx context.Context, bookID string) (*domain.SynthesisJob, error)
	UpdateSynthesisJob(ctx context.Context, job *domain.SynthesisJob) error
	ListSynthesisJobsByStatus(ctx context.Context, status domain.SynthesisJobStatus) ([]*domain.SynthesisJob, error)
}
