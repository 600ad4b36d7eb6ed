package service

import (
	"context"
	"log/slog"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/sse"
	"github.com/listenupapp/listenup-ingest/internal/store"
)

// EventEmitter publishes status events. *sse.Manager satisfies it.
type EventEmitter interface {
	Emit(event sse.Event)
}

type discardEmitter struct{}

func (discardEmitter) Emit(sse.Event) {}

// StatusTracker owns every processing_status write. Synchronous ingestion
// registers books directly as ready; background synthesis begins in
// processing and ends in exactly one terminal state.
type StatusTracker struct {
	store  store.Store
	events EventEmitter
	logger *slog.Logger
}

// NewStatusTracker creates a StatusTracker. events may be nil.
func NewStatusTracker(st store.Store, events EventEmitter, logger *slog.Logger) *StatusTracker {
	if events == nil {
		events = discardEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StatusTracker{store: st, events: events, logger: logger}
}

// Register persists a book whose ingestion already finished.
func (t *StatusTracker) Register(ctx context.Context, book *domain.Book) error {
	if err := book.MarkReady(); err != nil {
		return err
	}
	if err := t.store.CreateBook(ctx, book); err != nil {
		return storeErr(err, "create book")
	}
	t.logger.Info("book ready",
		slog.String("book_id", book.ID),
		slog.String("type", string(book.Type)),
		slog.Int("chapters", book.TotalChapters),
	)
	t.events.Emit(sse.NewBookReadyEvent(book))
	return nil
}

// Begin persists a book whose background work was just accepted.
func (t *StatusTracker) Begin(ctx context.Context, book *domain.Book) error {
	if err := book.MarkProcessing(); err != nil {
		return err
	}
	if err := t.store.CreateBook(ctx, book); err != nil {
		return storeErr(err, "create book")
	}
	t.logger.Info("book processing", slog.String("book_id", book.ID))
	t.events.Emit(sse.NewBookProcessingEvent(book))
	return nil
}

// Complete records the finished numbers via apply, then moves the book from
// processing to ready.
func (t *StatusTracker) Complete(ctx context.Context, bookID string, apply func(*domain.Book)) (*domain.Book, error) {
	book, err := t.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, storeErr(err, "get book "+bookID)
	}
	if book.Status != domain.StatusProcessing {
		return nil, errors.Statef("book %s: cannot complete from %s", bookID, book.Status)
	}

	if apply != nil {
		apply(book)
		if err := t.store.UpdateBook(ctx, book); err != nil {
			return nil, storeErr(err, "update book "+bookID)
		}
	}

	if err := t.store.TransitionBookStatus(ctx, bookID, domain.StatusProcessing, domain.StatusReady, ""); err != nil {
		return nil, storeErr(err, "complete book "+bookID)
	}
	book.Status = domain.StatusReady
	book.StatusError = ""

	t.logger.Info("book ready",
		slog.String("book_id", bookID),
		slog.Float64("duration", book.TotalDuration),
		slog.Int("chapters", book.TotalChapters),
	)
	t.events.Emit(sse.NewBookReadyEvent(book))
	return book, nil
}

// Fail moves the book from processing to failed with cause's message.
func (t *StatusTracker) Fail(ctx context.Context, bookID string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if err := t.store.TransitionBookStatus(ctx, bookID, domain.StatusProcessing, domain.StatusFailed, msg); err != nil {
		return storeErr(err, "fail book "+bookID)
	}

	t.logger.Warn("book failed", slog.String("book_id", bookID), slog.String("error", msg))
	t.events.Emit(sse.NewBookFailedEvent(bookID, msg))
	return nil
}

// Status returns the stored book.
func (t *StatusTracker) Status(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := t.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, storeErr(err, "get book "+bookID)
	}
	return book, nil
}

// StaleReport lists work interrupted by a previous shutdown.
type StaleReport struct {
	Books []*domain.Book
	Jobs  []*domain.SynthesisJob
}

// ReportStale logs books left in processing and unfinished jobs. Nothing is
// resumed or reconciled; a new submission is the only way forward.
func (t *StatusTracker) ReportStale(ctx context.Context) (*StaleReport, error) {
	books, err := t.store.ListBooksByStatus(ctx, domain.StatusProcessing)
	if err != nil {
		return nil, storeErr(err, "list processing books")
	}

	report := &StaleReport{Books: books}
	for _, status := range []domain.SynthesisJobStatus{domain.SynthesisJobPending, domain.SynthesisJobRunning} {
		jobs, err := t.store.ListSynthesisJobsByStatus(ctx, status)
		if err != nil {
			return nil, storeErr(err, "list synthesis jobs")
		}
		report.Jobs = append(report.Jobs, jobs...)
	}

	for _, b := range report.Books {
		t.logger.Warn("book left in processing by an earlier run",
			slog.String("book_id", b.ID),
			slog.String("title", b.Title),
			slog.Time("updated_at", b.UpdatedAt),
		)
	}
	for _, j := range report.Jobs {
		t.logger.Warn("synthesis job interrupted by an earlier run",
			slog.String("job_id", j.ID),
			slog.String("book_id", j.BookID),
			slog.Int("chapters_done", j.ChaptersDone),
			slog.Int("chapters_total", j.ChaptersTotal),
		)
	}
	return report, nil
}
