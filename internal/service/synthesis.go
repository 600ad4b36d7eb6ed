package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/id"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/sse"
	"github.com/listenupapp/listenup-ingest/internal/store"
	"github.com/listenupapp/listenup-ingest/internal/synthesis"
)

const (
	// ManuscriptFile keeps the submitted text beside the generated chapters.
	ManuscriptFile = "manuscript.txt"
	// LockFile guards a book directory while its job runs.
	LockFile = ".synthesis.lock"

	queueSize = 64
)

// SynthesisConfig configures the SynthesisService.
type SynthesisConfig struct {
	BooksPath    string
	DefaultVoice string
	Workers      int
}

// SynthesisRequest is one manuscript to voice.
type SynthesisRequest struct {
	Title  string
	Author string
	Text   string
	Voice  string
}

type queuedJob struct {
	job  *domain.SynthesisJob
	book *domain.Book
	text string
}

// SynthesisService runs manuscript synthesis in the background. Each book
// gets exactly one job; a job's chapters run strictly in order.
type SynthesisService struct {
	orchestrator *synthesis.Orchestrator
	tracker      *StatusTracker
	store        store.Store
	search       *SearchService
	events       EventEmitter
	config       SynthesisConfig
	logger       *slog.Logger

	// Worker management
	ctx    context.Context //nolint:containedctx // Context needed for worker lifecycle management
	cancel context.CancelFunc
	wg     sync.WaitGroup
	jobs   chan *queuedJob
	once   sync.Once
}

// NewSynthesisService creates a new synthesis service.
func NewSynthesisService(
	orchestrator *synthesis.Orchestrator,
	tracker *StatusTracker,
	st store.Store,
	searchService *SearchService,
	events EventEmitter,
	cfg SynthesisConfig,
	logger *slog.Logger,
) *SynthesisService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if events == nil {
		events = discardEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SynthesisService{
		orchestrator: orchestrator,
		tracker:      tracker,
		store:        st,
		search:       searchService,
		events:       events,
		config:       cfg,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		jobs:         make(chan *queuedJob, queueSize),
	}
}

// Start begins the synthesis worker pool.
func (s *SynthesisService) Start() {
	s.once.Do(func() {
		s.logger.Info("starting synthesis workers", slog.Int("workers", s.config.Workers))
		for i := range s.config.Workers {
			s.wg.Add(1)
			go s.worker(i)
		}
	})
}

// Stop cancels running jobs and waits for workers to exit. Interrupted
// books stay in processing.
func (s *SynthesisService) Stop() {
	s.logger.Info("stopping synthesis service")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("synthesis service stopped")
}

// Submit accepts a manuscript: it creates the book in processing, stores
// the raw text and queues the job. It returns before any audio exists.
func (s *SynthesisService) Submit(ctx context.Context, req SynthesisRequest) (*domain.Book, *domain.SynthesisJob, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil, errors.Validation("manuscript is empty")
	}
	chapters := s.orchestrator.Plan(req.Text)
	if len(chapters) == 0 {
		return nil, nil, errors.Validation("manuscript has no readable paragraphs")
	}
	voice := req.Voice
	if voice == "" {
		voice = s.config.DefaultVoice
	}

	bookID, err := id.NewBookID()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeInternal, "generate book id")
	}
	dir := filepath.Join(s.config.BooksPath, bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeStorage, "create book directory")
	}
	if err := os.WriteFile(filepath.Join(dir, ManuscriptFile), []byte(req.Text), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, errors.Wrap(err, errors.CodeStorage, "store manuscript")
	}

	book := &domain.Book{
		ID:          bookID,
		Title:       req.Title,
		Author:      req.Author,
		Type:        domain.BookTypeText,
		StoragePath: dir,
	}
	if err := s.tracker.Begin(ctx, book); err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}

	job := &domain.SynthesisJob{
		ID:            uuid.NewString(),
		BookID:        bookID,
		Voice:         voice,
		Status:        domain.SynthesisJobPending,
		ChaptersTotal: len(chapters),
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateSynthesisJob(ctx, job); err != nil {
		err = storeErr(err, "create synthesis job")
		s.abandon(book, job, err)
		return nil, nil, err
	}

	// The worker owns the queued job; callers get a snapshot.
	snapshot := *job

	select {
	case s.jobs <- &queuedJob{job: job, book: book, text: req.Text}:
	default:
		err := errors.Conflict("synthesis queue is full")
		s.abandon(book, job, err)
		return nil, nil, err
	}

	s.logger.Info("synthesis job queued",
		slog.String("book_id", bookID),
		slog.String("job_id", job.ID),
		slog.Int("chapters", len(chapters)),
	)
	return book, &snapshot, nil
}

// Job returns the synthesis job of a book.
func (s *SynthesisService) Job(ctx context.Context, bookID string) (*domain.SynthesisJob, error) {
	job, err := s.store.GetSynthesisJobByBook(ctx, bookID)
	if err != nil {
		return nil, storeErr(err, "get synthesis job for "+bookID)
	}
	return job, nil
}

// worker processes queued jobs until Stop.
func (s *SynthesisService) worker(workerID int) {
	defer s.wg.Done()

	s.logger.Debug("synthesis worker started", slog.Int("worker_id", workerID))
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("synthesis worker stopping", slog.Int("worker_id", workerID))
			return
		case q := <-s.jobs:
			s.process(workerID, q)
		}
	}
}

func (s *SynthesisService) process(workerID int, q *queuedJob) {
	ctx := s.ctx
	job, book := q.job, q.book
	logger := s.logger.With(slog.String("book_id", book.ID), slog.String("job_id", job.ID))

	lock := flock.New(filepath.Join(book.StoragePath, LockFile))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		if err == nil {
			err = errors.Conflict("book directory is locked by another job")
		}
		s.abandon(book, job, err)
		return
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	job.MarkRunning(job.ChaptersTotal)
	if err := s.store.UpdateSynthesisJob(ctx, job); err != nil {
		logger.Warn("failed to mark job running", slog.Any("error", err))
	}
	logger.Info("starting synthesis", slog.Int("worker_id", workerID))

	m, err := s.orchestrator.Run(ctx, synthesis.Job{
		Title: book.Title,
		Text:  q.text,
		Voice: job.Voice,
		Dir:   book.StoragePath,
		OnChapter: func(done, total int) {
			job.SetProgress(done, total)
			if err := s.store.UpdateSynthesisJob(ctx, job); err != nil {
				logger.Warn("failed to record progress", slog.Any("error", err))
			}
			s.events.Emit(sse.NewSynthesisProgressEvent(book.ID, job.ID, done, total))
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("synthesis interrupted by shutdown; book left in processing",
				slog.Int("chapters_done", job.ChaptersDone))
			return
		}
		s.abandon(book, job, err)
		return
	}

	if err := manifest.Save(book.StoragePath, m); err != nil {
		s.abandon(book, job, err)
		return
	}

	done, err := s.tracker.Complete(ctx, book.ID, func(b *domain.Book) {
		b.ApplyManifest(m)
	})
	if err != nil {
		logger.Error("failed to complete book", slog.Any("error", err))
		if rmErr := os.Remove(filepath.Join(book.StoragePath, manifest.FileName)); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("failed to remove manifest", slog.Any("error", rmErr))
		}
		s.abandon(book, job, err)
		return
	}

	job.MarkCompleted()
	if err := s.store.UpdateSynthesisJob(ctx, job); err != nil {
		logger.Warn("failed to mark job completed", slog.Any("error", err))
	}

	if err := s.search.IndexBook(ctx, done, m); err != nil {
		logger.Warn("failed to index book", slog.Any("error", err))
	}

	logger.Info("synthesis completed",
		slog.Int("chapters", len(m.Chapters)),
		slog.Float64("duration", m.TotalDuration),
		slog.Duration("elapsed", time.Since(*job.StartedAt)),
	)
}

// abandon records a terminal failure on both the job and the book.
func (s *SynthesisService) abandon(book *domain.Book, job *domain.SynthesisJob, cause error) {
	ctx := context.WithoutCancel(s.ctx)

	job.MarkFailed(cause.Error())
	if err := s.store.UpdateSynthesisJob(ctx, job); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to mark job failed", slog.String("job_id", job.ID), slog.Any("error", err))
	}
	if err := s.tracker.Fail(ctx, book.ID, cause); err != nil {
		s.logger.Error("failed to mark book failed", slog.String("book_id", book.ID), slog.Any("error", err))
	}
}
