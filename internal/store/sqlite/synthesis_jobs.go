package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/store"
)

// synthesisJobColumns is the ordered list of columns selected in job queries.
// Must match the scan order in scanSynthesisJob.
const synthesisJobColumns = `id, book_id, voice, status,
	chapters_done, chapters_total, error,
	created_at, started_at, completed_at`

// scanSynthesisJob scans a sql.Row (or sql.Rows via its Scan method) into a domain.SynthesisJob.
func scanSynthesisJob(scanner interface{ Scan(dest ...any) error }) (*domain.SynthesisJob, error) {
	var j domain.SynthesisJob

	var (
		createdAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
	)

	err := scanner.Scan(
		&j.ID,
		&j.BookID,
		&j.Voice,
		&j.Status,
		&j.ChaptersDone,
		&j.ChaptersTotal,
		&j.Error,
		&createdAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	j.CreatedAt, err = parseTimeText(createdAt)
	if err != nil {
		return nil, err
	}
	j.StartedAt, err = parseOptionalTime(startedAt)
	if err != nil {
		return nil, err
	}
	j.CompletedAt, err = parseOptionalTime(completedAt)
	if err != nil {
		return nil, err
	}

	return &j, nil
}

// CreateSynthesisJob inserts a new synthesis job.
// Returns store.ErrAlreadyExists on duplicate ID or when the book already
// has a job.
func (s *Store) CreateSynthesisJob(ctx context.Context, job *domain.SynthesisJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO synthesis_jobs (
			id, book_id, voice, status,
			chapters_done, chapters_total, error,
			created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.BookID,
		job.Voice,
		string(job.Status),
		job.ChaptersDone,
		job.ChaptersTotal,
		job.Error,
		timeText(job.CreatedAt),
		optionalTime(job.StartedAt),
		optionalTime(job.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert synthesis job: %w", err)
	}
	return nil
}

// GetSynthesisJob retrieves a synthesis job by ID.
// Returns store.ErrNotFound if the job does not exist.
func (s *Store) GetSynthesisJob(ctx context.Context, id string) (*domain.SynthesisJob, error) {
	return s.getSynthesisJob(ctx, `WHERE id = ?`, id)
}

// GetSynthesisJobByBook retrieves the synthesis job of a book.
// Returns store.ErrNotFound if the book has none.
func (s *Store) GetSynthesisJobByBook(ctx context.Context, bookID string) (*domain.SynthesisJob, error) {
	return s.getSynthesisJob(ctx, `WHERE book_id = ?`, bookID)
}

func (s *Store) getSynthesisJob(ctx context.Context, where string, arg string) (*domain.SynthesisJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+synthesisJobColumns+` FROM synthesis_jobs `+where, arg)

	job, err := scanSynthesisJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.About("synthesis job %s", arg)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateSynthesisJob performs a full row update on an existing job.
// Returns store.ErrNotFound if the job does not exist.
func (s *Store) UpdateSynthesisJob(ctx context.Context, job *domain.SynthesisJob) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE synthesis_jobs SET
			voice = ?,
			status = ?,
			chapters_done = ?,
			chapters_total = ?,
			error = ?,
			started_at = ?,
			completed_at = ?
		WHERE id = ?`,
		job.Voice,
		string(job.Status),
		job.ChaptersDone,
		job.ChaptersTotal,
		job.Error,
		optionalTime(job.StartedAt),
		optionalTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update synthesis job: %w", err)
	}
	return requireRow(result)
}

// ListSynthesisJobsByStatus returns all jobs with the given status, oldest first.
func (s *Store) ListSynthesisJobsByStatus(ctx context.Context, status domain.SynthesisJobStatus) ([]*domain.SynthesisJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+synthesisJobColumns+` FROM synthesis_jobs
		WHERE status = ? ORDER BY created_at ASC`,
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.SynthesisJob
	for rows.Next() {
		job, err := scanSynthesisJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}
