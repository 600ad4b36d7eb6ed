package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, created_at, updated_at,
	title, author, type, storage_path,
	processing_status, processing_error,
	cover_path, cover_blurhash,
	total_duration, total_chapters, total_words, total_segments,
	epub_structure`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		createdAt     string
		updatedAt     string
		author        sql.NullString
		statusError   sql.NullString
		coverPath     sql.NullString
		coverBlurHash sql.NullString
		structure     sql.NullString
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&b.Title,
		&author,
		&b.Type,
		&b.StoragePath,
		&b.Status,
		&statusError,
		&coverPath,
		&coverBlurHash,
		&b.TotalDuration,
		&b.TotalChapters,
		&b.TotalWords,
		&b.TotalSegments,
		&structure,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, err = parseTimeText(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTimeText(updatedAt)
	if err != nil {
		return nil, err
	}

	b.Author = author.String
	b.StatusError = statusError.String
	b.CoverPath = coverPath.String
	b.CoverBlurHash = coverBlurHash.String

	if structure.Valid && structure.String != "" {
		var s domain.EpubStructure
		if err := json.Unmarshal([]byte(structure.String), &s); err != nil {
			return nil, fmt.Errorf("unmarshal epub_structure: %w", err)
		}
		b.EpubStructure = &s
	}

	return &b, nil
}

func encodeStructure(s *domain.EpubStructure) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal epub_structure: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateBook inserts a new book row.
// Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	if book.Status == "" {
		book.Status = domain.StatusReady
	}
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	if book.UpdatedAt.IsZero() {
		book.UpdatedAt = book.CreatedAt
	}

	structure, err := encodeStructure(book.EpubStructure)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, created_at, updated_at,
			title, author, type, storage_path,
			processing_status, processing_error,
			cover_path, cover_blurhash,
			total_duration, total_chapters, total_words, total_segments,
			epub_structure
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		timeText(book.CreatedAt),
		timeText(book.UpdatedAt),
		book.Title,
		optionalText(book.Author),
		string(book.Type),
		book.StoragePath,
		string(book.Status),
		optionalText(book.StatusError),
		optionalText(book.CoverPath),
		optionalText(book.CoverBlurHash),
		book.TotalDuration,
		book.TotalChapters,
		book.TotalWords,
		book.TotalSegments,
		structure,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook retrieves a book by ID.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.About("book %s", id)
	}
	if err != nil {
		return nil, err
	}
	return book, nil
}

// UpdateBook performs a full row update on an existing book.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	structure, err := encodeStructure(book.EpubStructure)
	if err != nil {
		return err
	}
	book.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			updated_at = ?,
			title = ?,
			author = ?,
			type = ?,
			storage_path = ?,
			processing_status = ?,
			processing_error = ?,
			cover_path = ?,
			cover_blurhash = ?,
			total_duration = ?,
			total_chapters = ?,
			total_words = ?,
			total_segments = ?,
			epub_structure = ?
		WHERE id = ?`,
		timeText(book.UpdatedAt),
		book.Title,
		optionalText(book.Author),
		string(book.Type),
		book.StoragePath,
		string(book.Status),
		optionalText(book.StatusError),
		optionalText(book.CoverPath),
		optionalText(book.CoverBlurHash),
		book.TotalDuration,
		book.TotalChapters,
		book.TotalWords,
		book.TotalSegments,
		structure,
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return requireRow(result)
}

// TransitionBookStatus implements store.Store.
func (s *Store) TransitionBookStatus(ctx context.Context, id string, from, to domain.ProcessingStatus, errMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET processing_status = ?, processing_error = ?, updated_at = ?
		WHERE id = ? AND processing_status = ?`,
		string(to), optionalText(errMsg), timeText(time.Now()), id, string(from))
	if err != nil {
		return fmt.Errorf("update book status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT processing_status FROM books WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound.About("book %s", id)
	}
	if err != nil {
		return err
	}
	return store.ErrStatusChanged.About("book %s is %s, not %s", id, current, from)
}

// DeleteBook deletes a book row and its synthesis job.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return requireRow(result)
}

// ListBooks returns one page of books ordered by creation time.
func (s *Store) ListBooks(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Book], error) {
	params.Validate()

	afterTime, afterID, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, store.ErrInvalidInput.WithCause(err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	query := `SELECT ` + bookColumns + ` FROM books`
	args := []any{}
	if afterID != "" {
		after := timeText(afterTime)
		query += ` WHERE created_at > ? OR (created_at = ? AND id > ?)`
		args = append(args, after, after, afterID)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	// Fetch one extra row to learn whether another page exists.
	args = append(args, params.Limit+1)

	books, err := s.queryBooks(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	result := &store.PaginatedResult[*domain.Book]{Items: books, Total: total}
	if len(books) > params.Limit {
		result.Items = books[:params.Limit]
		result.HasMore = true
		last := result.Items[len(result.Items)-1]
		result.NextCursor = store.EncodeCursor(last.CreatedAt, last.ID)
	}
	if result.Items == nil {
		result.Items = []*domain.Book{}
	}
	return result, nil
}

// ListBooksByStatus returns all books in the given processing status,
// oldest first.
func (s *Store) ListBooksByStatus(ctx context.Context, status domain.ProcessingStatus) ([]*domain.Book, error) {
	return s.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE processing_status = ? ORDER BY created_at ASC, id ASC`,
		string(status))
}

func (s *Store) queryBooks(ctx context.Context, query string, args ...any) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}
