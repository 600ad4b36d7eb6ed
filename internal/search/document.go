// Package search provides full-text search over ingested books and their
// chapter text using Bleve.
package search

import (
	"github.com/listenupapp/listenup-ingest/internal/domain"
)

// DocType represents the type of document in the unified index.
type DocType string

// Document types for the search index.
const (
	DocTypeBook    DocType = "book"
	DocTypeChapter DocType = "chapter"
)

// SearchDocument is the unified document structure for the Bleve index.
// Chapter documents carry their book's title and author so a single query
// can match either.
type SearchDocument struct {
	ID     string  `json:"id"`
	Type   DocType `json:"type"`
	BookID string  `json:"book_id"`

	// Book: title, Chapter: chapter title
	Name      string `json:"name"`
	BookTitle string `json:"book_title,omitempty"`
	Author    string `json:"author,omitempty"`

	// Chapter-specific fields
	ChapterID string  `json:"chapter_id,omitempty"`
	Text      string  `json:"text,omitempty"`
	Order     int     `json:"order,omitempty"`
	Duration  float64 `json:"duration,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names matching
// the index mapping.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"type":       string(d.Type),
		"book_id":    d.BookID,
		"name":       d.Name,
		"created_at": d.CreatedAt,
	}
	if d.BookTitle != "" {
		m["book_title"] = d.BookTitle
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.ChapterID != "" {
		m["chapter_id"] = d.ChapterID
	}
	if d.Text != "" {
		m["text"] = d.Text
	}
	if d.Order > 0 {
		m["order"] = d.Order
	}
	if d.Duration > 0 {
		m["duration"] = d.Duration
	}
	return m
}

// ChapterDocID is the index ID of one chapter.
func ChapterDocID(bookID, chapterID string) string {
	return bookID + "/" + chapterID
}

// BookToSearchDocument converts a book row.
func BookToSearchDocument(b *domain.Book) *SearchDocument {
	return &SearchDocument{
		ID:        b.ID,
		Type:      DocTypeBook,
		BookID:    b.ID,
		Name:      b.Title,
		Author:    b.Author,
		Duration:  b.TotalDuration,
		CreatedAt: b.CreatedAt.UnixMilli(),
	}
}

// ChapterToSearchDocument converts one manifest chapter and its text.
func ChapterToSearchDocument(b *domain.Book, ch domain.ManifestChapter, text string) *SearchDocument {
	return &SearchDocument{
		ID:        ChapterDocID(b.ID, ch.ID),
		Type:      DocTypeChapter,
		BookID:    b.ID,
		Name:      ch.Title,
		BookTitle: b.Title,
		Author:    b.Author,
		ChapterID: ch.ID,
		Text:      text,
		Order:     ch.Order,
		Duration:  ch.Duration,
		CreatedAt: b.CreatedAt.UnixMilli(),
	}
}
