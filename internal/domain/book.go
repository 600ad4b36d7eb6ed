// Package domain contains the entities produced by book ingestion: books and
// their processing state, chapter manifests, alignments and EPUB structure.
package domain

import (
	"time"

	"github.com/listenupapp/listenup-ingest/internal/errors"
)

// BookType records how a book's chapters were produced.
type BookType string

const (
	// BookTypeText covers synthesized manuscripts and pre-synthesized chapter bundles.
	BookTypeText BookType = "txt"
	// BookTypeEPUB is an e-book paired with supplied alignment files.
	BookTypeEPUB BookType = "epub"
)

// ProcessingStatus is the lifecycle state of one book.
type ProcessingStatus string

const (
	StatusProcessing ProcessingStatus = "processing"
	StatusReady      ProcessingStatus = "ready"
	StatusFailed     ProcessingStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal move. A brand-new book
// (empty status) may start processing or be created ready; processing may end
// in exactly one terminal state; terminal states never change.
func CanTransition(from, to ProcessingStatus) bool {
	switch from {
	case "":
		return to == StatusProcessing || to == StatusReady
	case StatusProcessing:
		return to == StatusReady || to == StatusFailed
	default:
		return false
	}
}

// Book is one ingested submission and its aggregate numbers.
type Book struct {
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	EpubStructure *EpubStructure   `json:"epub_structure,omitempty"`
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Author        string           `json:"author,omitempty"`
	Type          BookType         `json:"type"`
	StoragePath   string           `json:"storage_path"`
	Status        ProcessingStatus `json:"processing_status"`
	StatusError   string           `json:"processing_error,omitempty"`
	CoverPath     string           `json:"cover_path,omitempty"`
	CoverBlurHash string           `json:"cover_blurhash,omitempty"`
	TotalDuration float64          `json:"total_duration"`
	TotalChapters int              `json:"total_chapters"`
	TotalWords    int              `json:"total_words"`
	TotalSegments int              `json:"total_segments"`
}

func (b *Book) transition(to ProcessingStatus) error {
	if !CanTransition(b.Status, to) {
		from := b.Status
		if from == "" {
			from = "new"
		}
		return errors.Statef("book %s: cannot move from %s to %s", b.ID, from, to)
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing transitions a new book into processing.
func (b *Book) MarkProcessing() error {
	return b.transition(StatusProcessing)
}

// MarkReady transitions the book to ready and clears any error.
func (b *Book) MarkReady() error {
	if err := b.transition(StatusReady); err != nil {
		return err
	}
	b.StatusError = ""
	return nil
}

// MarkFailed transitions the book to failed with a captured error message.
func (b *Book) MarkFailed(msg string) error {
	if msg == "" {
		msg = "unknown error"
	}
	if err := b.transition(StatusFailed); err != nil {
		return err
	}
	b.StatusError = msg
	return nil
}

// ApplyManifest copies aggregate numbers from a finished manifest.
func (b *Book) ApplyManifest(m *Manifest) {
	b.TotalDuration = m.TotalDuration
	b.TotalChapters = len(m.Chapters)
	b.TotalWords = m.TotalWords
}
