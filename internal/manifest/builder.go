// Package manifest builds, persists and reads the per-book chapter index.
//
// Every pipeline ends here: the archive normalizer and synthesis orchestrator
// hand over their chapters directly, EPUB ingestion hands over the full
// EpubStructure from which the simplified manifest is derived.
package manifest

import (
	"fmt"
	"time"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

// File names inside a book directory.
const (
	FileName          = "manifest.json"
	StructureFileName = "epub_structure.json"
)

// Builder assembles a manifest chapter by chapter.
type Builder struct {
	m   domain.Manifest
	now func() time.Time
}

// NewBuilder starts a manifest of the given type.
func NewBuilder(typ domain.ManifestType, title string) *Builder {
	return &Builder{
		m:   domain.Manifest{Type: typ, Title: title, Chapters: []domain.ManifestChapter{}},
		now: time.Now,
	}
}

// Add appends a chapter. Order defaults to its position and durations are
// rounded to centiseconds.
func (b *Builder) Add(ch domain.ManifestChapter) *Builder {
	if ch.Order == 0 {
		ch.Order = len(b.m.Chapters) + 1
	}
	ch.Duration = domain.Round2(ch.Duration)
	b.m.Chapters = append(b.m.Chapters, ch)
	return b
}

// Len returns the number of chapters added so far.
func (b *Builder) Len() int {
	return len(b.m.Chapters)
}

// Build computes totals, stamps the creation time and validates the result.
func (b *Builder) Build() (*domain.Manifest, error) {
	m := b.m
	m.Chapters = append([]domain.ManifestChapter(nil), b.m.Chapters...)
	created := b.now().UTC()
	m.CreatedAt = &created
	m.Recompute()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// ChapterTitle is the title used when no navigation title exists.
func ChapterTitle(n int) string {
	return fmt.Sprintf("Chapter %d", n)
}

// FromStructure derives the simplified manifest from an EPUB structure:
// only audio-bearing chapters, in spine order, with synthetic titles where
// the navigation document had none.
func FromStructure(s *domain.EpubStructure, typ domain.ManifestType) *domain.Manifest {
	m := &domain.Manifest{Type: typ, Title: s.Metadata.Title, Chapters: []domain.ManifestChapter{}}
	for i, ch := range s.AudioChapters() {
		title := ch.Title
		if title == "" {
			title = ChapterTitle(i + 1)
		}
		m.Chapters = append(m.Chapters, domain.ManifestChapter{
			ID:            ch.ID,
			Title:         title,
			AudioFile:     ch.AudioFile,
			TextFile:      ch.TextFile,
			AlignmentFile: ch.AlignmentFile,
			Type:          ch.Type,
			Order:         i + 1,
			Duration:      domain.Round2(ch.Duration),
		})
	}
	m.Recompute()
	return m
}
