package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(domain.ManifestTypeText, "Book")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	b.Add(domain.ManifestChapter{ID: "001", Duration: 10.004, Words: 40}).
		Add(domain.ManifestChapter{ID: "002", Duration: 20.456, Words: 60})

	m, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 1, m.Chapters[0].Order)
	assert.Equal(t, 2, m.Chapters[1].Order)
	assert.Equal(t, 10.0, m.Chapters[0].Duration)
	assert.Equal(t, 30.46, m.TotalDuration)
	assert.Equal(t, 100, m.TotalWords)
	require.NotNil(t, m.CreatedAt)
	assert.Equal(t, fixed, *m.CreatedAt)
}

func TestBuilder_RejectsDuplicateIDs(t *testing.T) {
	b := NewBuilder(domain.ManifestTypeText, "")
	b.Add(domain.ManifestChapter{ID: "001"}).Add(domain.ManifestChapter{ID: "001"})

	_, err := b.Build()
	assert.ErrorContains(t, err, "duplicate chapter id")
}

func TestBuilder_EmptyManifestHasChaptersArray(t *testing.T) {
	m, err := NewBuilder(domain.ManifestTypeText, "").Build()
	require.NoError(t, err)
	assert.NotNil(t, m.Chapters)
	assert.Zero(t, m.TotalDuration)
}

func sampleStructure() *domain.EpubStructure {
	return &domain.EpubStructure{
		Type:     "epub",
		Metadata: domain.EpubMetadata{Title: "三体", Creator: "刘慈欣"},
		Chapters: []domain.EpubChapter{
			{EpubID: "cover", Type: domain.ChapterTypeCover, Order: 1},
			{EpubID: "c1", ID: "001", Type: domain.ChapterTypeChapter, Order: 2, Title: "第一章", HasAudio: true,
				AudioFile: "001_audio.mp3", AlignmentFile: "001_align.json", TextFile: "001_text.txt", Duration: 12.346},
			{EpubID: "c2", ID: "002", Type: domain.ChapterTypeContent, Order: 3, HasAudio: true,
				AudioFile: "002_audio.mp3", AlignmentFile: "002_align.json", Duration: 7.5},
			{EpubID: "c3", Type: domain.ChapterTypeContent, Order: 4},
		},
		TotalChapters: 2,
	}
}

func TestFromStructure(t *testing.T) {
	m := FromStructure(sampleStructure(), domain.ManifestTypeEPUB)

	assert.Equal(t, domain.ManifestTypeEPUB, m.Type)
	assert.Equal(t, "三体", m.Title)
	require.Len(t, m.Chapters, 2)

	assert.Equal(t, "001", m.Chapters[0].ID)
	assert.Equal(t, "第一章", m.Chapters[0].Title)
	assert.Equal(t, 12.35, m.Chapters[0].Duration)
	assert.Equal(t, domain.ChapterTypeChapter, m.Chapters[0].Type)

	assert.Equal(t, "Chapter 2", m.Chapters[1].Title, "synthetic title when navigation had none")
	assert.Equal(t, 2, m.Chapters[1].Order)
	assert.Equal(t, 19.85, m.TotalDuration)
	assert.NoError(t, m.Validate())
}

func TestFromStructure_NoAudioChapters(t *testing.T) {
	m := FromStructure(&domain.EpubStructure{Type: "epub"}, domain.ManifestTypeEPUBCompatible)
	assert.Empty(t, m.Chapters)
	assert.NotNil(t, m.Chapters)
}
