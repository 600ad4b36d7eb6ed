package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/router"
	"github.com/listenupapp/listenup-ingest/internal/sse"
)

func TestIngestService_Archive(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest.Submit(context.Background(), IngestRequest{
		Title:    "Legacy Bundle",
		Author:   "Ana Ruiz",
		FilePath: writeZip(t, archiveBundle()),
		FileName: "legacy.zip",
	})
	require.NoError(t, err)

	assert.Equal(t, router.RouteArchive, res.Route)
	assert.Nil(t, res.Job)
	assert.Equal(t, []string{"003"}, res.Dropped)

	book := res.Book
	assert.Equal(t, domain.StatusReady, book.Status)
	assert.Equal(t, domain.BookTypeText, book.Type)
	assert.Equal(t, "Legacy Bundle", book.Title)
	assert.Equal(t, 2, book.TotalChapters)
	assert.Equal(t, 3, book.TotalSegments)
	assert.InDelta(t, 19.75, book.TotalDuration, 0.01)

	m, err := manifest.Load(book.StoragePath)
	require.NoError(t, err)
	require.Len(t, m.Chapters, 2)
	assert.Equal(t, "001", m.Chapters[0].ID)
	assert.Equal(t, 12.5, m.Chapters[0].Duration)

	stored, err := env.books.Get(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, stored.Status)
	assert.Equal(t, []sse.EventType{sse.EventBookReady}, env.events.types(), "sync paths never show processing")
}

func TestIngestService_EPUB(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest.Submit(context.Background(), IngestRequest{
		FilePath: writeZip(t, epubBundle(t)),
		FileName: "lighthouse.zip",
	})
	require.NoError(t, err)

	assert.Equal(t, router.RouteEPUB, res.Route)
	require.NotNil(t, res.Pairing)
	assert.False(t, res.Pairing.Mismatch())

	book := res.Book
	assert.Equal(t, domain.BookTypeEPUB, book.Type)
	assert.Equal(t, "The Lighthouse", book.Title, "title falls back to the document metadata")
	assert.Equal(t, "Mara Quill", book.Author)
	assert.Equal(t, 2, book.TotalChapters)
	assert.InDelta(t, 10.75, book.TotalDuration, 0.01)
	require.NotNil(t, book.EpubStructure)

	assert.FileExists(t, filepath.Join(book.StoragePath, manifest.StructureFileName))
	assert.FileExists(t, filepath.Join(book.StoragePath, manifest.FileName))

	structure, err := env.books.Structure(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Lighthouse", structure.Metadata.Title)

	text, err := env.books.ChapterText(context.Background(), book.ID, "001")
	require.NoError(t, err)
	assert.Contains(t, text, "The keeper climbed the stairs.")
}

func TestIngestService_TextFileQueuesSynthesis(t *testing.T) {
	env := newTestEnv(t)

	path := filepath.Join(t.TempDir(), "my_novel.md")
	require.NoError(t, os.WriteFile(path, []byte("# Heading\n\n**Bold** opening line.\n"), 0o644))

	res, err := env.ingest.Submit(context.Background(), IngestRequest{FilePath: path, FileName: "my_novel.md"})
	require.NoError(t, err)

	assert.Equal(t, router.RouteSynthesis, res.Route)
	require.NotNil(t, res.Job)
	assert.Equal(t, domain.StatusProcessing, res.Book.Status)
	assert.Equal(t, "my novel", res.Book.Title)

	raw, err := os.ReadFile(filepath.Join(res.Book.StoragePath, ManuscriptFile))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "**", "markdown is cleaned before synthesis")
	assert.NotContains(t, string(raw), "#")
}

func TestIngestService_InlineText(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest.Submit(context.Background(), IngestRequest{Title: "Inline", Text: manuscript})
	require.NoError(t, err)
	assert.Equal(t, router.RouteSynthesis, res.Route)
	assert.Equal(t, "Inline", res.Book.Title)
}

func TestIngestService_TextWithoutSynthesis(t *testing.T) {
	env := newTestEnv(t)
	env.ingest.synthesis = nil

	_, err := env.ingest.Submit(context.Background(), IngestRequest{Title: "Inline", Text: manuscript})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSynthesis))
	assert.Empty(t, env.bookDirs(t))
}

func TestIngestService_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		req   func(t *testing.T) IngestRequest
		check error
	}{
		{
			name:  "nothing submitted",
			req:   func(*testing.T) IngestRequest { return IngestRequest{Title: "x"} },
			check: errors.ErrValidation,
		},
		{
			name: "file and text",
			req: func(t *testing.T) IngestRequest {
				return IngestRequest{FilePath: writeZip(t, archiveBundle()), Text: "hello"}
			},
			check: errors.ErrValidation,
		},
		{
			name:  "bad voice",
			req:   func(*testing.T) IngestRequest { return IngestRequest{Text: "hello", Voice: "not a voice"} },
			check: errors.ErrValidation,
		},
		{
			name: "corrupt archive",
			req: func(t *testing.T) IngestRequest {
				path := filepath.Join(t.TempDir(), "broken.zip")
				require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
				return IngestRequest{FilePath: path}
			},
			check: errors.ErrFormat,
		},
		{
			name: "unrecognized archive",
			req: func(t *testing.T) IngestRequest {
				return IngestRequest{FilePath: writeZip(t, map[string][]byte{"notes.doc": []byte("x")})}
			},
			check: errors.ErrFormat,
		},
		{
			name: "no complete chapter",
			req: func(t *testing.T) IngestRequest {
				return IngestRequest{FilePath: writeZip(t, map[string][]byte{"001.mp3": []byte("a"), "001.txt": []byte("t")})}
			},
			check: errors.ErrFormat,
		},
		{
			name: "epub without alignments",
			req: func(t *testing.T) IngestRequest {
				files := epubBundle(t)
				delete(files, "ch001_align.json")
				delete(files, "ch002_align.json")
				return IngestRequest{FilePath: writeZip(t, files)}
			},
			check: errors.ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			_, err := env.ingest.Submit(context.Background(), tt.req(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.check), "got %v", err)
			assert.Empty(t, env.bookDirs(t), "failed submissions leave nothing behind")

			result, err := env.books.List(context.Background(), defaultPage())
			require.NoError(t, err)
			assert.Empty(t, result.Items)
		})
	}
}

func TestIngestService_IngestFile(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "Sea_Stories.zip")
	require.NoError(t, os.WriteFile(path, zipBytes(t, archiveBundle()), 0o644))

	require.NoError(t, env.ingest.IngestFile(context.Background(), path))

	result, err := env.books.List(context.Background(), defaultPage())
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Sea Stories", result.Items[0].Title)
}

func TestTitleFromFileName(t *testing.T) {
	tests := map[string]string{
		"my_book.zip":           "my book",
		"/inbox/三体.epub":        "三体",
		"notes":                 "notes",
		"":                      "Untitled",
		".txt":                  "Untitled",
		"/path/To Kill.a.md":    "To Kill.a",
	}
	for in, want := range tests {
		assert.Equal(t, want, TitleFromFileName(in), in)
	}
}
