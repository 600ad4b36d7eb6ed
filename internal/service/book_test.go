package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/sse"
)

func ingestArchive(t *testing.T, env *testEnv, req IngestRequest) *domain.Book {
	t.Helper()
	if req.FilePath == "" {
		req.FilePath = writeZip(t, archiveBundle())
	}
	res, err := env.ingest.Submit(context.Background(), req)
	require.NoError(t, err)
	return res.Book
}

func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 90, B: uint8(y * 30), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "front.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestBookService_ChapterArtifacts(t *testing.T) {
	env := newTestEnv(t)
	book := ingestArchive(t, env, IngestRequest{Title: "Artifacts"})
	ctx := context.Background()

	m, err := env.books.Manifest(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, m.Chapters, 2)

	alignment, err := env.books.Alignment(ctx, book.ID, "001")
	require.NoError(t, err)
	require.Len(t, alignment, 2)
	assert.Equal(t, "world", alignment[1].Text)

	text, err := env.books.ChapterText(ctx, book.ID, "002")
	require.NoError(t, err)
	assert.Equal(t, "second chapter", text)

	path, err := env.books.AudioPath(ctx, book.ID, "001")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(book.StoragePath, "001_audio.mp3"), path)

	_, err = env.books.Alignment(ctx, book.ID, "009")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = env.books.Structure(ctx, book.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "bundles have no EPUB structure")

	_, err = env.books.CoverPath(ctx, book.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBookService_UploadedCover(t *testing.T) {
	env := newTestEnv(t)
	book := ingestArchive(t, env, IngestRequest{Title: "Covered", CoverPath: writePNG(t)})

	assert.Equal(t, "cover.png", book.CoverPath)
	assert.NotEmpty(t, book.CoverBlurHash)

	path, err := env.books.CoverPath(context.Background(), book.ID)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestBookService_ProcessingBookIsNotReadable(t *testing.T) {
	env := newTestEnv(t)
	env.engine.block = true
	ctx := context.Background()

	res, err := env.ingest.Submit(ctx, IngestRequest{Title: "Pending", Text: manuscript})
	require.NoError(t, err)

	_, err = env.books.Manifest(ctx, res.Book.ID)
	assert.True(t, errors.Is(err, errors.ErrState))

	err = env.books.Delete(ctx, res.Book.ID)
	var coded *errors.Error
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, errors.CodeConflict, coded.Code)
	assert.DirExists(t, res.Book.StoragePath)
}

func TestBookService_Delete(t *testing.T) {
	env := newTestEnv(t)
	book := ingestArchive(t, env, IngestRequest{Title: "Doomed"})
	ctx := context.Background()

	require.NoError(t, env.books.Delete(ctx, book.ID))

	assert.NoDirExists(t, book.StoragePath)
	_, err := env.books.Get(ctx, book.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, []sse.EventType{sse.EventBookReady, sse.EventBookDeleted}, env.events.types())

	err = env.books.Delete(ctx, book.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBookService_List(t *testing.T) {
	env := newTestEnv(t)
	ingestArchive(t, env, IngestRequest{Title: "One"})
	ingestArchive(t, env, IngestRequest{Title: "Two"})

	result, err := env.books.List(context.Background(), defaultPage())
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
}
