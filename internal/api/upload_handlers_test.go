package api

import (
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	domainerrors "github.com/listenupapp/listenup-ingest/internal/errors"
)

func TestCreateBook_Bundle(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.submit(t, map[string]string{"title": "Harbor Tales", "author": "Ana Ruiz"}, "bundle.zip", bundleZip(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res IngestResponse
	env := decodeEnvelope(t, w.Body.Bytes(), &res)
	assert.True(t, env.Success)
	assert.Equal(t, "archive", res.Route)
	assert.Nil(t, res.Job)
	assert.Equal(t, []string{"003"}, res.DroppedChapters)
	assert.Equal(t, domain.StatusReady, res.Book.Status)
	assert.Equal(t, "Harbor Tales", res.Book.Title)
	assert.Equal(t, 2, res.Book.TotalChapters)
	assert.InDelta(t, 19.75, res.Book.TotalDuration, 0.01)

	entries, err := os.ReadDir(ts.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload temp files are removed")
}

func TestCreateBook_ManuscriptIsQueued(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.submit(t, map[string]string{
		"title": "Quiet Night",
		"text":  "第一段文字。\n第二段文字，稍微长一点。",
		"voice": "zh-CN-XiaoxiaoNeural",
	}, "", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var res IngestResponse
	decodeEnvelope(t, w.Body.Bytes(), &res)
	assert.Equal(t, "synthesis", res.Route)
	require.NotNil(t, res.Job)
	assert.Equal(t, "zh-CN-XiaoxiaoNeural", res.Job.Voice)
	assert.Equal(t, domain.StatusProcessing, res.Book.Status)

	status := ts.waitForStatus(t, res.Book.ID, "ready")
	assert.Equal(t, res.Job.ID, status.JobID)
	assert.Equal(t, 2, status.ChaptersDone)
	assert.Equal(t, 2, status.ChaptersTotal)

	resp := ts.api.Get("/api/v1/books/" + res.Book.ID + "/manifest")
	require.Equal(t, http.StatusOK, resp.Code)
	var m domain.Manifest
	decodeEnvelope(t, resp.Body.Bytes(), &m)
	assert.Equal(t, domain.ManifestTypeText, m.Type)
	assert.Len(t, m.Chapters, 2)
	assert.Equal(t, 4.0, m.TotalDuration)
}

func TestCreateBook_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		fileName string
		data     []byte
		status   int
		code     string
		reason   string
	}{
		{
			name:   "nothing submitted",
			fields: map[string]string{"title": "Empty"},
			status: http.StatusBadRequest,
			code:   "VALIDATION",
		},
		{
			name:   "malformed voice",
			fields: map[string]string{"text": "hello", "voice": "robot"},
			status: http.StatusBadRequest,
			code:   "VALIDATION",
		},
		{
			name:     "unrecognized archive",
			fileName: "notes.zip",
			data:     zipOf(t, map[string][]byte{"notes.doc": []byte("x")}),
			status:   http.StatusUnprocessableEntity,
			code:     "FORMAT",
			reason:   domainerrors.ReasonUnrecognized,
		},
		{
			name:     "corrupt archive",
			fileName: "broken.zip",
			data:     []byte("not a zip"),
			status:   http.StatusUnprocessableEntity,
			code:     "FORMAT",
			reason:   domainerrors.ReasonCorruptArchive,
		},
		{
			name:     "incomplete chapters",
			fileName: "partial.zip",
			data:     zipOf(t, map[string][]byte{"001.mp3": []byte("a"), "001.txt": []byte("t")}),
			status:   http.StatusUnprocessableEntity,
			code:     "FORMAT",
			reason:   domainerrors.ReasonNoChaptersFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)

			w := ts.submit(t, tt.fields, tt.fileName, tt.data)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			env := decodeEnvelope(t, w.Body.Bytes(), nil)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, env.Reason)
			}

			list := ts.api.Get("/api/v1/books")
			var page BookListResponse
			decodeEnvelope(t, list.Body.Bytes(), &page)
			assert.Empty(t, page.Books)
		})
	}
}

func TestCreateBook_NotMultipart(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/books", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
