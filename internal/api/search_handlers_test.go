package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_ChapterText(t *testing.T) {
	ts := setupTestServer(t)
	bookID := ts.ingestBundle(t, "Harbor Tales")

	resp := ts.api.Get("/api/v1/search?q=second&types=chapter&highlight=true")
	require.Equal(t, http.StatusOK, resp.Code)

	var result SearchResponse
	decodeEnvelope(t, resp.Body.Bytes(), &result)
	require.Len(t, result.Hits, 1)
	hit := result.Hits[0]
	assert.Equal(t, "chapter", hit.Type)
	assert.Equal(t, bookID, hit.BookID)
	assert.Equal(t, "002", hit.ChapterID)
	assert.Equal(t, "Harbor Tales", hit.BookTitle)
	assert.Contains(t, hit.Highlights["text"], "<mark>second</mark>")
}

func TestSearch_Books(t *testing.T) {
	ts := setupTestServer(t)
	ts.ingestBundle(t, "Harbor Tales")
	ts.ingestBundle(t, "Mountain Songs")

	resp := ts.api.Get("/api/v1/search?q=mountain&types=book")
	require.Equal(t, http.StatusOK, resp.Code)

	var result SearchResponse
	decodeEnvelope(t, resp.Body.Bytes(), &result)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "Mountain Songs", result.Hits[0].Name)
}

func TestSearch_RequiresQuery(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/search")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestParseTypes(t *testing.T) {
	assert.Equal(t, []string{"book", "chapter"}, parseTypes("book, chapter,series"))
	assert.Nil(t, parseTypes(""))
}
