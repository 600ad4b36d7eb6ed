package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/errors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from ProcessingStatus
		to   ProcessingStatus
		ok   bool
	}{
		{"", StatusProcessing, true},
		{"", StatusReady, true},
		{"", StatusFailed, false},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusProcessing, false},
		{StatusReady, StatusProcessing, false},
		{StatusReady, StatusFailed, false},
		{StatusFailed, StatusReady, false},
		{StatusFailed, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestBook_SynthesisLifecycle(t *testing.T) {
	b := &Book{ID: "book-1"}

	require.NoError(t, b.MarkProcessing())
	assert.Equal(t, StatusProcessing, b.Status)
	assert.False(t, b.Status.IsTerminal())

	require.NoError(t, b.MarkFailed("edge-tts exited with status 1"))
	assert.Equal(t, StatusFailed, b.Status)
	assert.Equal(t, "edge-tts exited with status 1", b.StatusError)
	assert.True(t, b.Status.IsTerminal())

	err := b.MarkReady()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrState)
	assert.Equal(t, StatusFailed, b.Status, "terminal state must not change")
}

func TestBook_MarkFailedNeedsMessage(t *testing.T) {
	b := &Book{ID: "book-1", Status: StatusProcessing}

	require.NoError(t, b.MarkFailed(""))
	assert.NotEmpty(t, b.StatusError)
}

func TestBook_SyncPathGoesStraightToReady(t *testing.T) {
	b := &Book{ID: "book-2"}

	require.NoError(t, b.MarkReady())
	assert.Equal(t, StatusReady, b.Status)
	assert.Error(t, b.MarkProcessing())
}

func TestBook_ApplyManifest(t *testing.T) {
	b := &Book{}
	b.ApplyManifest(&Manifest{
		Chapters:      []ManifestChapter{{ID: "1"}, {ID: "2"}},
		TotalDuration: 42.5,
		TotalWords:    900,
	})

	assert.Equal(t, 2, b.TotalChapters)
	assert.Equal(t, 42.5, b.TotalDuration)
	assert.Equal(t, 900, b.TotalWords)
}
