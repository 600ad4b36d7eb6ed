package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
)

func touch(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestPrefixes(t *testing.T) {
	assert.Equal(t, []string{"1", "ch1", "ch001"}, Prefixes("1"))
	assert.Equal(t, []string{"001", "ch001"}, Prefixes("001"))
	assert.Equal(t, []string{"1234", "ch1234"}, Prefixes("1234"))
	assert.Equal(t, []string{"intro", "chintro"}, Prefixes("intro"))
}

func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "ch001_text.txt", "padded")
	touch(t, dir, "ch1_text.txt", "plain")

	p, err := Resolve(dir, "1", ArtifactText)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ch1_text.txt"), p)

	touch(t, dir, "1_text.txt", "canonical")
	p, err = Resolve(dir, "1", ArtifactText)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1_text.txt"), p)
}

func TestResolve_PaddedLegacyName(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "ch007_align.json", "[]")

	p, err := Resolve(dir, "7", ArtifactAlignment)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ch007_align.json"), p)
}

func TestResolve_AudioExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "001_audio.m4a", "a")

	p, err := Resolve(dir, "001", ArtifactAudio)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "001_audio.m4a"), p)

	touch(t, dir, "001_audio.mp3", "a")
	p, err = Resolve(dir, "001", ArtifactAudio)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "001_audio.mp3"), p)
}

func TestResolve_Missing(t *testing.T) {
	_, err := Resolve(t.TempDir(), "001", ArtifactAudio)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestResolveChapter_UsesRecordedName(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "custom.mp3", "a")
	touch(t, dir, "001_audio.mp3", "a")

	p, err := ResolveChapter(dir, domain.ManifestChapter{ID: "001", AudioFile: "custom.mp3"}, ArtifactAudio)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom.mp3"), p)

	// Names with directories are ignored.
	p, err = ResolveChapter(dir, domain.ManifestChapter{ID: "001", AudioFile: "../custom.mp3"}, ArtifactAudio)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "001_audio.mp3"), p)
}

func TestReadAlignment_BothShapes(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "001_align.json", `[{"text":"a","start":0,"end":1}]`)
	touch(t, dir, "002_align.json", `{"segments":[{"text":"b","start":1,"end":2}]}`)

	a, err := ReadAlignment(dir, domain.ManifestChapter{ID: "001"})
	require.NoError(t, err)
	assert.Len(t, a, 1)

	a, err = ReadAlignment(dir, domain.ManifestChapter{ID: "002"})
	require.NoError(t, err)
	assert.Equal(t, "b", a[0].Text)
}

func TestParseArtifact(t *testing.T) {
	k, ok := ParseArtifact("alignment")
	assert.True(t, ok)
	assert.Equal(t, ArtifactAlignment, k)

	_, ok = ParseArtifact("video")
	assert.False(t, ok)
}
