package images

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverName(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".png", "cover.png"},
		{"JPEG", "cover.jpeg"},
		{".WebP", "cover.webp"},
		{"", "cover.jpg"},
		{".", "cover.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, CoverName(tt.ext))
		})
	}
}

func TestCoverStore_SaveReplacesOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	s := NewCoverStore()

	first, err := s.Save(dir, []byte("jpeg bytes"), ".jpg")
	require.NoError(t, err)
	assert.Equal(t, "cover.jpg", first)

	second, err := s.Save(dir, []byte("png bytes"), ".png")
	require.NoError(t, err)
	assert.Equal(t, "cover.png", second)

	_, err = os.Stat(filepath.Join(dir, "cover.jpg"))
	assert.True(t, os.IsNotExist(err))

	path, ok := s.Find(dir)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "cover.png"), path)
}

func TestCoverStore_SaveValidates(t *testing.T) {
	s := NewCoverStore()

	_, err := s.Save("", []byte("x"), ".jpg")
	assert.ErrorContains(t, err, "book directory")

	_, err = s.Save(t.TempDir(), nil, ".jpg")
	assert.ErrorContains(t, err, "image data cannot be empty")
}

func TestCoverStore_CopyKeepsExtension(t *testing.T) {
	src := filepath.Join(t.TempDir(), "OEBPS", "images", "front.PNG")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("png"), 0o644))

	dir := t.TempDir()
	name, err := NewCoverStore().Copy(dir, src)
	require.NoError(t, err)

	assert.Equal(t, "cover.png", name)
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestCoverStore_FindMissing(t *testing.T) {
	_, ok := NewCoverStore().Find(t.TempDir())
	assert.False(t, ok)
}

func TestCoverStore_Hash(t *testing.T) {
	dir := t.TempDir()
	s := NewCoverStore()
	name, err := s.Save(dir, []byte("same"), ".jpg")
	require.NoError(t, err)

	h1, err := s.Hash(filepath.Join(dir, name))
	require.NoError(t, err)
	h2, err := s.Hash(filepath.Join(dir, name))
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
}

func TestCoverStore_ConcurrentSaves(t *testing.T) {
	s := NewCoverStore()
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir := t.TempDir()
			_, err := s.Save(dir, []byte("data"), ".jpg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
