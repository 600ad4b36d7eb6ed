// Package images stores book cover art and computes BlurHash placeholders.
package images

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// coverBase is the file name stem of every stored cover.
const coverBase = "cover"

// DefaultCoverExt is used when a cover source has no usable extension.
const DefaultCoverExt = ".jpg"

// CoverStore writes covers into a book's own directory as cover{ext}.
// Safe for concurrent use.
type CoverStore struct {
	mu sync.Mutex
}

// NewCoverStore creates a CoverStore.
func NewCoverStore() *CoverStore {
	return &CoverStore{}
}

// CoverName returns the stored file name for a source extension.
func CoverName(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return coverBase + DefaultCoverExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return coverBase + ext
}

// ExtForData sniffs image bytes and returns a file extension.
func ExtForData(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return DefaultCoverExt
	}
}

// Save writes data as the book's cover and returns the file name.
// Covers stored under another extension are removed.
func (s *CoverStore) Save(bookDir string, data []byte, ext string) (string, error) {
	if bookDir == "" {
		return "", fmt.Errorf("book directory cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := CoverName(ext)
	s.removeOthers(bookDir, name)

	if err := os.WriteFile(filepath.Join(bookDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write cover: %w", err)
	}
	return name, nil
}

// Copy copies srcPath into the book directory, keeping its extension.
func (s *CoverStore) Copy(bookDir, srcPath string) (string, error) {
	src, err := os.Open(srcPath) //#nosec G304 -- path comes from an extracted submission
	if err != nil {
		return "", fmt.Errorf("open cover source: %w", err)
	}
	defer src.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	name := CoverName(filepath.Ext(srcPath))
	s.removeOthers(bookDir, name)

	dst, err := os.Create(filepath.Join(bookDir, name))
	if err != nil {
		return "", fmt.Errorf("create cover: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy cover: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close cover: %w", err)
	}
	return name, nil
}

// Find returns the path of the book's stored cover.
func (s *CoverStore) Find(bookDir string) (string, bool) {
	matches, _ := filepath.Glob(filepath.Join(bookDir, coverBase+".*")) //nolint:errcheck // pattern is constant
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// Hash computes the SHA256 of a stored cover for ETag validation.
func (s *CoverStore) Hash(path string) (string, error) {
	f, err := os.Open(path) //#nosec G304 -- path is inside the book directory
	if err != nil {
		return "", fmt.Errorf("open cover: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash cover: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func (s *CoverStore) removeOthers(bookDir, keep string) {
	matches, _ := filepath.Glob(filepath.Join(bookDir, coverBase+".*")) //nolint:errcheck // pattern is constant
	for _, m := range matches {
		if filepath.Base(m) != keep {
			_ = os.Remove(m)
		}
	}
}
