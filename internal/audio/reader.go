// Package audio reads container metadata from chapter audio files without
// decoding samples.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/simonhull/audiometa"
)

// DurationReader returns an audio file's duration in seconds.
type DurationReader interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// ArtworkReader returns the first embedded picture of an audio file, or nil
// when there is none.
type ArtworkReader interface {
	Artwork(ctx context.Context, path string) ([]byte, error)
}

// Reader is both collaborators in one.
type Reader interface {
	DurationReader
	ArtworkReader
}

// defaultTimeout bounds a single header read.
const defaultTimeout = 30 * time.Second

// MetaReader reads headers with audiometa.
type MetaReader struct {
	timeout time.Duration
}

// NewMetaReader creates a reader. A zero timeout uses 30s.
func NewMetaReader(timeout time.Duration) *MetaReader {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &MetaReader{timeout: timeout}
}

func (r *MetaReader) open(ctx context.Context, path string) (*audiometa.File, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("open audio %s: %w", path, err)
	}
	return file, cancel, nil
}

// Duration implements DurationReader.
func (r *MetaReader) Duration(ctx context.Context, path string) (float64, error) {
	file, cancel, err := r.open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer file.Close() //nolint:errcheck // read-only handle

	return file.Audio.Duration.Seconds(), nil
}

// Artwork implements ArtworkReader.
func (r *MetaReader) Artwork(ctx context.Context, path string) ([]byte, error) {
	file, cancel, err := r.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer file.Close() //nolint:errcheck // read-only handle

	artworks, err := file.ExtractArtwork()
	if err != nil {
		return nil, fmt.Errorf("extract artwork: %w", err)
	}
	if len(artworks) == 0 {
		return nil, nil
	}
	return artworks[0].Data, nil
}

// DurationOrZero returns the duration, or 0 when the header cannot be read.
// Unreadable audio does not fail ingestion. A nil reader always yields 0.
func DurationOrZero(ctx context.Context, r DurationReader, path string, logger *slog.Logger) float64 {
	if r == nil {
		return 0
	}
	d, err := r.Duration(ctx, path)
	if err != nil {
		if logger != nil {
			logger.Warn("audio duration unavailable", "path", path, "error", err)
		}
		return 0
	}
	return d
}
