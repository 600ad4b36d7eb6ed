package images

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/listenupapp/listenup-ingest/internal/audio"
)

// Cover describes a stored cover.
type Cover struct {
	// File is the name inside the book directory, e.g. "cover.png".
	File     string
	Hash     string
	BlurHash string
}

// Processor stores covers from the three places a submission can carry one:
// an extracted EPUB image, an uploaded file, or artwork embedded in audio.
type Processor struct {
	store   *CoverStore
	artwork audio.ArtworkReader
	logger  *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(store *CoverStore, artwork audio.ArtworkReader, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		store:   store,
		artwork: artwork,
		logger:  logger,
	}
}

// FromFile copies an image file into the book directory.
func (p *Processor) FromFile(bookDir, srcPath string) (*Cover, error) {
	name, err := p.store.Copy(bookDir, srcPath)
	if err != nil {
		return nil, err
	}
	return p.finalize(bookDir, name)
}

// FromBytes stores uploaded image data. The extension comes from filename,
// or is sniffed from the data when filename has none.
func (p *Processor) FromBytes(bookDir string, data []byte, filename string) (*Cover, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ExtForData(data)
	}
	name, err := p.store.Save(bookDir, data, ext)
	if err != nil {
		return nil, err
	}
	return p.finalize(bookDir, name)
}

// FromAudio stores the first embedded picture of an audio file.
// Returns nil (no error) if the file has no embedded cover or no artwork
// reader is configured.
func (p *Processor) FromAudio(ctx context.Context, bookDir, audioPath string) (*Cover, error) {
	if p.artwork == nil {
		return nil, nil
	}
	data, err := p.artwork.Artwork(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract artwork: %w", err)
	}
	if len(data) == 0 {
		p.logger.Debug("no embedded cover found", "path", audioPath)
		return nil, nil
	}

	name, err := p.store.Save(bookDir, data, ExtForData(data))
	if err != nil {
		return nil, err
	}
	return p.finalize(bookDir, name)
}

// finalize hashes the stored cover. A cover that cannot be decoded keeps an
// empty BlurHash rather than failing the ingestion.
func (p *Processor) finalize(bookDir, name string) (*Cover, error) {
	path := filepath.Join(bookDir, name)

	hash, err := p.store.Hash(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cover hash: %w", err)
	}

	cover := &Cover{File: name, Hash: hash}
	if bh, err := ComputeBlurHash(path); err != nil {
		p.logger.Warn("blurhash unavailable", "path", path, "error", err)
	} else {
		cover.BlurHash = bh
	}

	p.logger.Debug("stored cover", "file", name, "hash", hash[:8]+"...")
	return cover, nil
}
