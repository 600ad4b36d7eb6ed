package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/listenupapp/listenup-ingest/internal/audio"
	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

// Result is the outcome of normalizing one bundle.
type Result struct {
	Manifest      *domain.Manifest
	TotalSegments int
	// Dropped lists chapter ids that lacked one of the three files.
	Dropped []string
	// FirstAudio is the stored path of the first chapter's audio, used as a
	// cover art source.
	FirstAudio string
}

// Normalizer turns a chapter bundle into canonical chapter files plus a
// manifest.
type Normalizer struct {
	patterns  *Patterns
	durations audio.DurationReader
	estimator textseg.Estimator
	logger    *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil patterns uses DefaultPatterns.
func NewNormalizer(patterns *Patterns, durations audio.DurationReader, logger *slog.Logger) *Normalizer {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		patterns:  patterns,
		durations: durations,
		estimator: textseg.DefaultEstimator(),
		logger:    logger,
	}
}

// Patterns returns the naming conventions in use.
func (n *Normalizer) Patterns() *Patterns {
	return n.patterns
}

// OpenZip opens an archive, reporting unreadable files as corrupt archives.
// Entries with non-local names are tolerated here; callers never use entry
// names as output paths without checking them.
func OpenZip(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return nil, errors.Format("archive cannot be read").
			WithDetails(errors.ReasonCorruptArchive).
			WithCause(err)
	}
	return zr, nil
}

// EntryNames lists the file entries of an archive, skipping directories and
// system artifacts.
func EntryNames(zr *zip.Reader) []string {
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") || IsSystemArtifact(f.Name) {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// NormalizeFile normalizes the archive at zipPath into outDir.
func (n *Normalizer) NormalizeFile(ctx context.Context, zipPath, outDir string) (*Result, error) {
	zr, err := OpenZip(zipPath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return n.Normalize(ctx, &zr.Reader, outDir)
}

// Normalize writes every complete chapter triple of zr into outDir under its
// canonical names and builds a "txt" manifest. Incomplete chapters are
// dropped without writing anything for them. Only canonical names are
// written, so archive entry paths never reach the filesystem.
func (n *Normalizer) Normalize(ctx context.Context, zr *zip.Reader, outDir string) (*Result, error) {
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	triples, dropped := n.patterns.Scan(EntryNames(zr))
	if len(dropped) > 0 {
		n.logger.Info("dropping incomplete chapters", "ids", dropped)
	}
	if len(triples) == 0 {
		return nil, errors.NoChaptersFound("archive contains no complete chapter triples")
	}
	if MixedWidths(triples) {
		n.logger.Warn("chapter ids have mixed digit widths; ordering is lexicographic",
			"first", triples[0].ID, "last", triples[len(triples)-1].ID)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "create book directory")
	}

	res := &Result{
		Manifest: &domain.Manifest{Type: domain.ManifestTypeText},
		Dropped:  dropped,
	}

	for i, t := range triples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		audioName, textName, alignName := CanonicalNames(t.ID, t.AudioExt)
		audioPath := filepath.Join(outDir, audioName)

		if err := extractTo(entries[t.Audio], audioPath); err != nil {
			return nil, err
		}
		text, err := readEntry(entries[t.Text])
		if err != nil {
			return nil, err
		}
		if err := writeFile(filepath.Join(outDir, textName), text); err != nil {
			return nil, err
		}
		segments, err := n.canonicalAlignment(entries[t.Alignment], filepath.Join(outDir, alignName))
		if err != nil {
			return nil, err
		}
		res.TotalSegments += segments

		dur := audio.DurationOrZero(ctx, n.durations, audioPath, n.logger)
		res.Manifest.Chapters = append(res.Manifest.Chapters, domain.ManifestChapter{
			ID:            t.ID,
			Order:         i + 1,
			Duration:      domain.Round2(dur),
			AudioFile:     audioName,
			TextFile:      textName,
			AlignmentFile: alignName,
			Words:         n.estimator.Analyze(string(text)).TotalWords,
		})
		if i == 0 {
			res.FirstAudio = audioPath
		}
	}

	res.Manifest.Recompute()

	n.logger.Info("archive normalized",
		"chapters", len(res.Manifest.Chapters),
		"dropped", len(dropped),
		"segments", res.TotalSegments,
		"duration", res.Manifest.TotalDuration,
	)
	return res, nil
}

// canonicalAlignment copies an alignment file in canonical form and returns
// its entry count. A document that cannot be parsed is copied as is and
// counts zero.
func (n *Normalizer) canonicalAlignment(f *zip.File, dst string) (int, error) {
	data, err := readEntry(f)
	if err != nil {
		return 0, err
	}

	out, entries, err := CanonicalAlignment(data)
	if err != nil {
		n.logger.Warn("alignment not parseable, copying unchanged", "file", f.Name, "error", err)
		return 0, writeFile(dst, data)
	}
	if err := entries.Validate(); err != nil {
		n.logger.Warn("alignment out of order", "file", f.Name, "error", err)
	}
	return len(entries), writeFile(dst, out)
}

// CanonicalAlignment decodes an alignment document in either shape and
// returns the bytes to store: array documents unchanged, wrapped
// {"segments": [...]} documents re-encoded as a plain array.
func CanonicalAlignment(data []byte) ([]byte, domain.Alignment, error) {
	var doc domain.AlignmentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse alignment: %w", err)
	}
	if !doc.Wrapped {
		return data, doc.Entries, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("encode alignment: %w", err)
	}
	return out, doc.Entries, nil
}

// ReadEntry reads a whole archive entry.
func ReadEntry(f *zip.File) ([]byte, error) {
	return readEntry(f)
}

// ExtractEntry copies an archive entry to dst.
func ExtractEntry(f *zip.File, dst string) error {
	return extractTo(f, dst)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Format("archive entry cannot be read").
			WithDetails(errors.ReasonCorruptArchive).
			WithCause(fmt.Errorf("%s: %w", f.Name, err))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Format("archive entry cannot be read").
			WithDetails(errors.ReasonCorruptArchive).
			WithCause(fmt.Errorf("%s: %w", f.Name, err))
	}
	return data, nil
}

func extractTo(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Format("archive entry cannot be read").
			WithDetails(errors.ReasonCorruptArchive).
			WithCause(fmt.Errorf("%s: %w", f.Name, err))
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, errors.CodeStorage, "create %s", filepath.Base(dst))
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return errors.Format("archive entry cannot be read").
			WithDetails(errors.ReasonCorruptArchive).
			WithCause(fmt.Errorf("%s: %w", f.Name, err))
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.CodeStorage, "write %s", filepath.Base(dst))
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.CodeStorage, "write %s", filepath.Base(path))
	}
	return nil
}
