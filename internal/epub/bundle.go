package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/audio"
	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/media/images"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

// DocumentDir is where the EPUB is unpacked inside a book directory.
// EpubChapter.FilePath is relative to it.
const DocumentDir = "epub"

// FindDocument returns the first .epub entry of a submission archive.
func FindDocument(zr *zip.Reader) (*zip.File, bool) {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || archive.IsSystemArtifact(f.Name) {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".epub") {
			return f, true
		}
	}
	return nil, false
}

// IsDocument reports whether the archive is itself an EPUB.
func IsDocument(zr *zip.Reader) bool {
	for _, f := range zr.File {
		switch f.Name {
		case ContainerPath:
			return true
		case "mimetype":
			rc, err := f.Open()
			if err != nil {
				continue
			}
			head := make([]byte, 64)
			n, _ := io.ReadFull(rc, head)
			rc.Close()
			if strings.HasPrefix(strings.TrimSpace(string(head[:n])), "application/epub+zip") {
				return true
			}
		}
	}
	return false
}

// Result is the outcome of ingesting one EPUB submission.
type Result struct {
	Structure     *domain.EpubStructure
	Manifest      *domain.Manifest
	Cover         *images.Cover
	Pairing       Pairing
	TotalSegments int
}

// Ingester turns an EPUB submission into a book directory. A submission is
// an archive holding one .epub plus ch{id}_align.json files, optionally
// with ch{id}_audio.* and ch{id}_text.txt.
type Ingester struct {
	parser    *Parser
	patterns  *archive.Patterns
	durations audio.DurationReader
	covers    *images.Processor
	estimator textseg.Estimator
	strict    bool
	logger    *slog.Logger
}

// NewIngester creates an Ingester. strict turns a chapter/alignment count
// mismatch into an error.
func NewIngester(patterns *archive.Patterns, durations audio.DurationReader, covers *images.Processor, strict bool, logger *slog.Logger) *Ingester {
	if patterns == nil {
		patterns = archive.DefaultPatterns()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		parser:    NewParser(logger),
		patterns:  patterns,
		durations: durations,
		covers:    covers,
		estimator: textseg.DefaultEstimator(),
		strict:    strict,
		logger:    logger,
	}
}

// IngestFile ingests the submission archive at zipPath into outDir.
func (in *Ingester) IngestFile(ctx context.Context, zipPath, outDir string) (*Result, error) {
	zr, err := archive.OpenZip(zipPath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return in.Ingest(ctx, &zr.Reader, outDir)
}

// companion holds the outer archive's files for one chapter id.
type companion struct {
	alignment *zip.File
	audio     *zip.File
	audioExt  string
	text      *zip.File
}

// Ingest parses the EPUB, pairs content chapters with alignment files by
// position, and writes the unpacked document, chapter files and cover into
// outDir. Nothing is written until parsing and pairing succeed.
func (in *Ingester) Ingest(ctx context.Context, zr *zip.Reader, outDir string) (*Result, error) {
	docZip, err := in.openDocument(zr)
	if err != nil {
		return nil, err
	}

	doc, err := in.parser.Parse(docZip)
	if err != nil {
		return nil, err
	}

	companions, alignIDs := in.companions(zr)

	s := doc.Structure()
	pairing, err := Pair(s, alignIDs, in.strict)
	if err != nil {
		return nil, err
	}
	if pairing.Mismatch() {
		in.logger.Warn("content chapters and alignment files differ in number; pairing by position",
			"content_chapters", pairing.Eligible,
			"alignment_files", pairing.Alignments,
			"paired", pairing.Paired,
		)
	}
	if pairing.Paired == 0 {
		return nil, errors.NoChaptersFound("no content chapter could be paired with an alignment file")
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "create book directory")
	}
	if err := unpack(docZip, filepath.Join(outDir, DocumentDir)); err != nil {
		return nil, err
	}

	res := &Result{Structure: s, Pairing: pairing}
	for i := range s.Chapters {
		ch := &s.Chapters[i]
		if !ch.HasAudio {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := in.writeChapter(ctx, docZip, companions[ch.ID], ch, outDir)
		if err != nil {
			return nil, err
		}
		res.TotalSegments += n
	}

	res.Cover = in.storeCover(docZip, doc, outDir)
	res.Manifest = manifest.FromStructure(s, domain.ManifestTypeEPUB)

	in.logger.Info("epub ingested",
		"title", s.Metadata.Title,
		"spine", len(s.Chapters),
		"paired", pairing.Paired,
		"duration", res.Manifest.TotalDuration,
	)
	return res, nil
}

func (in *Ingester) openDocument(zr *zip.Reader) (*zip.Reader, error) {
	if f, ok := FindDocument(zr); ok {
		data, err := archive.ReadEntry(f)
		if err != nil {
			return nil, err
		}
		docZip, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && docZip != nil) {
			return nil, errors.Format("EPUB document is not a valid zip container").
				WithDetails(errors.ReasonCorruptArchive).
				WithCause(err)
		}
		return docZip, nil
	}
	if IsDocument(zr) {
		return zr, nil
	}
	return nil, errors.Format("submission contains no EPUB document").WithDetails(errors.ReasonUnrecognized)
}

// companions indexes the outer archive's chapter files and returns the
// alignment ids sorted by file name.
func (in *Ingester) companions(zr *zip.Reader) (map[string]*companion, []string) {
	byID := make(map[string]*companion)
	get := func(id string) *companion {
		c, ok := byID[id]
		if !ok {
			c = &companion{}
			byID[id] = c
		}
		return c
	}

	type alignFile struct{ base, id string }
	var aligns []alignFile

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || archive.IsSystemArtifact(f.Name) {
			continue
		}
		if id, ok := in.patterns.AlignmentID(f.Name); ok {
			if c := get(id); c.alignment == nil {
				c.alignment = f
				aligns = append(aligns, alignFile{base: path.Base(f.Name), id: id})
			}
			continue
		}
		id, kind, ext, ok := in.patterns.Match(f.Name)
		if !ok {
			continue
		}
		c := get(id)
		switch kind {
		case archive.KindAudio:
			if c.audio == nil {
				c.audio, c.audioExt = f, ext
			}
		case archive.KindText:
			if c.text == nil {
				c.text = f
			}
		}
	}

	sort.Slice(aligns, func(i, j int) bool { return aligns[i].base < aligns[j].base })
	ids := make([]string, len(aligns))
	for i, a := range aligns {
		ids[i] = a.id
	}
	return byID, ids
}

// writeChapter stores one paired chapter's files and fills in its duration.
// Returns the number of alignment entries.
func (in *Ingester) writeChapter(ctx context.Context, docZip *zip.Reader, c *companion, ch *domain.EpubChapter, outDir string) (int, error) {
	data, err := archive.ReadEntry(c.alignment)
	if err != nil {
		return 0, err
	}
	out, entries, err := archive.CanonicalAlignment(data)
	if err != nil {
		return 0, errors.Format("alignment file " + c.alignment.Name + " cannot be parsed").WithCause(err)
	}
	if err := writeFile(filepath.Join(outDir, ch.AlignmentFile), out); err != nil {
		return 0, err
	}

	if c.audio != nil {
		audioName, _, _ := archive.CanonicalNames(ch.ID, c.audioExt)
		audioPath := filepath.Join(outDir, audioName)
		if err := archive.ExtractEntry(c.audio, audioPath); err != nil {
			return 0, err
		}
		ch.AudioFile = audioName
		ch.Duration = audio.DurationOrZero(ctx, in.durations, audioPath, in.logger)
	} else {
		ch.AudioFile = ""
	}
	if ch.Duration == 0 {
		ch.Duration = entries.LastEnd()
	}
	ch.Duration = domain.Round2(ch.Duration)

	var text []byte
	if c.text != nil {
		if text, err = archive.ReadEntry(c.text); err != nil {
			return 0, err
		}
	} else {
		converted, err := ChapterText(docZip, ch.FilePath)
		if err != nil {
			in.logger.Warn("chapter text unavailable", "href", ch.Href, "error", err)
			ch.TextFile = ""
			return len(entries), nil
		}
		text = []byte(converted)
	}
	if err := writeFile(filepath.Join(outDir, ch.TextFile), text); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// storeCover copies the document's cover into the book directory. A missing
// or unreadable cover is logged, never fatal.
func (in *Ingester) storeCover(docZip *zip.Reader, doc *Document, outDir string) *images.Cover {
	if in.covers == nil {
		return nil
	}
	coverPath, ok := doc.CoverPath()
	if !ok {
		return nil
	}
	data, err := readHref(docZip, coverPath)
	if err != nil {
		in.logger.Warn("cover image missing from EPUB", "path", coverPath, "error", err)
		return nil
	}
	name := path.Base(coverPath)
	if path.Ext(name) == "" {
		name += images.DefaultCoverExt
	}
	cover, err := in.covers.FromBytes(outDir, data, name)
	if err != nil {
		in.logger.Warn("failed to store cover", "error", err)
		return nil
	}
	return cover
}

// unpack extracts the EPUB below dst. Entries escaping dst fail the whole
// submission.
func unpack(zr *zip.Reader, dst string) error {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		target, err := safeJoin(dst, f.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "create EPUB directory")
		}
		if err := archive.ExtractEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Format("EPUB entry escapes its directory: " + name).WithDetails(errors.ReasonCorruptArchive)
	}
	return filepath.Join(root, clean), nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.CodeStorage, "write %s", filepath.Base(path))
	}
	return nil
}
