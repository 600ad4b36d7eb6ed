package service

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/epub"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/id"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/media/images"
	"github.com/listenupapp/listenup-ingest/internal/router"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
	"github.com/listenupapp/listenup-ingest/internal/validation"
)

// maxManuscriptBytes bounds text files read into memory.
const maxManuscriptBytes = 64 << 20

// IngestRequest is one submission: a file on local disk or inline text.
type IngestRequest struct {
	Title  string `json:"title" validate:"max=500"`
	Author string `json:"author" validate:"max=500"`
	Voice  string `json:"voice" validate:"omitempty,voice"`
	// FilePath is the submitted file (upload temp file or inbox drop).
	FilePath string `json:"-"`
	// FileName is the client-side name; its extension selects the decoder.
	FileName    string `json:"file_name" validate:"max=255"`
	ContentType string `json:"-"`
	Text        string `json:"-"`
	// CoverPath is an optional uploaded cover image.
	CoverPath string `json:"-"`
}

// IngestResult describes what a submission became.
type IngestResult struct {
	Book  *domain.Book
	Route router.Route
	// Job is set for synthesis submissions, which finish in the background.
	Job *domain.SynthesisJob
	// Dropped lists archive chapter ids missing one of their three files.
	Dropped []string
	Pairing *epub.Pairing
}

// IngestService routes submissions to their pipeline. Archive and EPUB
// submissions complete within the call and leave nothing behind on
// failure; manuscripts are handed to the SynthesisService.
type IngestService struct {
	router     *router.Router
	normalizer *archive.Normalizer
	ingester   *epub.Ingester
	covers     *images.Processor
	synthesis  *SynthesisService
	tracker    *StatusTracker
	search     *SearchService
	validator  *validation.Validator
	booksPath  string
	logger     *slog.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	r *router.Router,
	normalizer *archive.Normalizer,
	ingester *epub.Ingester,
	covers *images.Processor,
	synthesisService *SynthesisService,
	tracker *StatusTracker,
	searchService *SearchService,
	booksPath string,
	logger *slog.Logger,
) *IngestService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IngestService{
		router:     r,
		normalizer: normalizer,
		ingester:   ingester,
		covers:     covers,
		synthesis:  synthesisService,
		tracker:    tracker,
		search:     searchService,
		validator:  validation.New(),
		booksPath:  booksPath,
		logger:     logger,
	}
}

// Submit ingests one submission.
func (s *IngestService) Submit(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.FilePath != "" && strings.TrimSpace(req.Text) != "" {
		return nil, errors.Validation("provide either a file or text, not both")
	}
	if req.FilePath == "" && strings.TrimSpace(req.Text) == "" {
		return nil, errors.ValidationWithDetails("validation failed", map[string]string{"file": "file or text is required"})
	}

	sub, closeFn, err := s.open(req)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	decision, err := s.router.Detect(sub)
	if err != nil {
		return nil, err
	}
	s.logger.Info("submission routed",
		slog.String("route", string(decision.Route)),
		slog.String("file", req.FileName),
		slog.Int("entries", decision.Entries),
	)

	switch decision.Route {
	case router.RouteArchive:
		return s.ingestArchive(ctx, req, sub.Archive)
	case router.RouteEPUB:
		return s.ingestEPUB(ctx, req, sub.Archive)
	case router.RouteSynthesis:
		if s.synthesis == nil {
			return nil, errors.Synthesis("synthesis is disabled: edge-tts or ffmpeg is unavailable")
		}
		book, job, err := s.synthesis.Submit(ctx, SynthesisRequest{
			Title:  s.title(req, ""),
			Author: req.Author,
			Text:   sub.Text,
			Voice:  req.Voice,
		})
		if err != nil {
			return nil, err
		}
		return &IngestResult{Book: book, Route: decision.Route, Job: job}, nil
	default:
		return nil, errors.Internalf("unhandled route %q", decision.Route)
	}
}

// open turns the request into a router submission. Text files are decoded
// and cleaned here; anything else must be a zip container.
func (s *IngestService) open(req IngestRequest) (router.Submission, func(), error) {
	noop := func() {}
	if req.FilePath == "" {
		return router.Submission{Text: textseg.CleanCopyright(req.Text)}, noop, nil
	}

	switch ext := strings.ToLower(filepath.Ext(s.fileName(req))); ext {
	case ".txt", ".md", ".markdown":
		text, err := readManuscript(req.FilePath, req.ContentType)
		if err != nil {
			return router.Submission{}, noop, err
		}
		if ext == ".txt" {
			text = textseg.CleanCopyright(text)
		} else {
			text = textseg.Clean(text)
		}
		return router.Submission{Text: text}, noop, nil
	default:
		zr, err := archive.OpenZip(req.FilePath)
		if err != nil {
			return router.Submission{}, noop, err
		}
		return router.Submission{Archive: &zr.Reader}, func() { _ = zr.Close() }, nil
	}
}

func readManuscript(path, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorage, "open manuscript")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxManuscriptBytes+1))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorage, "read manuscript")
	}
	if len(data) > maxManuscriptBytes {
		return "", errors.Validation("manuscript is too large")
	}
	text, err := textseg.DecodeManuscript(data, contentType)
	if err != nil {
		return "", errors.Format("manuscript encoding is not supported").WithCause(err)
	}
	return text, nil
}

func (s *IngestService) ingestArchive(ctx context.Context, req IngestRequest, zr *zip.Reader) (*IngestResult, error) {
	bookID, dir, err := s.newBookDir()
	if err != nil {
		return nil, err
	}

	res, err := s.normalizer.Normalize(ctx, zr, dir)
	if err != nil {
		return nil, s.rollback(dir, err)
	}
	if err := manifest.Save(dir, res.Manifest); err != nil {
		return nil, s.rollback(dir, err)
	}

	book := &domain.Book{
		ID:            bookID,
		Title:         s.title(req, res.Manifest.Title),
		Author:        req.Author,
		Type:          domain.BookTypeText,
		StoragePath:   dir,
		TotalSegments: res.TotalSegments,
	}
	book.ApplyManifest(res.Manifest)

	cover := s.uploadedCover(req, dir)
	if cover == nil && res.FirstAudio != "" && s.covers != nil {
		cover, err = s.covers.FromAudio(ctx, dir, res.FirstAudio)
		if err != nil {
			s.logger.Debug("no embedded artwork", slog.String("book_id", bookID), slog.Any("error", err))
		}
	}
	applyCover(book, cover)

	if err := s.tracker.Register(ctx, book); err != nil {
		return nil, s.rollback(dir, err)
	}
	s.index(ctx, book, res.Manifest)

	return &IngestResult{Book: book, Route: router.RouteArchive, Dropped: res.Dropped}, nil
}

func (s *IngestService) ingestEPUB(ctx context.Context, req IngestRequest, zr *zip.Reader) (*IngestResult, error) {
	bookID, dir, err := s.newBookDir()
	if err != nil {
		return nil, err
	}

	res, err := s.ingester.Ingest(ctx, zr, dir)
	if err != nil {
		return nil, s.rollback(dir, err)
	}
	if err := manifest.SaveStructure(dir, res.Structure); err != nil {
		return nil, s.rollback(dir, err)
	}
	if err := manifest.Save(dir, res.Manifest); err != nil {
		return nil, s.rollback(dir, err)
	}

	author := req.Author
	if author == "" {
		author = res.Structure.Metadata.Creator
	}
	book := &domain.Book{
		ID:            bookID,
		Title:         s.title(req, res.Structure.Metadata.Title),
		Author:        author,
		Type:          domain.BookTypeEPUB,
		StoragePath:   dir,
		EpubStructure: res.Structure,
		TotalSegments: res.TotalSegments,
	}
	book.ApplyManifest(res.Manifest)

	cover := s.uploadedCover(req, dir)
	if cover == nil {
		cover = res.Cover
	}
	applyCover(book, cover)

	if err := s.tracker.Register(ctx, book); err != nil {
		return nil, s.rollback(dir, err)
	}
	s.index(ctx, book, res.Manifest)

	pairing := res.Pairing
	return &IngestResult{Book: book, Route: router.RouteEPUB, Pairing: &pairing}, nil
}

func (s *IngestService) newBookDir() (string, string, error) {
	bookID, err := id.NewBookID()
	if err != nil {
		return "", "", errors.Wrap(err, errors.CodeInternal, "generate book id")
	}
	return bookID, filepath.Join(s.booksPath, bookID), nil
}

// rollback removes a partially written book directory.
func (s *IngestService) rollback(dir string, cause error) error {
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Error("failed to remove partial book directory", slog.String("path", dir), slog.Any("error", err))
	}
	return cause
}

func (s *IngestService) uploadedCover(req IngestRequest, dir string) *images.Cover {
	if req.CoverPath == "" || s.covers == nil {
		return nil
	}
	cover, err := s.covers.FromFile(dir, req.CoverPath)
	if err != nil {
		s.logger.Warn("failed to store uploaded cover", slog.Any("error", err))
		return nil
	}
	return cover
}

func applyCover(book *domain.Book, cover *images.Cover) {
	if cover == nil {
		return
	}
	book.CoverPath = cover.File
	book.CoverBlurHash = cover.BlurHash
}

func (s *IngestService) index(ctx context.Context, book *domain.Book, m *domain.Manifest) {
	if err := s.search.IndexBook(ctx, book, m); err != nil {
		s.logger.Warn("failed to index book", slog.String("book_id", book.ID), slog.Any("error", err))
	}
}

func (s *IngestService) fileName(req IngestRequest) string {
	if req.FileName != "" {
		return req.FileName
	}
	return req.FilePath
}

// title picks the submitted title, then the document's own, then the file
// name without extension.
func (s *IngestService) title(req IngestRequest, fromDocument string) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	if t := strings.TrimSpace(fromDocument); t != "" {
		return t
	}
	return TitleFromFileName(s.fileName(req))
}

// TitleFromFileName derives a display title from a file name.
func TitleFromFileName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "Untitled"
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSpace(strings.NewReplacer("_", " ").Replace(stem))
	if stem == "" {
		return "Untitled"
	}
	return stem
}
