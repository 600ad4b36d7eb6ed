package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/http/response"
	"github.com/listenupapp/listenup-ingest/internal/service"
)

// IngestResponse describes what a submission became.
type IngestResponse struct {
	Book            *domain.Book         `json:"book"`
	Route           string               `json:"route"`
	Job             *domain.SynthesisJob `json:"job,omitempty"`
	DroppedChapters []string             `json:"dropped_chapters,omitempty"`
	Pairing         *PairingSummary      `json:"pairing,omitempty"`
}

// PairingSummary reports how EPUB chapters lined up with alignment files.
type PairingSummary struct {
	ContentChapters int  `json:"content_chapters"`
	AlignmentFiles  int  `json:"alignment_files"`
	Paired          int  `json:"paired"`
	Mismatch        bool `json:"mismatch"`
}

// handleCreateBook accepts a multipart submission: a file (chapter bundle,
// EPUB bundle or manuscript) or a text field, plus optional title, author,
// voice and cover. Bundles are ingested within the request (201);
// manuscripts are queued for synthesis (202).
// POST /api/v1/books
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "Submission is too large", s.logger)
			return
		}
		response.BadRequest(w, "Expected a multipart form", s.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := service.IngestRequest{
		Title:  strings.TrimSpace(r.FormValue("title")),
		Author: strings.TrimSpace(r.FormValue("author")),
		Voice:  strings.TrimSpace(r.FormValue("voice")),
		Text:   r.FormValue("text"),
	}

	filePath, header, err := s.saveFormFile(r, "file")
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if filePath != "" {
		defer s.removeUpload(filePath)
		req.FilePath = filePath
		req.FileName = header.Filename
		req.ContentType = header.Header.Get("Content-Type")
	}

	coverPath, _, err := s.saveFormFile(r, "cover")
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if coverPath != "" {
		defer s.removeUpload(coverPath)
		req.CoverPath = coverPath
	}

	res, err := s.services.Ingest.Submit(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	body := IngestResponse{
		Book:            res.Book,
		Route:           string(res.Route),
		Job:             res.Job,
		DroppedChapters: res.Dropped,
	}
	if res.Pairing != nil {
		body.Pairing = &PairingSummary{
			ContentChapters: res.Pairing.Eligible,
			AlignmentFiles:  res.Pairing.Alignments,
			Paired:          res.Pairing.Paired,
			Mismatch:        res.Pairing.Mismatch(),
		}
	}

	if res.Job != nil {
		response.Accepted(w, body, s.logger)
		return
	}
	response.Created(w, body, s.logger)
}

// saveFormFile copies one uploaded part to a uniquely named file in the
// upload directory, keeping the client's extension. It returns an empty
// path when the field is absent.
func (s *Server) saveFormFile(r *http.Request, field string) (string, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", nil, err
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	dst, err := os.Create(path) //#nosec G304 -- name is a generated uuid
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		s.removeUpload(path)
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		s.removeUpload(path)
		return "", nil, err
	}
	return path, header, nil
}

func (s *Server) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove upload", "path", path, "error", err)
	}
}
