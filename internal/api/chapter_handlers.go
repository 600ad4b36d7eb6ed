package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/http/response"
)

func (s *Server) registerChapterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getChapterAlignment",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/chapters/{chapterID}/alignment",
		Summary:     "Get chapter alignment",
		Description: "Returns the timed text segments of one chapter",
		Tags:        []string{"Chapters"},
	}, s.handleGetAlignment)

	huma.Register(s.api, huma.Operation{
		OperationID: "getChapterText",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/chapters/{chapterID}/text",
		Summary:     "Get chapter text",
		Description: "Returns the plain text of one chapter",
		Tags:        []string{"Chapters"},
	}, s.handleGetChapterText)
}

// ChapterInput identifies one chapter of a book.
type ChapterInput struct {
	ID        string `path:"id" doc:"Book ID"`
	ChapterID string `path:"chapterID" doc:"Chapter ID, e.g. 001"`
}

// AlignmentResponse is a chapter's alignment.
type AlignmentResponse struct {
	ChapterID string           `json:"chapter_id" doc:"Chapter ID"`
	Segments  domain.Alignment `json:"segments" doc:"Timed text segments in seconds"`
	Duration  float64          `json:"duration" doc:"End of the last segment"`
}

// AlignmentOutput wraps the alignment for Huma.
type AlignmentOutput struct {
	Body AlignmentResponse
}

// ChapterTextResponse is a chapter's text.
type ChapterTextResponse struct {
	ChapterID string `json:"chapter_id" doc:"Chapter ID"`
	Text      string `json:"text" doc:"Chapter text"`
}

// ChapterTextOutput wraps the chapter text for Huma.
type ChapterTextOutput struct {
	Body ChapterTextResponse
}

func (s *Server) handleGetAlignment(ctx context.Context, input *ChapterInput) (*AlignmentOutput, error) {
	alignment, err := s.services.Book.Alignment(ctx, input.ID, input.ChapterID)
	if err != nil {
		return nil, err
	}
	if alignment == nil {
		alignment = domain.Alignment{}
	}
	return &AlignmentOutput{Body: AlignmentResponse{
		ChapterID: input.ChapterID,
		Segments:  alignment,
		Duration:  alignment.LastEnd(),
	}}, nil
}

func (s *Server) handleGetChapterText(ctx context.Context, input *ChapterInput) (*ChapterTextOutput, error) {
	text, err := s.services.Book.ChapterText(ctx, input.ID, input.ChapterID)
	if err != nil {
		return nil, err
	}
	return &ChapterTextOutput{Body: ChapterTextResponse{ChapterID: input.ChapterID, Text: text}}, nil
}

// handleStreamAudio streams a chapter's audio with HTTP Range support for seeking.
// GET /api/v1/books/{id}/chapters/{chapterID}/audio
func (s *Server) handleStreamAudio(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	chapterID := chi.URLParam(r, "chapterID")

	if !isSafeID(bookID) || !isSafeID(chapterID) {
		response.BadRequest(w, "Book ID and chapter ID are required", s.logger)
		return
	}

	path, err := s.services.Book.AudioPath(r.Context(), bookID, chapterID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Content-Type", audioContentType(path))
	// Audio files never change once a book is ready.
	w.Header().Set("Cache-Control", CacheOneDayPrivate)

	// http.ServeFile handles Range, Content-Range and Last-Modified.
	http.ServeFile(w, r, path)
}

// handleServeCover serves a book's cover image.
// GET /api/v1/books/{id}/cover
func (s *Server) handleServeCover(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	if !isSafeID(bookID) {
		response.BadRequest(w, "Book ID is required", s.logger)
		return
	}

	path, err := s.services.Book.CoverPath(r.Context(), bookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Cache-Control", CacheNoStore)
	http.ServeFile(w, r, path)
}
