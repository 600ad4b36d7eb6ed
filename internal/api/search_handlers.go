package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-ingest/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search books",
		Description: "Full-text search across book titles, authors and chapter text",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching ingested books.
type SearchInput struct {
	Query     string `query:"q" required:"true" minLength:"1" maxLength:"200" doc:"Search query"`
	Types     string `query:"types" maxLength:"100" doc:"Comma-separated types to search (book,chapter). Omit for all."`
	BookID    string `query:"book_id" doc:"Restrict results to one book"`
	Limit     int    `query:"limit" minimum:"0" maximum:"100" doc:"Max results (default 20)"`
	Offset    int    `query:"offset" minimum:"0" doc:"Pagination offset (default 0)"`
	Sort      string `query:"sort" enum:"relevance,name,recent,order" doc:"Sort field (default relevance)"`
	Facets    bool   `query:"facets" doc:"Include type facets in response"`
	Highlight bool   `query:"highlight" doc:"Include highlighted fragments"`
}

// SearchHitResult contains a single search result (book or chapter).
type SearchHitResult struct {
	ID         string            `json:"id" doc:"Document ID"`
	Type       string            `json:"type" doc:"Type: book or chapter"`
	Score      float64           `json:"score" doc:"Search relevance score"`
	BookID     string            `json:"book_id" doc:"Book the document belongs to"`
	ChapterID  string            `json:"chapter_id,omitempty" doc:"Chapter ID (for chapters)"`
	Name       string            `json:"name" doc:"Book or chapter title"`
	BookTitle  string            `json:"book_title,omitempty" doc:"Book title (for chapters)"`
	Author     string            `json:"author,omitempty" doc:"Author name"`
	Order      int               `json:"order,omitempty" doc:"Chapter position (for chapters)"`
	Duration   float64           `json:"duration,omitempty" doc:"Duration in seconds"`
	Highlights map[string]string `json:"highlights,omitempty" doc:"Highlighted matches"`
}

// SearchResponse contains search results.
type SearchResponse struct {
	Query  string              `json:"query" doc:"Original search query"`
	Total  int64               `json:"total" doc:"Total matches"`
	TookMs int64               `json:"took_ms" doc:"Search duration in milliseconds"`
	Hits   []SearchHitResult   `json:"hits" doc:"Search results"`
	Facets []search.FacetCount `json:"facets,omitempty" doc:"Type facet counts"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	params := search.DefaultSearchParams()
	params.Query = input.Query
	params.Types = parseTypes(input.Types)
	params.BookID = input.BookID
	params.Offset = input.Offset
	params.IncludeFacets = input.Facets
	params.Highlight = input.Highlight
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		s.logger.Error("Search failed", "error", err, "query", input.Query)
		return nil, err
	}

	s.logger.Debug("Search completed",
		"query", input.Query,
		"total", result.Total,
		"hits", len(result.Hits),
		"took_ms", result.TookMs,
	)

	resp := SearchResponse{
		Query:  input.Query,
		Total:  int64(result.Total), //nolint:gosec // Safe: total count won't exceed int64
		TookMs: result.TookMs,
		Hits:   make([]SearchHitResult, 0, len(result.Hits)),
		Facets: result.Facets,
	}
	for i := range result.Hits {
		hit := &result.Hits[i]
		resp.Hits = append(resp.Hits, SearchHitResult{
			ID:         hit.ID,
			Type:       string(hit.Type),
			Score:      hit.Score,
			BookID:     hit.BookID,
			ChapterID:  hit.ChapterID,
			Name:       hit.Name,
			BookTitle:  hit.BookTitle,
			Author:     hit.Author,
			Order:      hit.Order,
			Duration:   hit.Duration,
			Highlights: hit.Highlights,
		})
	}

	return &SearchOutput{Body: resp}, nil
}
