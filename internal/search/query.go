package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string
	// Types restricts results to these document types; empty means all.
	Types  []string
	BookID string

	Limit  int
	Offset int

	// SortBy is relevance, name, recent or order; SortOrder is asc or desc.
	SortBy    string
	SortOrder string

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets []FacetCount `json:"facets,omitempty"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         string            `json:"id"`
	Type       DocType           `json:"type"`
	Score      float64           `json:"score"`
	BookID     string            `json:"book_id"`
	ChapterID  string            `json:"chapter_id,omitempty"`
	Name       string            `json:"name"`
	BookTitle  string            `json:"book_title,omitempty"`
	Author     string            `json:"author,omitempty"`
	Order      int               `json:"order,omitempty"`
	Duration   float64           `json:"duration,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("type", bleve.NewFacetRequest("type", 5))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("text")
	}

	searchRequest.Fields = []string{
		"type", "book_id", "chapter_id", "name", "book_title", "author", "order", "duration",
	}

	res, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}
	for _, match := range res.Hits {
		result.Hits = append(result.Hits, hitFromMatch(match))
	}
	if facet, ok := res.Facets["type"]; ok && facet.Terms != nil {
		for _, term := range facet.Terms.Terms() {
			result.Facets = append(result.Facets, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return result, nil
}

// hitFromMatch reads the stored fields of one match. Numbers come back
// from Bleve as float64.
func hitFromMatch(match *bsearch.DocumentMatch) SearchHit {
	str := func(field string) string {
		v, _ := match.Fields[field].(string)
		return v
	}
	hit := SearchHit{
		ID:        match.ID,
		Score:     match.Score,
		Type:      DocType(str("type")),
		BookID:    str("book_id"),
		ChapterID: str("chapter_id"),
		Name:      str("name"),
		BookTitle: str("book_title"),
		Author:    str("author"),
	}
	if order, ok := match.Fields["order"].(float64); ok {
		hit.Order = int(order)
	}
	hit.Duration, _ = match.Fields["duration"].(float64)

	for field, fragments := range match.Fragments {
		if len(fragments) == 0 {
			continue
		}
		if hit.Highlights == nil {
			hit.Highlights = make(map[string]string, len(match.Fragments))
		}
		hit.Highlights[field] = fragments[0]
	}
	return hit
}

// buildSearchQuery constructs the Bleve query from params.
//
// Titles outrank body text: a chapter whose title matches should surface
// ahead of one that only mentions the phrase.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("author")
		authorMatch.SetBoost(1.5)

		phrase := bleve.NewMatchPhraseQuery(q)
		phrase.SetField("text")
		phrase.SetBoost(2.0)

		textMatch := bleve.NewMatchQuery(q)
		textMatch.SetField("text")

		textQueries := []query.Query{nameMatch, authorMatch, phrase, textMatch}

		// Fuzzy and prefix only help single Latin words.
		if !strings.ContainsAny(q, " \t") && isASCII(q) {
			fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
			fuzzy.SetFuzziness(1)
			fuzzy.SetField("name")
			fuzzy.SetBoost(0.8)
			textQueries = append(textQueries, fuzzy)

			if len(q) >= 2 {
				prefix := bleve.NewPrefixQuery(strings.ToLower(q))
				prefix.SetField("name")
				prefix.SetBoost(0.5)
				textQueries = append(textQueries, prefix)
			}
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("type")
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	if params.BookID != "" {
		bq := bleve.NewTermQuery(params.BookID)
		bq.SetField("book_id")
		queries = append(queries, bq)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// sortFields maps SortBy values to Bleve sort keys in ascending order.
var sortFields = map[string][]string{
	"name":   {"name"},
	"title":  {"name"},
	"recent": {"created_at"},
	"order":  {"book_id", "order"},
}

// addSorting orders results by params.SortBy. Unknown values sort by
// relevance. "order" keeps a book's chapters together and only reverses
// the chapter order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	fields, ok := sortFields[params.SortBy]
	if !ok {
		req.SortBy([]string{"-_score"})
		return
	}
	desc := params.SortOrder == "desc"
	if params.SortBy == "recent" {
		desc = params.SortOrder != "asc"
	}
	keys := make([]string, len(fields))
	copy(keys, fields)
	if desc {
		last := len(keys) - 1
		keys[last] = "-" + keys[last]
	}
	req.SortBy(keys)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
