// Package router decides which ingestion pipeline handles a submission.
package router

import (
	"archive/zip"
	"strings"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/epub"
	"github.com/listenupapp/listenup-ingest/internal/errors"
)

// Route names an ingestion pipeline.
type Route string

const (
	RouteEPUB      Route = "epub"
	RouteArchive   Route = "archive"
	RouteSynthesis Route = "synthesis"
)

// Submission is what a client uploaded. Archive is nil when no archive was
// sent.
type Submission struct {
	Archive *zip.Reader
	Text    string
}

// Decision is the chosen route and what triggered it.
type Decision struct {
	Route Route
	// Document is the embedded e-book entry, empty when the archive itself
	// is the e-book.
	Document string
	// Entries is the number of archive entries considered.
	Entries int
}

// Router inspects submissions. It never writes anything.
type Router struct {
	patterns *archive.Patterns
}

// New creates a Router using the given naming conventions.
func New(patterns *archive.Patterns) *Router {
	if patterns == nil {
		patterns = archive.DefaultPatterns()
	}
	return &Router{patterns: patterns}
}

// Detect picks the pipeline: an archive holding an e-book goes to EPUB, an
// archive whose names follow a chapter naming convention goes to Archive,
// and non-blank text goes to Synthesis. Anything else is a FORMAT error.
func (r *Router) Detect(s Submission) (Decision, error) {
	if s.Archive != nil {
		names := archive.EntryNames(s.Archive)
		if f, ok := epub.FindDocument(s.Archive); ok {
			return Decision{Route: RouteEPUB, Document: f.Name, Entries: len(names)}, nil
		}
		if epub.IsDocument(s.Archive) {
			return Decision{Route: RouteEPUB, Entries: len(names)}, nil
		}
		if r.patterns.AnyMatch(names) {
			return Decision{Route: RouteArchive, Entries: len(names)}, nil
		}
	}

	if strings.TrimSpace(s.Text) != "" {
		return Decision{Route: RouteSynthesis}, nil
	}

	if s.Archive != nil {
		return Decision{}, errors.Format("archive contains neither an e-book nor chapter files").
			WithDetails(errors.ReasonUnrecognized)
	}
	return Decision{}, errors.Format("submission has no archive and no text").
		WithDetails(errors.ReasonUnrecognized)
}
