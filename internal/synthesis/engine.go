// Package synthesis voices manuscripts: it drives a text-to-speech engine
// chapter by chapter, merges oversized chapters synthesized in pieces, and
// produces the audio, text and alignment files of each chapter.
package synthesis

import (
	"context"
	"io"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

// TicksPerSecond converts boundary event units (100ns) to seconds.
const TicksPerSecond = 10_000_000

// Request is one synthesis call.
type Request struct {
	Text  string
	Voice string
}

// BoundaryEvent marks where a spoken word or phrase sits in the audio.
type BoundaryEvent struct {
	Text     string
	Offset   int64
	Duration int64
}

// Start returns the event start in seconds.
func (e BoundaryEvent) Start() float64 {
	return float64(e.Offset) / TicksPerSecond
}

// End returns the event end in seconds.
func (e BoundaryEvent) End() float64 {
	return float64(e.Offset+e.Duration) / TicksPerSecond
}

// Engine synthesizes speech. Audio is streamed to the writer; the returned
// events are ordered by offset.
type Engine interface {
	Synthesize(ctx context.Context, req Request, audio io.Writer) ([]BoundaryEvent, error)
}

// EventsToAlignment converts boundary events into alignment entries rounded
// to milliseconds.
func EventsToAlignment(events []BoundaryEvent) domain.Alignment {
	out := make(domain.Alignment, 0, len(events))
	for _, e := range events {
		out = append(out, domain.AlignmentEntry{
			Text:  e.Text,
			Start: domain.Round3(e.Start()),
			End:   domain.Round3(e.End()),
		})
	}
	return out
}
