// Package sse publishes book processing events to Server-Sent Events clients.
package sse

import (
	"time"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventBookProcessing is sent when a synthesis job is accepted.
	EventBookProcessing EventType = "book.processing"
	// EventBookReady is sent when a book's manifest is available.
	EventBookReady EventType = "book.ready"
	// EventBookFailed is sent when a synthesis job ends in failure.
	EventBookFailed EventType = "book.failed"
	// EventBookDeleted is sent after a book and its files are removed.
	EventBookDeleted EventType = "book.deleted"
	// EventBookStatus is the current state of a followed book, sent once
	// when a client connects.
	EventBookStatus EventType = "book.status"

	// EventSynthesisProgress reports completed chapters of a running job.
	EventSynthesisProgress EventType = "synthesis.progress"

	// EventConnected opens every stream.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
	// ID is the sequence number assigned by Manager.Emit. Zero for events
	// that are never replayed (heartbeats, connection snapshots).
	ID uint64 `json:"id,omitempty"`
	// BookID scopes the event for clients following a single book.
	BookID string `json:"-"`
}

// BookStatusEventData is the payload of book lifecycle events.
type BookStatusEventData struct {
	BookID        string                  `json:"book_id"`
	Title         string                  `json:"title,omitempty"`
	Type          domain.BookType         `json:"type,omitempty"`
	Status        domain.ProcessingStatus `json:"processing_status,omitempty"`
	Error         string                  `json:"processing_error,omitempty"`
	TotalChapters int                     `json:"total_chapters,omitempty"`
	TotalDuration float64                 `json:"total_duration,omitempty"`
}

// SynthesisProgressEventData is the payload of EventSynthesisProgress.
type SynthesisProgressEventData struct {
	BookID        string `json:"book_id"`
	JobID         string `json:"job_id"`
	ChaptersDone  int    `json:"chapters_done"`
	ChaptersTotal int    `json:"chapters_total"`
}

// HeartbeatEventData is the payload of EventHeartbeat.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func bookEvent(typ EventType, book *domain.Book) Event {
	return Event{
		Type:   typ,
		BookID: book.ID,
		Data: BookStatusEventData{
			BookID:        book.ID,
			Title:         book.Title,
			Type:          book.Type,
			Status:        book.Status,
			Error:         book.StatusError,
			TotalChapters: book.TotalChapters,
			TotalDuration: book.TotalDuration,
		},
		Timestamp: time.Now(),
	}
}

// NewBookProcessingEvent creates a book.processing event.
func NewBookProcessingEvent(book *domain.Book) Event {
	return bookEvent(EventBookProcessing, book)
}

// NewBookReadyEvent creates a book.ready event.
func NewBookReadyEvent(book *domain.Book) Event {
	return bookEvent(EventBookReady, book)
}

// NewBookStatusEvent creates a book.status snapshot.
func NewBookStatusEvent(book *domain.Book) Event {
	return bookEvent(EventBookStatus, book)
}

// NewBookFailedEvent creates a book.failed event.
func NewBookFailedEvent(bookID, errMsg string) Event {
	return Event{
		Type:   EventBookFailed,
		BookID: bookID,
		Data: BookStatusEventData{
			BookID: bookID,
			Status: domain.StatusFailed,
			Error:  errMsg,
		},
		Timestamp: time.Now(),
	}
}

// NewBookDeletedEvent creates a book.deleted event.
func NewBookDeletedEvent(bookID string) Event {
	return Event{
		Type:      EventBookDeleted,
		BookID:    bookID,
		Data:      BookStatusEventData{BookID: bookID},
		Timestamp: time.Now(),
	}
}

// NewSynthesisProgressEvent creates a synthesis.progress event.
func NewSynthesisProgressEvent(bookID, jobID string, done, total int) Event {
	return Event{
		Type:   EventSynthesisProgress,
		BookID: bookID,
		Data: SynthesisProgressEventData{
			BookID:        bookID,
			JobID:         jobID,
			ChaptersDone:  done,
			ChaptersTotal: total,
		},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
