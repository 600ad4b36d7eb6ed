package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

const (
	// retryMillis tells browsers how long to wait before reconnecting.
	retryMillis = 3000
	// writeTimeout bounds a single frame write.
	writeTimeout = 60 * time.Second
)

// StatusFunc looks up a book's current state for the connection snapshot.
type StatusFunc func(ctx context.Context, bookID string) (*domain.Book, error)

// Handler serves GET /api/v1/events.
//
// Query parameters: book_id follows one book, types is a comma-separated
// list of event types. A Last-Event-ID header (or last_event_id parameter)
// resumes after the given event.
type Handler struct {
	manager *Manager
	status  StatusFunc
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler. status may be nil, in which case
// clients following a book get no snapshot on connect.
func NewHandler(manager *Manager, status StatusFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{manager: manager, status: status, logger: logger}
}

// ServeHTTP streams events until the client goes away or the manager
// closes the stream.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	filter, lastID, err := parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(filter, lastID)
	if err != nil {
		h.logger.Error("failed to register event client", slog.String("error", err.Error()))
		return
	}
	defer h.manager.Disconnect(client.ID)
	log := h.logger.With(slog.String("client_id", client.ID))

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", retryMillis); err != nil {
		return
	}
	if err := h.write(w, rc, Event{
		Type:      EventConnected,
		Data:      map[string]string{"client_id": client.ID},
		Timestamp: time.Now(),
	}); err != nil {
		return
	}

	if filter.BookID != "" && h.status != nil && lastID == 0 {
		if book, err := h.status(ctx, filter.BookID); err == nil {
			if err := h.write(w, rc, NewBookStatusEvent(book)); err != nil {
				return
			}
		} else {
			log.Debug("no status snapshot", slog.String("book_id", filter.BookID), slog.String("error", err.Error()))
		}
	}

	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := h.write(w, rc, event); err != nil {
				log.Debug("client went away during write", slog.String("error", err.Error()))
				return
			}
		case <-client.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// write sends one frame and flushes it. Replayable events carry their id so
// the browser reports it back as Last-Event-ID.
func (h *Handler) write(w io.Writer, rc *http.ResponseController, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var b strings.Builder
	if event.ID > 0 {
		fmt.Fprintf(&b, "id: %d\n", event.ID)
	}
	fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", event.Type, payload)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	// Not every ResponseWriter supports deadlines.
	_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return nil
}

func parseRequest(r *http.Request) (Filter, uint64, error) {
	q := r.URL.Query()
	filter := Filter{BookID: strings.TrimSpace(q.Get("book_id"))}

	for _, t := range strings.Split(q.Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter.Types = append(filter.Types, EventType(t))
		}
	}

	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = q.Get("last_event_id")
	}
	if raw == "" {
		return filter, 0, nil
	}
	lastID, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return Filter{}, 0, fmt.Errorf("invalid last event id %q", raw)
	}
	return filter, lastID, nil
}
