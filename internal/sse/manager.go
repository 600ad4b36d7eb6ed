package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/listenup-ingest/internal/id"
)

const (
	queueSize         = 1000
	clientBufferSize  = 100
	replayBufferSize  = 256
	heartbeatInterval = 30 * time.Second
)

// Filter selects the events a client receives. The zero Filter receives
// everything.
type Filter struct {
	// BookID limits delivery to events about one book.
	BookID string
	// Types limits delivery to these event types. Heartbeats always pass.
	Types []EventType
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if e.Type == EventHeartbeat {
		return true
	}
	if f.BookID != "" && e.BookID != "" && f.BookID != e.BookID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Client is one connected event stream.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
	Filter      Filter

	// after is the last sequence number emitted before the client
	// registered. Those events were replayed or predate the client.
	after uint64
}

// Manager fans book events out to connected clients. Every emitted event
// gets a sequence number; the most recent ones are kept so a reconnecting
// client can resume from the last id it saw.
type Manager struct {
	logger *slog.Logger
	queue  chan Event
	wg     sync.WaitGroup

	mu      sync.RWMutex
	clients map[string]*Client

	// emitMu guards seq, recent and closed; Emit and Shutdown take it so an
	// event is never queued on a closed channel.
	emitMu sync.Mutex
	seq    uint64
	recent []Event
	closed bool

	heartbeat time.Duration
}

// NewManager creates a new SSE Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		logger:    logger.With("component", "sse"),
		queue:     make(chan Event, queueSize),
		clients:   make(map[string]*Client),
		recent:    make([]Event, 0, replayBufferSize),
		heartbeat: heartbeatInterval,
	}
}

// Start runs the delivery loop until ctx is done or Shutdown drains the
// queue. Call it once, in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			m.broadcast(event)
		case <-ticker.C:
			m.broadcast(NewHeartbeatEvent())
		case <-ctx.Done():
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued and closes every
// client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.emitMu.Lock()
	if m.closed {
		m.emitMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.emitMu.Unlock()

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		// Start may never have run; deliver anything left behind.
		for event := range m.queue {
			m.broadcast(event)
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("event drain timed out, pending events dropped")
	}

	m.closeAllClients()
	return nil
}

// Emit assigns the event its sequence number and queues it for delivery.
// Events emitted after Shutdown are dropped.
func (m *Manager) Emit(event Event) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	if m.closed {
		return
	}

	m.seq++
	event.ID = m.seq
	if len(m.recent) == replayBufferSize {
		copy(m.recent, m.recent[1:])
		m.recent = m.recent[:replayBufferSize-1]
	}
	m.recent = append(m.recent, event)

	select {
	case m.queue <- event:
	default:
		m.logger.Error("event queue full, dropping event",
			slog.String("event_type", string(event.Type)),
			slog.String("book_id", event.BookID))
	}
}

// Connect registers a client. When lastEventID is non-zero the client's
// buffer is primed with the retained events after it that match filter.
func (m *Manager) Connect(filter Filter, lastEventID uint64) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		Filter:      filter,
		EventChan:   make(chan Event, clientBufferSize),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	// Holding emitMu keeps new events out of both the replay and the live
	// stream until the client is registered, so none is seen twice.
	m.emitMu.Lock()
	if lastEventID > 0 {
		for _, e := range m.recent {
			if e.ID <= lastEventID || !filter.Matches(e) {
				continue
			}
			select {
			case client.EventChan <- e:
			default:
			}
		}
	}
	client.after = m.seq
	m.mu.Lock()
	m.clients[client.ID] = client
	total := len(m.clients)
	m.mu.Unlock()
	m.emitMu.Unlock()

	m.logger.Debug("client connected",
		slog.String("client_id", clientID),
		slog.String("book_id", filter.BookID),
		slog.Uint64("last_event_id", lastEventID),
		slog.Int("total_clients", total))
	return client, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
		close(client.Done)
		close(client.EventChan)
	}
	total := len(m.clients)
	m.mu.Unlock()

	if ok {
		m.logger.Debug("client disconnected",
			slog.String("client_id", clientID),
			slog.Duration("connected_for", time.Since(client.ConnectedAt)),
			slog.Int("total_clients", total))
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// broadcast delivers one event to every matching client. A client whose
// buffer is full misses the event rather than stalling the others.
func (m *Manager) broadcast(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var delivered, dropped int
	for _, client := range m.clients {
		if event.ID != 0 && event.ID <= client.after {
			continue
		}
		if !client.Filter.Matches(event) {
			continue
		}
		select {
		case client.EventChan <- event:
			delivered++
		default:
			dropped++
		}
	}

	if event.Type != EventHeartbeat {
		m.logger.Debug("event delivered",
			slog.String("event_type", string(event.Type)),
			slog.Uint64("event_id", event.ID),
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped))
	}
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
		delete(m.clients, key)
	}
}
