package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// EventType says whether a settled path appeared or went away.
type EventType int

const (
	// EventAdded fires once a new file has stopped growing.
	EventAdded EventType = iota
	// EventRemoved fires when a file is deleted or renamed out of the
	// watched tree.
	EventRemoved
)

var eventTypeNames = [...]string{EventAdded: "added", EventRemoved: "removed"}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// Event is one settled change under a watched directory. ModTime and Size
// are zero for removals.
type Event struct {
	ModTime time.Time
	Path    string
	Type    EventType
	Size    int64
}

// Ext returns the lower-cased extension of the event's path.
func (e Event) Ext() string {
	return strings.ToLower(filepath.Ext(e.Path))
}
