package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden, "Should ignore hidden files by default")
	assert.Equal(t, 500*time.Millisecond, opts.SettleDelay)
	assert.Contains(t, opts.IgnorePatterns, ".DS_Store")
	assert.Contains(t, opts.IgnorePatterns, "*.part")
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		IgnoreHidden:   false,
		SettleDelay:    200 * time.Millisecond,
		IgnorePatterns: []string{"*.bak"},
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden, "Custom ignore hidden should be preserved")
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{
		IgnoreHidden:   true,
		IgnorePatterns: []string{"*.tmp", ".DS_Store", "*.part"},
	}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"hidden file", "/inbox/.hidden", true},
		{"lock file", "/inbox/.synthesis.lock", true},
		{"DS_Store", "/inbox/.DS_Store", true},
		{"tmp file", "/inbox/book.tmp", true},
		{"partial upload", "/inbox/book.zip.part", true},
		{"archive", "/inbox/book.zip", false},
		{"manuscript", "/inbox/novel.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, opts.shouldIgnore(tt.path))
		})
	}
}

func TestOptions_Accepts(t *testing.T) {
	opts := Options{Extensions: DefaultExtensions}

	assert.True(t, opts.accepts("/inbox/book.ZIP"))
	assert.True(t, opts.accepts("/inbox/book.epub"))
	assert.True(t, opts.accepts("/inbox/notes.md"))
	assert.False(t, opts.accepts("/inbox/cover.jpg"))
	assert.False(t, opts.accepts("/inbox/README"))

	all := Options{}
	assert.True(t, all.accepts("/inbox/anything.bin"))
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "added", EventAdded.String())
	assert.Equal(t, "removed", EventRemoved.String())
	assert.Equal(t, "unknown", EventType(42).String())
	assert.Equal(t, "unknown", EventType(-1).String())
}

func TestEvent_Ext(t *testing.T) {
	assert.Equal(t, ".epub", Event{Path: "/inbox/Book.EPUB"}.Ext())
	assert.Equal(t, "", Event{Path: "/inbox/README"}.Ext())
}
