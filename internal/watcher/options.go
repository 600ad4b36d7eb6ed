package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// defaultIgnore skips OS droppings and partial downloads.
var defaultIgnore = []string{".DS_Store", "Thumbs.db", "*.tmp", "*.temp", "*.part", "*.crdownload"}

// Options configures the file watcher behavior.
type Options struct {
	// IgnorePatterns are filepath.Match patterns tested against base names.
	// nil selects defaultIgnore and hidden-file skipping; an empty slice
	// ignores nothing.
	IgnorePatterns []string
	// Extensions limits events to files with one of these suffixes
	// (lowercase, with dot). Empty accepts every file.
	Extensions []string
	// SettleDelay is how long a file must stay unchanged before it is
	// reported. Defaults to 500ms.
	SettleDelay  time.Duration
	IgnoreHidden bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = defaultIgnore
		o.IgnoreHidden = true
	}
}

// shouldIgnore reports paths under a hidden segment (when IgnoreHidden) or
// whose base name matches an ignore pattern.
func (o *Options) shouldIgnore(path string) bool {
	clean := filepath.Clean(path)
	if o.IgnoreHidden {
		for part := range strings.SplitSeq(clean, string(filepath.Separator)) {
			if len(part) > 1 && part[0] == '.' && part != ".." {
				return true
			}
		}
	}
	base := filepath.Base(clean)
	return slices.ContainsFunc(o.IgnorePatterns, func(pattern string) bool {
		ok, err := filepath.Match(pattern, base)
		return err == nil && ok
	})
}

// accepts reports whether path has one of the configured extensions.
func (o *Options) accepts(path string) bool {
	return len(o.Extensions) == 0 ||
		slices.Contains(o.Extensions, strings.ToLower(filepath.Ext(path)))
}
