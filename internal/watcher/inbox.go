package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Handler ingests one settled inbox file.
type Handler func(ctx context.Context, path string) error

// Inbox subdirectories that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DefaultExtensions are the submission types the inbox picks up.
var DefaultExtensions = []string{".zip", ".epub", ".txt", ".md"}

// Inbox feeds files dropped into a directory to a Handler, one at a time,
// then moves each into processed/ or failed/.
type Inbox struct {
	logger  *slog.Logger
	watcher *Watcher
	handle  Handler
	dir     string
}

// NewInbox creates the inbox directory layout and its watcher.
func NewInbox(dir string, handle Handler, opts Options, logger *slog.Logger) (*Inbox, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create inbox: %w", err)
		}
	}

	w, err := New(logger, opts)
	if err != nil {
		return nil, err
	}

	return &Inbox{
		logger:  logger.With("component", "inbox"),
		watcher: w,
		handle:  handle,
		dir:     filepath.Clean(dir),
	}, nil
}

// Run handles files already present, then new arrivals, until ctx is done.
func (i *Inbox) Run(ctx context.Context) error {
	defer i.watcher.Stop() //nolint:errcheck // shutdown path

	if err := i.watcher.Watch(i.dir); err != nil {
		return err
	}
	go i.watcher.Start(ctx) //nolint:errcheck // returns nil

	if err := i.drainExisting(ctx); err != nil {
		return err
	}

	i.logger.Info("watching inbox", "path", i.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-i.watcher.Done():
			return nil
		case err := <-i.watcher.Errors():
			i.logger.Warn("inbox watcher error", "error", err)
		case event := <-i.watcher.Events():
			if event.Type != EventAdded {
				continue
			}
			i.logger.Debug("inbox file settled", "path", event.Path, "kind", event.Ext(), "size", event.Size)
			i.process(ctx, event.Path)
		}
	}
}

// drainExisting handles files that arrived while the service was down.
func (i *Inbox) drainExisting(ctx context.Context) error {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(i.dir, e.Name())
		if e.IsDir() || i.watcher.opts.shouldIgnore(path) || !i.watcher.opts.accepts(path) {
			continue
		}
		names = append(names, path)
	}
	sort.Strings(names)

	for _, path := range names {
		if ctx.Err() != nil {
			return nil
		}
		i.process(ctx, path)
	}
	return nil
}

func (i *Inbox) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// Already handled by the initial drain.
		return
	}

	start := time.Now()
	dest := ProcessedDir
	if err := i.handle(ctx, path); err != nil {
		dest = FailedDir
		i.logger.Error("inbox file failed", "path", path, "error", err)
	} else {
		i.logger.Info("inbox file ingested", "path", path, "duration", time.Since(start))
	}

	if err := moveInto(path, filepath.Join(i.dir, dest)); err != nil {
		i.logger.Warn("failed to move inbox file", "path", path, "error", err)
	}
}

// moveInto renames path into dir, prefixing a timestamp on name clashes.
func moveInto(path, dir string) error {
	base := filepath.Base(path)
	target := filepath.Join(dir, base)
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dir, time.Now().UTC().Format("20060102T150405.000")+"-"+base)
	}
	return os.Rename(path, target)
}
