// Package main runs the ListenUp ingest server: the HTTP API, the synthesis
// workers and the optional inbox watcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-ingest/internal/di"
	"github.com/listenupapp/listenup-ingest/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	injector := di.NewContainer()
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "listenup-ingest: bootstrap: %v\n", err)
		return 1
	}

	log := do.MustInvoke[*logger.Logger](injector)
	log.Info("Ingest server ready", "startup", time.Since(started).Round(time.Millisecond))

	<-ctx.Done()
	stop()
	log.Info("Shutting down")

	// Services stop in reverse dependency order. Synthesis jobs still
	// running are cancelled and their books stay in processing until the
	// next start reports them.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown incomplete", "error", err)
		return 1
	}
	log.Info("Shutdown complete")
	return 0
}
