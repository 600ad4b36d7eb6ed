package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/logger"
	"github.com/listenupapp/listenup-ingest/internal/service"
	"github.com/listenupapp/listenup-ingest/internal/sse"
	"github.com/listenupapp/listenup-ingest/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.Storage.DatabasePath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Storage.DatabasePath)

	return &StoreHandle{Store: db}, nil
}

// ProvideStatusTracker provides the processing state tracker.
func ProvideStatusTracker(i do.Injector) (*service.StatusTracker, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStatusTracker(storeHandle.Store, sseHandle.Manager, log.Logger), nil
}

// ReportStaleBooks logs books and jobs an earlier run left unfinished.
// Failures are logged; they never block startup.
func ReportStaleBooks(i do.Injector) {
	tracker := do.MustInvoke[*service.StatusTracker](i)
	log := do.MustInvoke[*logger.Logger](i)

	report, err := tracker.ReportStale(context.Background())
	if err != nil {
		log.Warn("Stale book report failed", "error", err)
		return
	}
	if len(report.Books) > 0 || len(report.Jobs) > 0 {
		log.Warn("Unfinished work from an earlier run",
			slog.Int("books", len(report.Books)),
			slog.Int("jobs", len(report.Jobs)),
		)
	}
}
