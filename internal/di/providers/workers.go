package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/logger"
	"github.com/listenupapp/listenup-ingest/internal/service"
	"github.com/listenupapp/listenup-ingest/internal/watcher"
)

// SynthesisServiceHandle wraps the synthesis service with shutdown capability.
// SynthesisService is nil when synthesis is disabled.
type SynthesisServiceHandle struct {
	*service.SynthesisService
}

// Shutdown implements do.Shutdownable.
func (h *SynthesisServiceHandle) Shutdown() error {
	if h.SynthesisService != nil {
		h.Stop()
	}
	return nil
}

// ProvideSynthesisService provides the background synthesis worker pool.
func ProvideSynthesisService(i do.Injector) (*SynthesisServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	orchestrator := do.MustInvoke[*OrchestratorHandle](i)

	if orchestrator.Orchestrator == nil {
		return &SynthesisServiceHandle{}, nil
	}

	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	tracker := do.MustInvoke[*service.StatusTracker](i)
	searchService := do.MustInvoke[*service.SearchService](i)

	svc := service.NewSynthesisService(
		orchestrator.Orchestrator,
		tracker,
		storeHandle.Store,
		searchService,
		sseHandle.Manager,
		service.SynthesisConfig{
			BooksPath:    cfg.BooksPath(),
			DefaultVoice: cfg.Synthesis.Voice,
			Workers:      cfg.Synthesis.MaxConcurrentJobs,
		},
		log.Logger,
	)

	// Start workers
	svc.Start()

	log.Info("Synthesis service started", "workers", cfg.Synthesis.MaxConcurrentJobs)

	return &SynthesisServiceHandle{SynthesisService: svc}, nil
}

// InboxHandle wraps the drop-folder inbox with shutdown capability.
// Inbox is nil when no inbox path is configured.
type InboxHandle struct {
	*watcher.Inbox
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *InboxHandle) Shutdown() error {
	if h.Inbox == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideInbox provides the drop-folder watcher feeding the ingest service.
func ProvideInbox(i do.Injector) (*InboxHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Storage.InboxPath == "" {
		log.Info("Inbox disabled by configuration")
		return &InboxHandle{}, nil
	}

	ingest := do.MustInvoke[*service.IngestService](i)

	inbox, err := watcher.NewInbox(cfg.Storage.InboxPath, ingest.IngestFile, watcher.Options{IgnoreHidden: true}, log.Logger)
	if err != nil {
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := inbox.Run(ctx); err != nil {
			log.Error("Inbox stopped", "error", err)
		}
	}()

	log.Info("Inbox watching", "path", cfg.Storage.InboxPath)

	return &InboxHandle{
		Inbox:  inbox,
		cancel: cancel,
		done:   done,
	}, nil
}
