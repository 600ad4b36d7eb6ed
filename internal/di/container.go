// Package di provides dependency injection configuration for the ingest server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/di/providers"
	"github.com/listenupapp/listenup-ingest/internal/logger"
	"github.com/listenupapp/listenup-ingest/internal/media/images"
	"github.com/listenupapp/listenup-ingest/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	return NewContainerWithConfig(nil)
}

// NewContainerWithConfig is NewContainer with a preloaded configuration.
// A nil cfg loads it from flags and the environment.
func NewContainerWithConfig(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	if cfg != nil {
		do.ProvideValue(injector, cfg)
	} else {
		do.Provide(injector, providers.ProvideConfig)
	}
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Storage layer
	do.Provide(injector, providers.ProvideAudioReader)
	do.Provide(injector, providers.ProvideCoverProcessor)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Business services
	do.Provide(injector, providers.ProvideStatusTracker)
	do.Provide(injector, providers.ProvideOrchestrator)
	do.Provide(injector, providers.ProvideIngestService)
	do.Provide(injector, providers.ProvideBookService)

	// Workers
	do.Provide(injector, providers.ProvideSynthesisService)
	do.Provide(injector, providers.ProvideInbox)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is
// listening. Lazy providers are invoked in dependency order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*images.Processor](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.StatusTracker](injector)

	// Report what an earlier run left unfinished before new work starts.
	providers.ReportStaleBooks(injector)

	// Business services
	_ = do.MustInvoke[*service.IngestService](injector)
	_ = do.MustInvoke[*service.BookService](injector)

	// Workers
	_ = do.MustInvoke[*providers.SynthesisServiceHandle](injector)
	_ = do.MustInvoke[*providers.InboxHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
