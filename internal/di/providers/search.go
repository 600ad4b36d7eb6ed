package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/logger"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/search"
	"github.com/listenupapp/listenup-ingest/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// A nil index means search could not be opened and is disabled.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.SearchIndex == nil {
		return nil
	}
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index. An index that cannot
// be opened disables search instead of failing startup.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: filepath.Join(cfg.Storage.MediaPath, "search"),
		Logger:   log.Logger,
	})
	if err != nil {
		log.Warn("Search index unavailable, search disabled", "error", err)
		return &SearchIndexHandle{}, nil
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.SearchIndex, log.Logger), nil
}

// TriggerSearchReindexIfNeeded indexes every ready book when the index is
// empty, e.g. after a mapping change forced a rebuild.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	searchService := do.MustInvoke[*service.SearchService](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !searchService.Enabled() {
		return
	}
	docCount, _ := searchService.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	books, err := storeHandle.ListBooksByStatus(ctx, domain.StatusReady)
	if err != nil || len(books) == 0 {
		return
	}

	log.Info("Search index is empty but books exist, triggering reindex",
		"book_count", len(books),
	)

	go func() {
		indexed := 0
		for _, book := range books {
			m, err := manifest.Load(book.StoragePath)
			if err != nil {
				log.Warn("Skipping book without a readable manifest", "book_id", book.ID, "error", err)
				continue
			}
			if err := searchService.IndexBook(ctx, book, m); err != nil {
				log.Warn("Failed to reindex book", "book_id", book.ID, "error", err)
				continue
			}
			indexed++
		}
		count, _ := searchService.DocumentCount()
		log.Info("Search reindex completed", "books", indexed, "documents", count)
	}()
}
