package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/audio"
	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/epub"
	"github.com/listenupapp/listenup-ingest/internal/logger"
	"github.com/listenupapp/listenup-ingest/internal/media/images"
	"github.com/listenupapp/listenup-ingest/internal/ratelimit"
	"github.com/listenupapp/listenup-ingest/internal/router"
	"github.com/listenupapp/listenup-ingest/internal/service"
	"github.com/listenupapp/listenup-ingest/internal/synthesis"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

// engineLimiterIdleTTL drops per-voice limiters nobody has used for a while.
const engineLimiterIdleTTL = 30 * time.Minute

// OrchestratorHandle carries the synthesis orchestrator and the per-voice
// engine limiter it shares across jobs. Orchestrator is nil when edge-tts
// or ffmpeg is missing; manuscripts are then rejected.
type OrchestratorHandle struct {
	Orchestrator *synthesis.Orchestrator
	limiter      *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *OrchestratorHandle) Shutdown() error {
	if h.limiter != nil {
		h.limiter.Stop()
	}
	return nil
}

// ProvideOrchestrator provides the synthesis orchestrator.
func ProvideOrchestrator(i do.Injector) (*OrchestratorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	reader := do.MustInvoke[*audio.MetaReader](i)

	engine, err := synthesis.NewEdgeTTS(cfg.Synthesis.EdgeTTSPath)
	if err != nil {
		log.Warn("Synthesis disabled", "error", err)
		return &OrchestratorHandle{}, nil
	}
	merger, err := synthesis.NewFFmpegMerger(cfg.Synthesis.FFmpegPath, cfg.Synthesis.Bitrate, cfg.Synthesis.MergeTimeout)
	if err != nil {
		log.Warn("Synthesis disabled", "error", err)
		return &OrchestratorHandle{}, nil
	}

	limiter := ratelimit.New(cfg.Synthesis.EngineRPS, 1, engineLimiterIdleTTL)
	orchestrator := synthesis.NewOrchestrator(
		engine,
		merger,
		textseg.NewSplitter(cfg.Synthesis.MaxChapterMinutes),
		limiter,
		reader,
		synthesis.Options{
			Gap:          cfg.Synthesis.SegmentGap,
			SegmentDelay: cfg.Synthesis.SegmentDelay,
			ChapterDelay: cfg.Synthesis.ChapterDelay,
		},
		log.Logger,
	)

	log.Info("Synthesis ready",
		"voice", cfg.Synthesis.Voice,
		"max_chapter_minutes", cfg.Synthesis.MaxChapterMinutes,
		"engine_rps", cfg.Synthesis.EngineRPS,
	)

	return &OrchestratorHandle{Orchestrator: orchestrator, limiter: limiter}, nil
}

// ProvideIngestService provides the submission entry point shared by the
// upload endpoint and the inbox.
func ProvideIngestService(i do.Injector) (*service.IngestService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	reader := do.MustInvoke[*audio.MetaReader](i)
	covers := do.MustInvoke[*images.Processor](i)
	tracker := do.MustInvoke[*service.StatusTracker](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	synthesisHandle := do.MustInvoke[*SynthesisServiceHandle](i)

	return service.NewIngestService(
		router.New(nil),
		archive.NewNormalizer(nil, reader, log.Logger),
		epub.NewIngester(nil, reader, covers, cfg.EPUB.StrictPairing, log.Logger),
		covers,
		synthesisHandle.SynthesisService,
		tracker,
		searchService,
		cfg.BooksPath(),
		log.Logger,
	), nil
}

// ProvideBookService provides read and delete access to ingested books.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(storeHandle.Store, searchService, sseHandle.Manager, log.Logger), nil
}
