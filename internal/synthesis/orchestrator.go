package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/listenupapp/listenup-ingest/internal/audio"
	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/manifest"
	"github.com/listenupapp/listenup-ingest/internal/ratelimit"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

// Options tune pacing and merging.
type Options struct {
	// Gap is the silence between merged sub-segments.
	Gap time.Duration
	// SegmentDelay separates consecutive engine calls within a chapter.
	SegmentDelay time.Duration
	// ChapterDelay separates chapters.
	ChapterDelay time.Duration
}

// Job is one manuscript to voice into Dir.
type Job struct {
	Title string
	Text  string
	Voice string
	Dir   string
	// OnChapter, if set, is called after each completed chapter.
	OnChapter func(done, total int)
}

// Orchestrator voices manuscripts chapter by chapter, strictly in sequence.
type Orchestrator struct {
	engine    Engine
	merger    Merger
	splitter  textseg.Splitter
	limiter   *ratelimit.KeyedRateLimiter
	durations audio.DurationReader
	opts      Options
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an Orchestrator. limiter and durations may be nil.
func NewOrchestrator(engine Engine, merger Merger, splitter textseg.Splitter, limiter *ratelimit.KeyedRateLimiter, durations audio.DurationReader, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		engine:    engine,
		merger:    merger,
		splitter:  splitter,
		limiter:   limiter,
		durations: durations,
		opts:      opts,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// ChapterID formats the id of the n-th chapter (1-based).
func ChapterID(n int) string {
	return fmt.Sprintf("%03d", n)
}

// Plan returns the chapters a manuscript will be voiced as.
func (o *Orchestrator) Plan(text string) []string {
	return o.splitter.Chapters(text)
}

// Run voices every chapter of job.Text and returns the manifest. Any
// failure aborts the whole job; files of chapters completed before the
// failure stay in place and no manifest is returned.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*domain.Manifest, error) {
	if strings.TrimSpace(job.Text) == "" {
		return nil, errors.Validation("manuscript is empty")
	}
	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "create book directory")
	}

	chapters := o.Plan(job.Text)
	b := manifest.NewBuilder(domain.ManifestTypeText, job.Title)

	o.logger.Info("synthesis started", "chapters", len(chapters), "voice", job.Voice)

	for i, text := range chapters {
		if i > 0 {
			if err := o.sleep(ctx, o.opts.ChapterDelay); err != nil {
				return nil, err
			}
		}

		n := i + 1
		ch, err := o.chapter(ctx, job, n, text)
		if err != nil {
			return nil, fmt.Errorf("chapter %d of %d: %w", n, len(chapters), err)
		}
		b.Add(ch)

		o.logger.Info("chapter synthesized", "chapter", n, "of", len(chapters), "duration", ch.Duration)
		if job.OnChapter != nil {
			job.OnChapter(n, len(chapters))
		}
	}

	return b.Build()
}

// chapter voices one chapter, splitting it into sub-segments when it is
// over the ceiling.
func (o *Orchestrator) chapter(ctx context.Context, job Job, n int, text string) (domain.ManifestChapter, error) {
	id := ChapterID(n)
	audioName := id + "_audio.mp3"
	textName := id + "_text.txt"
	alignName := id + "_align.json"
	audioPath := filepath.Join(job.Dir, audioName)

	var (
		alignment domain.Alignment
		duration  float64
		err       error
	)
	if o.splitter.NeedsSubSegments(text) {
		alignment, duration, err = o.segmented(ctx, job, id, text, audioPath)
	} else {
		alignment, duration, err = o.synthesize(ctx, text, job.Voice, audioPath)
	}
	if err != nil {
		return domain.ManifestChapter{}, err
	}

	if err := os.WriteFile(filepath.Join(job.Dir, textName), []byte(text), 0o644); err != nil {
		return domain.ManifestChapter{}, errors.Wrap(err, errors.CodeStorage, "write chapter text")
	}
	data, err := json.Marshal(alignment)
	if err != nil {
		return domain.ManifestChapter{}, errors.Wrap(err, errors.CodeStorage, "encode alignment")
	}
	if err := os.WriteFile(filepath.Join(job.Dir, alignName), data, 0o644); err != nil {
		return domain.ManifestChapter{}, errors.Wrap(err, errors.CodeStorage, "write alignment")
	}

	return domain.ManifestChapter{
		ID:            id,
		Title:         manifest.ChapterTitle(n),
		AudioFile:     audioName,
		TextFile:      textName,
		AlignmentFile: alignName,
		Order:         n,
		Duration:      duration,
		Words:         o.splitter.Estimator.Analyze(text).TotalWords,
	}, nil
}

// segmented synthesizes the sub-segments of an oversized chapter one after
// another, then merges audio and alignment. The temp directory is removed
// whatever the outcome.
func (o *Orchestrator) segmented(ctx context.Context, job Job, id, text, audioPath string) (domain.Alignment, float64, error) {
	tmp := filepath.Join(job.Dir, ".temp_"+id)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeStorage, "create segment directory")
	}
	defer os.RemoveAll(tmp)

	segments := o.splitter.SubSegments(text)
	parts := make([]Part, 0, len(segments))
	paths := make([]string, 0, len(segments))

	for j, seg := range segments {
		if j > 0 {
			if err := o.sleep(ctx, o.opts.SegmentDelay); err != nil {
				return nil, 0, err
			}
		}
		segPath := filepath.Join(tmp, fmt.Sprintf("seg_%03d.mp3", j+1))
		alignment, duration, err := o.synthesize(ctx, seg, job.Voice, segPath)
		if err != nil {
			return nil, 0, fmt.Errorf("segment %d of %d: %w", j+1, len(segments), err)
		}
		parts = append(parts, Part{Alignment: alignment, Duration: duration})
		paths = append(paths, segPath)
	}

	if err := o.merger.Merge(ctx, paths, o.opts.Gap, audioPath); err != nil {
		return nil, 0, err
	}
	alignment, total := MergeAlignments(parts, o.opts.Gap)
	o.logger.Debug("segments merged", "chapter", id, "segments", len(parts), "duration", total)
	return alignment, total, nil
}

// synthesize makes one engine call, writing audio to path. The duration is
// the end of the last boundary event, or the audio header's duration when
// the engine reported no events.
func (o *Orchestrator) synthesize(ctx context.Context, text, voice, path string) (domain.Alignment, float64, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx, voice); err != nil {
			return nil, 0, err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeStorage, "create audio file")
	}
	events, err := o.engine.Synthesize(ctx, Request{Text: text, Voice: voice}, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.CodeStorage, "close audio file")
	}
	if err != nil {
		var domainErr *errors.Error
		if errors.As(err, &domainErr) {
			return nil, 0, err
		}
		return nil, 0, errors.Wrap(err, errors.CodeSynthesis, "synthesis engine failed")
	}

	alignment := EventsToAlignment(events)
	duration := alignment.LastEnd()
	if duration == 0 && o.durations != nil {
		duration = audio.DurationOrZero(ctx, o.durations, path, o.logger)
	}
	return alignment, duration, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
