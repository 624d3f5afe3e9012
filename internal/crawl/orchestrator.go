package crawl

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notecrawler/internal/progress"
)

// Orchestrator sequences the two fan-out phases of a run: keyword search,
// dedup barrier, detail fetch. It holds only long-lived collaborators; all
// per-run state lives on the run value created by Run.
type Orchestrator struct {
	search  SearchProvider
	detail  DetailProvider
	emitter progress.Emitter
	logger  *zap.Logger
	clock   Clock
	pause   pauseController
}

// New constructs an Orchestrator. The emitter may be nil when no progress
// stream is wanted.
func New(search SearchProvider, detail DetailProvider, emitter progress.Emitter, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		search:  search,
		detail:  detail,
		emitter: emitter,
		logger:  logger,
		clock:   systemClock{},
		pause:   timerPauseController{},
	}
}

// run carries the state of one orchestrated run.
type run struct {
	o     *Orchestrator
	opts  Options
	runID uuid.UUID
	stats *RunStats
	dedup *Deduplicator
}

// Run executes one crawl: phase 1 fans out keyword tasks, the deduplicated
// item set seeds phase 2, and the aggregated stats plus the final post list
// come back in one RunResult. Individual task failures and timeouts never
// surface as errors here; only invalid Options are rejected synchronously.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (RunResult, error) {
	if o.search == nil || o.detail == nil {
		return RunResult{}, ErrMissingProviders
	}
	if err := opts.Validate(); err != nil {
		return RunResult{}, err
	}
	runID := opts.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}

	r := &run{
		o:     o,
		opts:  opts,
		runID: runID,
		stats: &RunStats{},
		dedup: NewDeduplicator(),
	}
	start := o.clock.Now()
	r.stats.KeywordsAttempted.Store(int64(len(opts.Keywords)))
	o.logger.Info("crawl run starting",
		zap.String("run_id", runID.String()),
		zap.Int("keywords", len(opts.Keywords)),
		zap.Int("max_pages", opts.MaxPages),
		zap.Int("page_size", opts.PageSize),
		zap.Int("search_concurrency", opts.SearchConcurrency),
		zap.Int("detail_concurrency", opts.DetailConcurrency),
	)
	r.emit(progress.Event{Stage: progress.StageRunStart, Total: int64(len(opts.Keywords))})

	results := r.searchPhase(ctx)

	unique := r.dedup.Items()
	r.stats.UniqueItems.Store(int64(len(unique)))
	o.logger.Info("search phase complete",
		zap.String("run_id", runID.String()),
		zap.Int64("raw_items", r.stats.TotalItems.Load()),
		zap.Int("unique_items", len(unique)),
		zap.Int64("pages", r.stats.TotalPages.Load()),
	)
	r.emit(progress.Event{
		Stage: progress.StageSearchDone,
		Pages: r.stats.TotalPages.Load(),
		Items: int64(len(unique)),
	})

	posts := []Post{}
	if len(unique) > 0 {
		posts = r.detailPhase(ctx, unique)
	} else {
		o.logger.Info("no unique items found; skipping detail phase", zap.String("run_id", runID.String()))
	}

	duration := o.clock.Now().Sub(start)
	o.logger.Info("crawl run finished",
		zap.String("run_id", runID.String()),
		zap.Int("posts", len(posts)),
		zap.Duration("duration", duration),
	)
	r.emit(progress.Event{Stage: progress.StageRunDone, Items: int64(len(posts)), Dur: duration})

	return RunResult{
		RunID:    runID,
		Stats:    r.stats.Snapshot(),
		Posts:    posts,
		Keywords: results,
		Duration: duration,
	}, nil
}

// emit stamps run identity and time onto the event before handing it to the
// hub. Safe with a nil emitter.
func (r *run) emit(evt progress.Event) {
	if r.o.emitter == nil {
		return
	}
	evt.RunID = r.runID
	evt.TS = r.o.clock.Now()
	r.o.emitter.Emit(evt)
}
