// Package runner executes crawl runs end to end: orchestration, persistence,
// archival, and completion notifications.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notecrawler/internal/archive"
	"notecrawler/internal/crawl"
	"notecrawler/internal/metrics"
	"notecrawler/internal/publisher"
	"notecrawler/internal/store"
)

// Crawler is the orchestration surface the runner drives.
type Crawler interface {
	Run(ctx context.Context, opts crawl.Options) (crawl.RunResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Runner drives one run through its full lifecycle.
type Runner struct {
	crawler   Crawler
	runs      store.RunStore
	archiver  *archive.Archiver
	publisher publisher.Publisher
	topic     string
	clock     Clock
	logger    *zap.Logger
}

// Config wires the runner's collaborators. Archiver and Publisher are
// optional; Crawler and Runs are required.
type Config struct {
	Crawler   Crawler
	Runs      store.RunStore
	Archiver  *archive.Archiver
	Publisher publisher.Publisher
	Topic     string
	Clock     Clock
	Logger    *zap.Logger
}

// New creates a Runner from the given collaborators.
func New(cfg Config) (*Runner, error) {
	if cfg.Crawler == nil {
		return nil, fmt.Errorf("crawler is required")
	}
	if cfg.Runs == nil {
		return nil, fmt.Errorf("run store is required")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = publisher.NoOp{}
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	metrics.Init()
	return &Runner{
		crawler:   cfg.Crawler,
		runs:      cfg.Runs,
		archiver:  cfg.Archiver,
		publisher: cfg.Publisher,
		topic:     cfg.Topic,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}, nil
}

// completionEvent is the payload published when a run finishes.
type completionEvent struct {
	RunID      uuid.UUID           `json:"run_id"`
	Status     store.RunStatus     `json:"status"`
	Stats      crawl.StatsSnapshot `json:"stats"`
	ArchiveURI string              `json:"archive_uri,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Execute runs the crawl for the given options and persists the outcome.
// The returned record reflects the final stored state.
func (r *Runner) Execute(ctx context.Context, opts crawl.Options) (store.RunRecord, crawl.RunResult, error) {
	if opts.RunID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		opts.RunID = id
	}

	rec := store.RunRecord{
		RunID:     opts.RunID,
		Status:    store.RunStatusRunning,
		Keywords:  opts.Keywords,
		StartedAt: r.clock.Now(),
	}
	if err := r.runs.CreateRun(ctx, rec); err != nil {
		return store.RunRecord{}, crawl.RunResult{}, fmt.Errorf("create run record: %w", err)
	}

	result, err := r.crawler.Run(ctx, opts)
	if err != nil {
		finished := r.clock.Now()
		if updateErr := r.runs.UpdateRunStatus(ctx, rec.RunID, store.RunStatusFailed, crawl.StatsSnapshot{}, "", finished); updateErr != nil {
			r.logger.Error("failed to mark run failed", zap.String("run_id", rec.RunID.String()), zap.Error(updateErr))
		}
		metrics.ObserveRun("failed", finished.Sub(rec.StartedAt))
		return store.RunRecord{}, crawl.RunResult{}, fmt.Errorf("run crawl: %w", err)
	}

	archiveURI := ""
	if r.archiver != nil {
		uri, archiveErr := r.archiver.SaveRun(ctx, result)
		if archiveErr != nil {
			// Persisted state still carries the posts; losing the blob copy
			// is not worth failing the run over.
			r.logger.Error("failed to archive run output", zap.String("run_id", rec.RunID.String()), zap.Error(archiveErr))
		} else {
			archiveURI = uri
		}
	}

	if err := r.runs.RecordPosts(ctx, rec.RunID, result.Posts); err != nil {
		return store.RunRecord{}, crawl.RunResult{}, fmt.Errorf("record posts: %w", err)
	}

	finished := r.clock.Now()
	if err := r.runs.UpdateRunStatus(ctx, rec.RunID, store.RunStatusSucceeded, result.Stats, archiveURI, finished); err != nil {
		return store.RunRecord{}, crawl.RunResult{}, fmt.Errorf("update run record: %w", err)
	}

	r.observe(result, finished.Sub(rec.StartedAt))
	r.notify(ctx, completionEvent{
		RunID:      rec.RunID,
		Status:     store.RunStatusSucceeded,
		Stats:      result.Stats,
		ArchiveURI: archiveURI,
		FinishedAt: finished,
	})

	rec.Status = store.RunStatusSucceeded
	rec.Stats = result.Stats
	rec.ArchiveURI = archiveURI
	rec.FinishedAt = finished
	return rec, result, nil
}

func (r *Runner) observe(result crawl.RunResult, duration time.Duration) {
	metrics.ObserveRun("succeeded", duration)
	for _, kw := range result.Keywords {
		switch {
		case kw.TimedOut:
			metrics.ObserveKeyword("timeout")
		case kw.Success:
			metrics.ObserveKeyword("succeeded")
		default:
			metrics.ObserveKeyword("failed")
		}
	}
	metrics.AddPages(result.Stats.TotalPages)
	metrics.AddItems("raw", result.Stats.TotalItems)
	metrics.AddItems("unique", result.Stats.UniqueItems)
	metrics.AddDetails("fetched", result.Stats.DetailsFetched)
	metrics.AddDetails("failed", result.Stats.DetailsFailed)
	metrics.AddDetails("timeout", result.Stats.DetailsTimedOut)
}

func (r *Runner) notify(ctx context.Context, event completionEvent) {
	if r.topic == "" {
		return
	}
	id, err := r.publisher.Publish(ctx, r.topic, event)
	if err != nil {
		r.logger.Error("failed to publish run completion",
			zap.String("run_id", event.RunID.String()),
			zap.String("topic", r.topic),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("published run completion",
		zap.String("run_id", event.RunID.String()),
		zap.String("topic", r.topic),
		zap.String("message_id", id),
	)
}
