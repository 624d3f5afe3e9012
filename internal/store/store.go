// Package store persists run records and their collected posts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"notecrawler/internal/crawl"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// RunStatus tracks the lifecycle of a run record.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the persisted view of one orchestrated run.
type RunRecord struct {
	RunID      uuid.UUID           `json:"run_id"`
	Status     RunStatus           `json:"status"`
	Keywords   []string            `json:"keywords"`
	Stats      crawl.StatsSnapshot `json:"stats"`
	ArchiveURI string              `json:"archive_uri,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at,omitzero"`
}

// RunStore persists run records and posts.
type RunStore interface {
	// CreateRun inserts a new run record. The record must carry a run id.
	CreateRun(ctx context.Context, rec RunRecord) error
	// UpdateRunStatus marks a run finished with its final stats.
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus, stats crawl.StatsSnapshot, archiveURI string, finishedAt time.Time) error
	// RecordPosts stores the posts collected by a run.
	RecordPosts(ctx context.Context, id uuid.UUID, posts []crawl.Post) error
	// GetRun returns the record for a run id, or ErrRunNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (RunRecord, error)
	// ListPosts returns the posts recorded for a run id.
	ListPosts(ctx context.Context, id uuid.UUID) ([]crawl.Post, error)
}
