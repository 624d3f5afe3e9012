// Package memory provides an in-memory RunStore for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"notecrawler/internal/crawl"
	"notecrawler/internal/store"
)

// RunStore keeps run records and posts in process memory.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]store.RunRecord
	posts map[uuid.UUID][]crawl.Post
}

// NewRunStore creates an empty in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:  make(map[uuid.UUID]store.RunRecord),
		posts: make(map[uuid.UUID][]crawl.Post),
	}
}

// CreateRun inserts a new run record.
func (s *RunStore) CreateRun(_ context.Context, rec store.RunRecord) error {
	if rec.RunID == uuid.Nil {
		return fmt.Errorf("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[rec.RunID]; exists {
		return fmt.Errorf("run %s already exists", rec.RunID)
	}
	s.runs[rec.RunID] = rec
	return nil
}

// UpdateRunStatus marks a run finished with its final stats.
func (s *RunStore) UpdateRunStatus(_ context.Context, id uuid.UUID, status store.RunStatus, stats crawl.StatsSnapshot, archiveURI string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return store.ErrRunNotFound
	}
	rec.Status = status
	rec.Stats = stats
	rec.ArchiveURI = archiveURI
	rec.FinishedAt = finishedAt
	s.runs[id] = rec
	return nil
}

// RecordPosts stores the posts collected by a run.
func (s *RunStore) RecordPosts(_ context.Context, id uuid.UUID, posts []crawl.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return store.ErrRunNotFound
	}
	s.posts[id] = append([]crawl.Post(nil), posts...)
	return nil
}

// GetRun returns the record for a run id.
func (s *RunStore) GetRun(_ context.Context, id uuid.UUID) (store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[id]
	if !ok {
		return store.RunRecord{}, store.ErrRunNotFound
	}
	return rec, nil
}

// ListPosts returns the posts recorded for a run id.
func (s *RunStore) ListPosts(_ context.Context, id uuid.UUID) ([]crawl.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[id]; !ok {
		return nil, store.ErrRunNotFound
	}
	return append([]crawl.Post(nil), s.posts[id]...), nil
}
