// Package postgres provides a Postgres-backed RunStore.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"notecrawler/internal/crawl"
	"notecrawler/internal/store"
)

// Config controls the Postgres connection pool used for run rows.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxIface interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunStore persists run records and posts in Postgres.
type RunStore struct {
	pool pgxIface
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool pgxIface) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateRun inserts a new run record.
func (s *RunStore) CreateRun(ctx context.Context, rec store.RunRecord) error {
	if rec.RunID == uuid.Nil {
		return fmt.Errorf("run id is required")
	}
	keywordsJSON, err := json.Marshal(rec.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	statsJSON, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	query := `
INSERT INTO crawl_runs (
	run_id,
	status,
	keywords,
	stats,
	archive_uri,
	started_at
) VALUES (
	$1,$2,$3,$4,$5,$6
)`
	if _, err := s.pool.Exec(ctx, query,
		rec.RunID,
		string(rec.Status),
		keywordsJSON,
		statsJSON,
		rec.ArchiveURI,
		rec.StartedAt,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRunStatus marks a run finished with its final stats.
func (s *RunStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status store.RunStatus, stats crawl.StatsSnapshot, archiveURI string, finishedAt time.Time) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_runs
SET status = $2, stats = $3, archive_uri = $4, finished_at = $5
WHERE run_id = $1`,
		id, string(status), statsJSON, archiveURI, finishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrRunNotFound
	}
	return nil
}

// RecordPosts stores the posts collected by a run.
func (s *RunStore) RecordPosts(ctx context.Context, id uuid.UUID, posts []crawl.Post) error {
	for i, post := range posts {
		payload, err := json.Marshal(post)
		if err != nil {
			return fmt.Errorf("marshal post %s: %w", post.Summary.ItemID, err)
		}
		if _, err := s.pool.Exec(ctx, `
INSERT INTO crawl_posts (run_id, item_id, position, payload)
VALUES ($1,$2,$3,$4)
ON CONFLICT (run_id, item_id) DO UPDATE SET payload = EXCLUDED.payload`,
			id, post.Summary.ItemID, i, payload,
		); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
	}
	return nil
}

// GetRun returns the record for a run id.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (store.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `
SELECT status, keywords, stats, archive_uri, started_at, finished_at
FROM crawl_runs
WHERE run_id = $1`, id)

	var (
		status       string
		keywordsJSON []byte
		statsJSON    []byte
		archiveURI   string
		startedAt    time.Time
		finishedAt   *time.Time
	)
	if err := row.Scan(&status, &keywordsJSON, &statsJSON, &archiveURI, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.RunRecord{}, store.ErrRunNotFound
		}
		return store.RunRecord{}, fmt.Errorf("select run: %w", err)
	}

	rec := store.RunRecord{
		RunID:      id,
		Status:     store.RunStatus(status),
		ArchiveURI: archiveURI,
		StartedAt:  startedAt,
	}
	if finishedAt != nil {
		rec.FinishedAt = *finishedAt
	}
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &rec.Keywords); err != nil {
			return store.RunRecord{}, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &rec.Stats); err != nil {
			return store.RunRecord{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return rec, nil
}

// ListPosts returns the posts recorded for a run id in insertion order.
func (s *RunStore) ListPosts(ctx context.Context, id uuid.UUID) ([]crawl.Post, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
SELECT payload
FROM crawl_posts
WHERE run_id = $1
ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	var posts []crawl.Post
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		var post crawl.Post
		if err := json.Unmarshal(payload, &post); err != nil {
			return nil, fmt.Errorf("unmarshal post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}
