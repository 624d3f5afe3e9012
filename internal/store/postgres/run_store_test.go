package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"notecrawler/internal/crawl"
	"notecrawler/internal/store"
)

func TestCreateRunInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runStore, err := NewRunStoreWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	id := uuid.New()

	rec := store.RunRecord{
		RunID:     id,
		Status:    store.RunStatusRunning,
		Keywords:  []string{"llm interview"},
		StartedAt: now,
	}

	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs(
			rec.RunID,
			string(rec.Status),
			[]byte(`["llm interview"]`),
			pgxmock.AnyArg(),
			rec.ArchiveURI,
			rec.StartedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = runStore.CreateRun(context.Background(), rec)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRunStatusUnknownRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runStore, err := NewRunStoreWithPool(mock)
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(id, string(store.RunStatusFailed), pgxmock.AnyArg(), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = runStore.UpdateRunStatus(context.Background(), id, store.RunStatusFailed, crawl.StatsSnapshot{}, "", time.Now())
	require.ErrorIs(t, err, store.ErrRunNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPostsUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runStore, err := NewRunStoreWithPool(mock)
	require.NoError(t, err)

	id := uuid.New()
	posts := []crawl.Post{
		{Summary: crawl.ItemSummary{ItemID: "n1"}},
		{Summary: crawl.ItemSummary{ItemID: "n2"}},
	}

	mock.ExpectExec("INSERT INTO crawl_posts").
		WithArgs(id, "n1", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO crawl_posts").
		WithArgs(id, "n2", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = runStore.RecordPosts(context.Background(), id, posts)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunScansRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runStore, err := NewRunStoreWithPool(mock)
	require.NoError(t, err)

	id := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)

	mock.ExpectQuery("SELECT status, keywords, stats, archive_uri, started_at, finished_at").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status", "keywords", "stats", "archive_uri", "started_at", "finished_at"}).
			AddRow("succeeded", []byte(`["go"]`), []byte(`{"unique_items":3}`), "gs://bucket/runs/x", started, &finished))

	rec, err := runStore.GetRun(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, store.RunStatusSucceeded, rec.Status)
	require.Equal(t, []string{"go"}, rec.Keywords)
	require.EqualValues(t, 3, rec.Stats.UniqueItems)
	require.Equal(t, finished, rec.FinishedAt)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runStore, err := NewRunStoreWithPool(mock)
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectQuery("SELECT status, keywords, stats, archive_uri, started_at, finished_at").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status", "keywords", "stats", "archive_uri", "started_at", "finished_at"}))

	_, err = runStore.GetRun(context.Background(), id)
	require.ErrorIs(t, err, store.ErrRunNotFound)
}
