package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notecrawler/internal/archive/memory"
	"notecrawler/internal/crawl"
)

func TestSaveRunWritesPostsAndStats(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	archiver := New(store, "runs", zap.NewNop())

	runID := uuid.New()
	result := crawl.RunResult{
		RunID: runID,
		Stats: crawl.StatsSnapshot{UniqueItems: 2, DetailsFetched: 2},
		Posts: []crawl.Post{
			{Summary: crawl.ItemSummary{ItemID: "n1", Keyword: "go"}},
			{Summary: crawl.ItemSummary{ItemID: "n2", Keyword: "go"}},
		},
	}

	uri, err := archiver.SaveRun(context.Background(), result)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("memory://runs/%s/posts.json", runID), uri)
	require.Equal(t, 2, store.Len())

	raw, ok := store.Get(fmt.Sprintf("runs/%s/posts.json", runID))
	require.True(t, ok)
	var posts []crawl.Post
	require.NoError(t, json.Unmarshal(raw, &posts))
	require.Len(t, posts, 2)
	require.Equal(t, "n1", posts[0].Summary.ItemID)

	raw, ok = store.Get(fmt.Sprintf("runs/%s/stats.json", runID))
	require.True(t, ok)
	var stats crawl.StatsSnapshot
	require.NoError(t, json.Unmarshal(raw, &stats))
	require.EqualValues(t, 2, stats.UniqueItems)
}

func TestSaveRunDefaultsPrefix(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	archiver := New(store, "", zap.NewNop())

	runID := uuid.New()
	_, err := archiver.SaveRun(context.Background(), crawl.RunResult{RunID: runID})
	require.NoError(t, err)

	_, ok := store.Get(fmt.Sprintf("runs/%s/posts.json", runID))
	require.True(t, ok)
}
