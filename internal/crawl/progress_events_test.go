package crawl

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notecrawler/internal/progress"
)

// captureEmitter records every event the orchestrator emits.
type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *captureEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *captureEmitter) byStage(stage progress.Stage) []progress.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []progress.Event
	for _, evt := range e.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

func TestRunEmitsDetailProgressCadence(t *testing.T) {
	t.Parallel()

	// 25 unique items: two full pages of 10 and a short page of 5.
	search := &fakeSearchProvider{
		pages: map[string][][]ItemSummary{
			"kw": {makeItems("p", 10), makeItems("q", 10), makeItems("r", 5)},
		},
	}
	emitter := &captureEmitter{}
	orch := New(search, &fakeDetailProvider{}, emitter, zap.NewNop())

	opts := testOptions("kw")
	opts.MaxPages = 3
	opts.ProgressEvery = 10

	result, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, int64(25), result.Stats.UniqueItems)

	detailEvents := emitter.byStage(progress.StageDetailProgress)
	require.Len(t, detailEvents, 3)

	completions := make([]int64, 0, len(detailEvents))
	for _, evt := range detailEvents {
		require.Equal(t, result.RunID, evt.RunID)
		require.False(t, evt.TS.IsZero())
		require.Equal(t, int64(25), evt.Total)
		completions = append(completions, evt.Completed)
	}
	require.ElementsMatch(t, []int64{10, 20, 25}, completions)
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()

	search := &fakeSearchProvider{
		pages: map[string][][]ItemSummary{"kw": {makeItems("p", 3)}},
	}
	emitter := &captureEmitter{}
	orch := New(search, &fakeDetailProvider{}, emitter, zap.NewNop())

	result, err := orch.Run(context.Background(), testOptions("kw"))
	require.NoError(t, err)

	require.Len(t, emitter.byStage(progress.StageRunStart), 1)
	require.Len(t, emitter.byStage(progress.StageRunDone), 1)

	keywordEvents := emitter.byStage(progress.StageKeywordDone)
	require.Len(t, keywordEvents, 1)
	require.Equal(t, "kw", keywordEvents[0].Keyword)
	require.Equal(t, int64(3), keywordEvents[0].Items)

	searchDone := emitter.byStage(progress.StageSearchDone)
	require.Len(t, searchDone, 1)
	require.Equal(t, int64(3), searchDone[0].Items)
	require.Equal(t, result.Stats.TotalPages, searchDone[0].Pages)
}