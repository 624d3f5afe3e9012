package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notecrawler/internal/crawl"
	"notecrawler/internal/store"
	storemem "notecrawler/internal/store/memory"
)

type fakeExecutor struct {
	mu   sync.Mutex
	runs *storemem.RunStore
	got  []crawl.Options
	err  error
}

func (f *fakeExecutor) Execute(ctx context.Context, opts crawl.Options) (store.RunRecord, crawl.RunResult, error) {
	f.mu.Lock()
	f.got = append(f.got, opts)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return store.RunRecord{}, crawl.RunResult{}, err
	}
	rec := store.RunRecord{
		RunID:     opts.RunID,
		Status:    store.RunStatusSucceeded,
		Keywords:  opts.Keywords,
		StartedAt: time.Now().UTC(),
	}
	if createErr := f.runs.CreateRun(ctx, rec); createErr != nil {
		return store.RunRecord{}, crawl.RunResult{}, createErr
	}
	posts := []crawl.Post{{Summary: crawl.ItemSummary{ItemID: "n1", Keyword: opts.Keywords[0]}}}
	if postErr := f.runs.RecordPosts(ctx, opts.RunID, posts); postErr != nil {
		return store.RunRecord{}, crawl.RunResult{}, postErr
	}
	return rec, crawl.RunResult{RunID: opts.RunID, Posts: posts}, nil
}

func (f *fakeExecutor) options() []crawl.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]crawl.Options(nil), f.got...)
}

func newTestServer(t *testing.T) (*Server, *storemem.RunStore, *fakeExecutor) {
	t.Helper()
	runs := storemem.NewRunStore()
	exec := &fakeExecutor{runs: runs}
	defaults := crawl.Options{
		MaxPages:          3,
		PageSize:          30,
		SearchConcurrency: 5,
		DetailConcurrency: 10,
	}
	return NewServer(exec, runs, defaults, zap.NewNop()), runs, exec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	}
}

func TestSubmitRunAcceptsAndExecutes(t *testing.T) {
	t.Parallel()

	srv, runs, exec := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"keywords": ["llm interview"], "max_pages": 2, "delay_seconds": 0}`
	resp, err := http.Post(ts.URL+"/v1/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	require.NoError(t, resp.Body.Close())
	runID, err := uuid.Parse(accepted["run_id"])
	require.NoError(t, err)
	require.Equal(t, "running", accepted["status"])

	require.Eventually(t, func() bool {
		_, err := runs.GetRun(context.Background(), runID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	got := exec.options()
	require.Len(t, got, 1)
	require.Equal(t, []string{"llm interview"}, got[0].Keywords)
	require.Equal(t, 2, got[0].MaxPages, "request overrides the default")
	require.Equal(t, 30, got[0].PageSize, "unset fields keep defaults")
	require.Equal(t, runID, got[0].RunID)
}

func TestSubmitRunRejectsBadRequests(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"no keywords", `{}`},
		{"bad concurrency", `{"keywords": ["x"], "search_concurrency": 0}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/runs", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.NoError(t, resp.Body.Close())
		})
	}
}

func TestGetRunAndPosts(t *testing.T) {
	t.Parallel()

	srv, runs, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := uuid.New()
	require.NoError(t, runs.CreateRun(context.Background(), store.RunRecord{
		RunID:    id,
		Status:   store.RunStatusSucceeded,
		Keywords: []string{"go"},
	}))
	require.NoError(t, runs.RecordPosts(context.Background(), id, []crawl.Post{
		{Summary: crawl.ItemSummary{ItemID: "n1"}},
	}))

	resp, err := http.Get(ts.URL + "/v1/runs/" + id.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec store.RunRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, id, rec.RunID)
	require.Equal(t, store.RunStatusSucceeded, rec.Status)

	resp, err = http.Get(ts.URL + "/v1/runs/" + id.String() + "/posts")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var postsResp struct {
		RunID string       `json:"run_id"`
		Posts []crawl.Post `json:"posts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&postsResp))
	require.NoError(t, resp.Body.Close())
	require.Len(t, postsResp.Posts, 1)
	require.Equal(t, "n1", postsResp.Posts[0].Summary.ItemID)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + uuid.NewString())
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = http.Get(ts.URL + "/v1/runs/not-a-uuid")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}
