package crawl

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"notecrawler/internal/progress"
)

const defaultProgressEvery = 10

// detailPhase fans one detail fetch out per deduplicated item over a pool of
// width min(DetailConcurrency, len(items)). Failed or timed-out items are
// dropped from the post list without aborting the phase; successes append to
// the shared collection under the mutex.
func (r *run) detailPhase(ctx context.Context, items []ItemSummary) []Post {
	total := len(items)
	width := min(r.opts.DetailConcurrency, total)
	every := r.opts.ProgressEvery
	if every <= 0 {
		every = defaultProgressEvery
	}
	r.o.logger.Info("detail phase starting",
		zap.String("run_id", r.runID.String()),
		zap.Int("items", total),
		zap.Int("concurrency", width),
	)

	sem := make(chan struct{}, width)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		posts     = make([]Post, 0, total)
		completed atomic.Int64
	)
	for _, item := range items {
		wg.Add(1)
		go func(item ItemSummary) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			detail, ok := r.superviseDetail(ctx, item)
			if ok {
				mu.Lock()
				posts = append(posts, Post{Summary: item, Detail: detail})
				mu.Unlock()
				r.stats.DetailsFetched.Add(1)
			}

			done := completed.Add(1)
			if done%int64(every) == 0 || done == int64(total) {
				r.o.logger.Info("detail fetch progress",
					zap.Int64("completed", done),
					zap.Int("total", total),
				)
				r.emit(progress.Event{
					Stage:     progress.StageDetailProgress,
					Completed: done,
					Total:     int64(total),
				})
			}
		}(item)
	}
	wg.Wait()

	r.o.logger.Info("detail phase complete",
		zap.String("run_id", r.runID.String()),
		zap.Int("fetched", len(posts)),
		zap.Int("total", total),
	)
	return posts
}

// superviseDetail races one detail fetch against its timeout, mirroring the
// keyword supervisor: the timer cancels the request context and abandons the
// goroutine without awaiting it.
func (r *run) superviseDetail(ctx context.Context, item ItemSummary) (DetailRecord, bool) {
	type outcome struct {
		detail DetailRecord
		err    error
	}
	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan outcome, 1)
	go func() {
		detail, err := r.o.detail.FetchDetail(taskCtx, item.ItemID, item.Token, item.Source)
		done <- outcome{detail: detail, err: err}
	}()

	finish := func(out outcome) (DetailRecord, bool) {
		if out.err != nil {
			r.stats.DetailsFailed.Add(1)
			r.o.logger.Warn("detail fetch failed",
				zap.String("item_id", item.ItemID),
				zap.Error(out.err),
			)
			return DetailRecord{}, false
		}
		return out.detail, true
	}

	if r.opts.DetailTimeout <= 0 {
		out := <-done
		cancel()
		return finish(out)
	}

	timer := time.NewTimer(r.opts.DetailTimeout)
	defer timer.Stop()
	select {
	case out := <-done:
		cancel()
		return finish(out)
	case <-timer.C:
		cancel()
		r.stats.DetailsTimedOut.Add(1)
		r.o.logger.Warn("detail fetch timed out",
			zap.String("item_id", item.ItemID),
			zap.Duration("budget", r.opts.DetailTimeout),
		)
		return DetailRecord{}, false
	}
}
