package crawl

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"notecrawler/internal/progress"
)

// errTimeout is the error tag recorded for tasks that outrun their budget.
const errTimeout = "timeout"

// searchPhase fans one keyword task out per keyword over a pool of width
// min(SearchConcurrency, len(keywords)) and collects every CrawlResult,
// success or failure. One failing or stuck keyword never cancels siblings.
func (r *run) searchPhase(ctx context.Context) []CrawlResult {
	keywords := r.opts.Keywords
	width := min(r.opts.SearchConcurrency, len(keywords))
	sem := make(chan struct{}, width)
	results := make(chan CrawlResult, len(keywords))

	var wg sync.WaitGroup
	for _, kw := range keywords {
		wg.Add(1)
		go func(keyword string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- r.superviseKeyword(ctx, keyword)
		}(kw)
	}
	wg.Wait()
	close(results)

	out := make([]CrawlResult, 0, len(keywords))
	for res := range results {
		r.recordKeywordResult(res)
		out = append(out, res)
	}
	return out
}

// superviseKeyword races the task's completion against its timeout. On
// expiry the task context is cancelled to bound the in-flight provider call,
// but the result is not awaited: the goroutine finishes into a buffered
// channel and is abandoned, so a stuck keyword cannot serialize the phase.
func (r *run) superviseKeyword(ctx context.Context, keyword string) CrawlResult {
	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan CrawlResult, 1)
	go func() {
		done <- r.crawlKeyword(taskCtx, keyword)
	}()

	if r.opts.KeywordTimeout <= 0 {
		res := <-done
		cancel()
		return res
	}

	timer := time.NewTimer(r.opts.KeywordTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		cancel()
		return res
	case <-timer.C:
		cancel()
		return CrawlResult{
			Keyword:  keyword,
			Err:      errTimeout,
			TimedOut: true,
			Duration: r.opts.KeywordTimeout,
		}
	}
}

// recordKeywordResult folds one collected CrawlResult into the run counters
// and progress stream. Runs on the collecting goroutine only.
func (r *run) recordKeywordResult(res CrawlResult) {
	switch {
	case res.TimedOut:
		r.stats.KeywordsTimedOut.Add(1)
		r.o.logger.Warn("keyword timed out",
			zap.String("keyword", res.Keyword),
			zap.Duration("budget", r.opts.KeywordTimeout),
		)
	case res.Success:
		r.stats.KeywordsSucceeded.Add(1)
		r.o.logger.Info("keyword complete",
			zap.String("keyword", res.Keyword),
			zap.Int("pages", res.Pages),
			zap.Int("items", len(res.Items)),
			zap.Duration("dur", res.Duration),
		)
	default:
		r.stats.KeywordsFailed.Add(1)
		r.o.logger.Warn("keyword failed",
			zap.String("keyword", res.Keyword),
			zap.String("error", res.Err),
			zap.Int("items_kept", len(res.Items)),
			zap.Duration("dur", res.Duration),
		)
	}
	r.emit(progress.Event{
		Stage:   progress.StageKeywordDone,
		Keyword: res.Keyword,
		Pages:   int64(res.Pages),
		Items:   int64(len(res.Items)),
		Dur:     res.Duration,
		Note:    res.Err,
	})
}
