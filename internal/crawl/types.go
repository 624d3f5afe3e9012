// Package crawl implements the two-phase multi-keyword crawl orchestrator:
// a keyword search fan-out, a dedup barrier, and a detail fetch fan-out.
package crawl

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ItemSummary is one search hit returned by the search provider. The same
// item may surface under several keywords or pages; ItemID is the identity
// used for deduplication.
type ItemSummary struct {
	ItemID  string `json:"note_id"`
	Token   string `json:"xsec_token"`
	Source  string `json:"xsec_source,omitempty"`
	Title   string `json:"title,omitempty"`
	Author  string `json:"nickname,omitempty"`
	Cover   string `json:"cover,omitempty"`
	Keyword string `json:"keyword,omitempty"`
}

// DetailRecord is the enriched content fetched once per unique item.
// Count fields stay strings because the provider emits them that way
// ("1.2万" and similar).
type DetailRecord struct {
	ItemID    string    `json:"note_id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"desc,omitempty"`
	Images    []string  `json:"image_list,omitempty"`
	Author    string    `json:"nickname,omitempty"`
	Likes     string    `json:"liked_count,omitempty"`
	Collects  string    `json:"collected_count,omitempty"`
	Comments  string    `json:"comment_count,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

// Post pairs a detail record with the summary that discovered it.
type Post struct {
	Summary ItemSummary  `json:"basic_info"`
	Detail  DetailRecord `json:"detail"`
}

// CrawlResult is the per-keyword outcome of phase 1. Immutable once the
// scheduler collects it.
type CrawlResult struct {
	Keyword  string        `json:"keyword"`
	Success  bool          `json:"success"`
	Items    []ItemSummary `json:"items,omitempty"`
	Err      string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Pages    int           `json:"pages_crawled"`
	Duration time.Duration `json:"duration"`
}

// RunStats holds the process-wide counters for one run. Workers update the
// counters with atomic increments during both phases; Snapshot is only
// meaningful after the run drains. Timeouts are counted in their own
// counters and are not double-counted into the failure counters.
// UniqueItems freezes at the phase-1 barrier, while abandoned stragglers
// may still bump TotalPages/TotalItems afterwards, so the raw counters can
// run slightly ahead of the unique count they fed.
type RunStats struct {
	KeywordsAttempted atomic.Int64
	KeywordsSucceeded atomic.Int64
	KeywordsFailed    atomic.Int64
	KeywordsTimedOut  atomic.Int64
	TotalPages        atomic.Int64
	TotalItems        atomic.Int64
	UniqueItems       atomic.Int64
	DetailsFetched    atomic.Int64
	DetailsFailed     atomic.Int64
	DetailsTimedOut   atomic.Int64
}

// Snapshot copies the counters into a plain, serializable value.
func (s *RunStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		KeywordsAttempted: s.KeywordsAttempted.Load(),
		KeywordsSucceeded: s.KeywordsSucceeded.Load(),
		KeywordsFailed:    s.KeywordsFailed.Load(),
		KeywordsTimedOut:  s.KeywordsTimedOut.Load(),
		TotalPages:        s.TotalPages.Load(),
		TotalItems:        s.TotalItems.Load(),
		UniqueItems:       s.UniqueItems.Load(),
		DetailsFetched:    s.DetailsFetched.Load(),
		DetailsFailed:     s.DetailsFailed.Load(),
		DetailsTimedOut:   s.DetailsTimedOut.Load(),
	}
}

// StatsSnapshot is the read-only view of RunStats returned to callers.
type StatsSnapshot struct {
	KeywordsAttempted int64 `json:"keywords_attempted"`
	KeywordsSucceeded int64 `json:"keywords_succeeded"`
	KeywordsFailed    int64 `json:"keywords_failed"`
	KeywordsTimedOut  int64 `json:"keywords_timed_out"`
	TotalPages        int64 `json:"total_pages"`
	TotalItems        int64 `json:"total_items"`
	UniqueItems       int64 `json:"unique_items"`
	DetailsFetched    int64 `json:"details_fetched"`
	DetailsFailed     int64 `json:"details_failed"`
	DetailsTimedOut   int64 `json:"details_timed_out"`
}

// RunResult is the terminal output of one orchestrated run.
type RunResult struct {
	RunID    uuid.UUID     `json:"run_id"`
	Stats    StatsSnapshot `json:"stats"`
	Posts    []Post        `json:"posts"`
	Keywords []CrawlResult `json:"keywords"`
	Duration time.Duration `json:"duration"`
}

// Options are the parameters for one run. Zero timeouts disable the
// corresponding timer; a zero Delay skips the politeness pause (tests only,
// the provider rate-limits aggressively).
type Options struct {
	Keywords          []string
	MaxPages          int
	PageSize          int
	SearchConcurrency int
	DetailConcurrency int
	KeywordTimeout    time.Duration
	DetailTimeout     time.Duration
	Delay             time.Duration
	ProgressEvery     int
	RunID             uuid.UUID
}

// Validation failures; the only error class RunCrawl reports synchronously.
var (
	ErrNoKeywords       = errors.New("at least one keyword is required")
	ErrBadConcurrency   = errors.New("concurrency must be > 0")
	ErrBadPageSettings  = errors.New("max pages and page size must be > 0")
	ErrBadTimeout       = errors.New("timeouts must be >= 0")
	ErrMissingProviders = errors.New("search and detail providers are required")
)

// Validate rejects invalid inputs before any fan-out begins.
func (o Options) Validate() error {
	if len(o.Keywords) == 0 {
		return ErrNoKeywords
	}
	for _, kw := range o.Keywords {
		if kw == "" {
			return fmt.Errorf("empty keyword: %w", ErrNoKeywords)
		}
	}
	if o.SearchConcurrency <= 0 || o.DetailConcurrency <= 0 {
		return ErrBadConcurrency
	}
	if o.MaxPages <= 0 || o.PageSize <= 0 {
		return ErrBadPageSettings
	}
	if o.KeywordTimeout < 0 || o.DetailTimeout < 0 || o.Delay < 0 {
		return ErrBadTimeout
	}
	return nil
}
