package crawl

import (
	"context"
	"time"
)

// SearchProvider returns one page of item summaries for a keyword. An empty
// slice with a nil error signals end of results; a non-nil error is the
// page's definitive failure (no retries at this layer).
type SearchProvider interface {
	Search(ctx context.Context, keyword string, page, pageSize int) ([]ItemSummary, error)
}

// DetailProvider fetches the enriched record for one discovered item.
type DetailProvider interface {
	FetchDetail(ctx context.Context, itemID, token, source string) (DetailRecord, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
