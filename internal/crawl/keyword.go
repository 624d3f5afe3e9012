package crawl

import (
	"context"

	"go.uber.org/zap"
)

// crawlKeyword pages through search results for one keyword until an empty
// page, a short page, or the page ceiling. Provider errors terminate the
// task immediately but keep the partial accumulation; nothing escapes past
// the CrawlResult boundary.
func (r *run) crawlKeyword(ctx context.Context, keyword string) CrawlResult {
	start := r.o.clock.Now()
	res := CrawlResult{Keyword: keyword}

	for page := 1; page <= r.opts.MaxPages; page++ {
		items, err := r.o.search.Search(ctx, keyword, page, r.opts.PageSize)
		if err != nil {
			res.Err = err.Error()
			res.Duration = r.o.clock.Now().Sub(start)
			r.o.logger.Warn("keyword search failed",
				zap.String("keyword", keyword),
				zap.Int("page", page),
				zap.Error(err),
			)
			return res
		}
		res.Pages++
		r.stats.TotalPages.Add(1)

		if len(items) == 0 {
			r.o.logger.Debug("empty page; stopping pagination",
				zap.String("keyword", keyword),
				zap.Int("page", page),
			)
			break
		}

		r.stats.TotalItems.Add(int64(len(items)))
		for i := range items {
			if items[i].Keyword == "" {
				items[i].Keyword = keyword
			}
			r.dedup.Admit(items[i])
		}
		res.Items = append(res.Items, items...)
		r.o.logger.Debug("page fetched",
			zap.String("keyword", keyword),
			zap.Int("page", page),
			zap.Int("items", len(items)),
		)

		// A short page is the provider's last page.
		if len(items) < r.opts.PageSize || page == r.opts.MaxPages {
			break
		}

		r.o.pause.Pause(ctx, r.opts.Delay)
		if ctx.Err() != nil {
			res.Err = ctx.Err().Error()
			res.Duration = r.o.clock.Now().Sub(start)
			return res
		}
	}

	res.Success = true
	res.Duration = r.o.clock.Now().Sub(start)
	return res
}
