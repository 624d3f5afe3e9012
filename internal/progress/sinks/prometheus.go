package sinks

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"notecrawler/internal/progress"
)

var (
	progressEventsTotal    *prometheus.CounterVec
	detailCompletedGauge   prometheus.Gauge
	keywordItemsObserved   prometheus.Counter
	progressCollectorsOnce sync.Once
)

func initProgressCollectors() {
	progressCollectorsOnce.Do(func() {
		progressEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_progress_events_total",
				Help: "Total progress events consumed, labeled by stage.",
			},
			[]string{"stage"},
		)
		detailCompletedGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_detail_completed",
				Help: "Detail fetches completed in the most recent progress event.",
			},
		)
		keywordItemsObserved = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_keyword_items_total",
				Help: "Items reported by finished keyword tasks.",
			},
		)
	})
}

// PrometheusSink exports progress events as Prometheus series.
type PrometheusSink struct{}

// NewPrometheusSink registers the collectors and returns the sink.
func NewPrometheusSink() *PrometheusSink {
	initProgressCollectors()
	return &PrometheusSink{}
}

// Consume updates the collectors for each event in the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		progressEventsTotal.WithLabelValues(string(evt.Stage)).Inc()
		switch evt.Stage {
		case progress.StageDetailProgress:
			detailCompletedGauge.Set(float64(evt.Completed))
		case progress.StageKeywordDone:
			if evt.Items > 0 {
				keywordItemsObserved.Add(float64(evt.Items))
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
