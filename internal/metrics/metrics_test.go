package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	crawlRunsTotal = nil
	crawlKeywordsTotal = nil
	crawlDetailsTotal = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if crawlRunsTotal == nil || crawlKeywordsTotal == nil || crawlDetailsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveRun("succeeded", 3*time.Second)
	if val := testutil.ToFloat64(crawlRunsTotal.WithLabelValues("succeeded")); val != 1 {
		t.Errorf("Expected crawlRunsTotal{succeeded} to be 1, got %f", val)
	}

	AddDetails("fetched", 4)
	AddDetails("fetched", 0)
	if val := testutil.ToFloat64(crawlDetailsTotal.WithLabelValues("fetched")); val != 4 {
		t.Errorf("Expected crawlDetailsTotal{fetched} to be 4, got %f", val)
	}
}
