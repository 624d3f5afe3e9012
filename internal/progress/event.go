// Package progress defines the event stream emitted by crawl runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageKeywordDone    Stage = "KEYWORD_DONE"
	StageSearchDone     Stage = "SEARCH_PHASE_DONE"
	StageDetailProgress Stage = "DETAIL_PROGRESS"
	StageRunDone        Stage = "RUN_DONE"
)

// Event captures a single milestone of a crawl run.
type Event struct {
	// RunID identifies the run the event belongs to.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Keyword scopes KEYWORD_DONE events to one search term.
	Keyword string
	// Pages is the page count carried by keyword and phase events.
	Pages int64
	// Items is the item count carried by keyword and phase events.
	Items int64
	// Completed and Total describe detail-fetch progress.
	Completed int64
	Total     int64
	// Dur captures elapsed time for completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageSearchDone, StageRunDone:
	case StageKeywordDone:
		if e.Keyword == "" {
			return errors.New("keyword done requires keyword")
		}
	case StageDetailProgress:
		if e.Total <= 0 {
			return errors.New("detail progress requires total")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
