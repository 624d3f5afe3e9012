package crawl

import (
	"context"
	"time"
)

// pauseController abstracts the politeness pause between page requests. The
// provider enforces undocumented rate limits; skipping the pause degrades
// the success rate of every later call in the run.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
