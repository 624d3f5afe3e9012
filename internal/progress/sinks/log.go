// Package sinks provides Sink implementations for the progress hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"notecrawler/internal/progress"
)

// LogSink emits structured logs for progress streams. Useful during
// development or when no durable sink is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID.String()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Keyword != "" {
			fields = append(fields, zap.String("keyword", evt.Keyword))
		}
		if evt.Pages > 0 {
			fields = append(fields, zap.Int64("pages", evt.Pages))
		}
		if evt.Items > 0 {
			fields = append(fields, zap.Int64("items", evt.Items))
		}
		if evt.Total > 0 {
			fields = append(fields, zap.Int64("completed", evt.Completed), zap.Int64("total", evt.Total))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
