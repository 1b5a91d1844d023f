package events

import (
	"context"
	"log/slog"
)

// LogSink writes events to the application log. Used when no message
// broker is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs each event at debug level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, e Event) error {
	s.logger.DebugContext(ctx, "cart event",
		slog.String("event", e.Name),
		slog.String("session_id", e.SessionID),
		slog.String("fingerprint", e.Fingerprint),
	)
	return nil
}

var _ Sink = (*LogSink)(nil)
