package notify

import (
	"go.uber.org/zap"
)

// LogSink writes notifications to the process log. It is the fallback
// channel when no webhook is configured, so operational alerts still
// land somewhere visible.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed notification sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send logs the notification
func (s *LogSink) Send(subject, body string, isHTML bool) bool {
	s.logger.Warn("ALERT",
		zap.String("subject", subject),
		zap.String("body", body))
	return true
}

// Configured always reports true; the log is always available
func (s *LogSink) Configured() bool {
	return true
}
