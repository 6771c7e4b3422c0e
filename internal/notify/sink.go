package notify

// Sink delivers operational notifications to an external channel.
//
// Send must never panic and must never block indefinitely; any
// transport failure is reported through the boolean return. Callers
// treat a false return as "notification lost" and move on.
type Sink interface {
	Send(subject, body string, isHTML bool) bool
	Configured() bool
}

// NopSink discards all notifications. Used when no channel is
// configured and in tests.
type NopSink struct{}

// NewNopSink creates a sink that drops everything
func NewNopSink() *NopSink {
	return &NopSink{}
}

// Send discards the notification
func (s *NopSink) Send(subject, body string, isHTML bool) bool {
	return false
}

// Configured always reports false
func (s *NopSink) Configured() bool {
	return false
}
