package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(threshold int, openFor time.Duration, clock *time.Time) *Breaker {
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, OpenFor: openFor})
	b.now = func() time.Time { return *clock }
	return b
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(3, time.Minute, &clock)

	b.Record(false)
	b.Record(false)

	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(3, time.Minute, &clock)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}

	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(3, time.Minute, &clock)

	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(false)
	b.Record(false)

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenTrialAfterCooldown(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(2, time.Minute, &clock)

	b.Record(false)
	b.Record(false)
	assert.False(t, b.Allow())

	clock = clock.Add(time.Minute)

	// One trial passes, a second is held back
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestBreaker_TrialSuccessCloses(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(2, time.Minute, &clock)

	b.Record(false)
	b.Record(false)
	clock = clock.Add(time.Minute)

	assert.True(t, b.Allow())
	b.Record(true)

	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_TrialFailureReopens(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(2, time.Minute, &clock)

	b.Record(false)
	b.Record(false)
	clock = clock.Add(time.Minute)

	assert.True(t, b.Allow())
	b.Record(false)

	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())

	// The open window restarts from the failed trial
	clock = clock.Add(30 * time.Second)
	assert.False(t, b.Allow())
	clock = clock.Add(30 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerSink_ShortCircuitsOpenBreaker(t *testing.T) {
	sink := &mockSink{fail: true, configured: true}
	wrapped := NewBreakerSink(sink, BreakerConfig{FailureThreshold: 2, OpenFor: time.Hour}, nil)

	assert.False(t, wrapped.Send("subject", "body", false))
	assert.False(t, wrapped.Send("subject", "body", false))
	assert.Equal(t, 2, sink.calls)

	// Breaker is open now, the inner sink is no longer called
	assert.False(t, wrapped.Send("subject", "body", false))
	assert.Equal(t, 2, sink.calls)
}

func TestBreakerSink_PassesThroughHealthySink(t *testing.T) {
	sink := &mockSink{configured: true}
	wrapped := NewBreakerSink(sink, DefaultBreakerConfig(), nil)

	for i := 0; i < 10; i++ {
		assert.True(t, wrapped.Send("subject", "body", false))
	}
	assert.Equal(t, 10, sink.calls)
	assert.True(t, wrapped.Configured())
}
