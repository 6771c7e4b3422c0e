package resilience

import (
	"sync"
	"time"

	"github.com/harborline/opswatch/internal/notify"
	"github.com/harborline/opswatch/pkg/logging"
)

// BreakerState is the delivery breaker's current disposition
type BreakerState int

const (
	// BreakerClosed allows deliveries through
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects deliveries until the cooldown passes
	BreakerOpen
	// BreakerHalfOpen allows one trial delivery through
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the delivery breaker
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive delivery failures
	// that opens the breaker
	FailureThreshold int
	// OpenFor is how long the breaker stays open before allowing a
	// trial delivery
	OpenFor time.Duration
}

// DefaultBreakerConfig returns a default breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenFor:          2 * time.Minute,
	}
}

// Breaker stops calling a failing delivery target for a while instead
// of hammering it on every alert.
type Breaker struct {
	config BreakerConfig

	mu           sync.Mutex
	state        BreakerState
	failures     int
	openedAt     time.Time
	trialPending bool

	now func() time.Time
}

// NewBreaker creates a delivery breaker
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.OpenFor <= 0 {
		config.OpenFor = DefaultBreakerConfig().OpenFor
	}

	return &Breaker{
		config: config,
		state:  BreakerClosed,
		now:    time.Now,
	}
}

// Allow reports whether a delivery may proceed. In the half-open
// state only one trial delivery passes per cooldown.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.config.OpenFor {
			b.state = BreakerHalfOpen
			b.trialPending = true
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.trialPending {
			b.trialPending = false
			return true
		}
		return false
	}
	return false
}

// Record feeds a delivery outcome back into the breaker
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.state = BreakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.config.FailureThreshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// State returns the breaker's current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerSink wraps a notification sink in a delivery breaker. When
// the target keeps failing, sends are short-circuited to false until
// the cooldown passes.
type BreakerSink struct {
	inner   notify.Sink
	breaker *Breaker
	logger  *logging.Logger
}

// NewBreakerSink wraps sink with a delivery breaker
func NewBreakerSink(sink notify.Sink, config BreakerConfig, logger *logging.Logger) *BreakerSink {
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &BreakerSink{
		inner:   sink,
		breaker: NewBreaker(config),
		logger:  logger,
	}
}

// Send delivers through the inner sink unless the breaker is open
func (s *BreakerSink) Send(subject, body string, isHTML bool) bool {
	if !s.breaker.Allow() {
		s.logger.Warn("Notification skipped, delivery breaker open",
			"subject", subject,
			"state", s.breaker.State().String(),
		)
		return false
	}

	ok := s.inner.Send(subject, body, isHTML)
	s.breaker.Record(ok)
	if !ok && s.breaker.State() == BreakerOpen {
		s.logger.Error("Delivery breaker opened after repeated send failures",
			"threshold", s.breaker.config.FailureThreshold,
		)
	}
	return ok
}

// Configured reports whether the inner sink is configured
func (s *BreakerSink) Configured() bool {
	return s.inner.Configured()
}
