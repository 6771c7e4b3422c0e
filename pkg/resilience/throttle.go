package resilience

import (
	"sync"
	"time"

	"github.com/harborline/opswatch/internal/notify"
	"github.com/harborline/opswatch/pkg/logging"
	"github.com/harborline/opswatch/pkg/metrics"
)

// ThrottleConfig holds alert throttling configuration
type ThrottleConfig struct {
	// Cooldown is the minimum time between two notifications sharing
	// a fingerprint
	Cooldown time.Duration
	// MaxRecords bounds the throttle record map; insertion-oldest
	// records are evicted past this
	MaxRecords int
}

// DefaultThrottleConfig returns a default throttle configuration
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		Cooldown:   5 * time.Minute,
		MaxRecords: 1000,
	}
}

type throttleRecord struct {
	lastNotified time.Time
	count        int
}

// Throttler deduplicates and rate-limits outbound notifications per
// error fingerprint. Only high and critical severities (or a forced
// call) are eligible; everything inside the cooldown window is
// suppressed to prevent alert storms during cascading failures.
type Throttler struct {
	mu      sync.Mutex
	records map[string]*throttleRecord
	order   []string
	sink    notify.Sink
	config  ThrottleConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewThrottler creates a new alert throttler. metrics may be nil.
func NewThrottler(sink notify.Sink, config ThrottleConfig, logger *logging.Logger, m *metrics.Metrics) *Throttler {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultThrottleConfig().Cooldown
	}
	if config.MaxRecords <= 0 {
		config.MaxRecords = DefaultThrottleConfig().MaxRecords
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Throttler{
		records: make(map[string]*throttleRecord),
		sink:    sink,
		config:  config,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// MaybeNotify dispatches a notification for the fingerprint unless a
// notification for it was already sent within the cooldown window.
// Returns true when a dispatch was made. A sink failure does not
// raise and does not undo the cooldown; the notification is lost and
// logged.
func (t *Throttler) MaybeNotify(fingerprint, subject, body string, severity Severity, force bool) bool {
	if !force && severity < SeverityHigh {
		return false
	}

	t.mu.Lock()
	now := t.now()

	rec, ok := t.records[fingerprint]
	if ok && now.Sub(rec.lastNotified) < t.config.Cooldown {
		t.mu.Unlock()
		t.logger.Debug("Notification suppressed by cooldown",
			"fingerprint", fingerprint,
			"severity", severity.String(),
		)
		if t.metrics != nil {
			t.metrics.RecordAlert(severity.String(), false)
		}
		return false
	}

	if !ok {
		rec = &throttleRecord{}
		t.records[fingerprint] = rec
		t.order = append(t.order, fingerprint)

		if len(t.records) > t.config.MaxRecords {
			oldest := t.order[0]
			t.order = t.order[1:]
			delete(t.records, oldest)
		}
	}

	// The last-notified timestamp only moves forward
	if now.After(rec.lastNotified) {
		rec.lastNotified = now
	}
	rec.count++
	occurrences := rec.count
	t.mu.Unlock()

	delivered := t.dispatch(subject, body)
	if !delivered {
		t.logger.Warn("Notification lost",
			"fingerprint", fingerprint,
			"subject", subject,
			"occurrences", occurrences,
		)
	}

	if t.metrics != nil {
		t.metrics.RecordAlert(severity.String(), true)
	}

	return true
}

// dispatch calls the sink, containing any panic. A faulting sink must
// never reach the caller's error path.
func (t *Throttler) dispatch(subject, body string) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Notification sink panicked", "panic", r)
			delivered = false
		}
	}()

	return t.sink.Send(subject, body, false)
}

// Occurrences returns how many notifications have passed the cooldown
// check for the fingerprint
func (t *Throttler) Occurrences(fingerprint string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[fingerprint]; ok {
		return rec.count
	}
	return 0
}
