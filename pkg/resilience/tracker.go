package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/harborline/opswatch/pkg/logging"
)

// ErrorEvent is an immutable record of a single reported error
type ErrorEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Severity  Severity               `json:"severity"`
	Context   string                 `json:"context"`
	Message   string                 `json:"message"`
	Cause     error                  `json:"-"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Fingerprint returns the deduplication key for this event
func (e ErrorEvent) Fingerprint() string {
	return Fingerprint(e.Context, e.Severity, e.Message)
}

// TrackedError is a tracked fingerprint with its latest event
type TrackedError struct {
	Event     ErrorEvent `json:"event"`
	Count     int        `json:"count"`
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
}

// Stats is a snapshot of the tracker's state
type Stats struct {
	TotalTracked    int            `json:"total_tracked"`
	CountsByContext map[string]int `json:"counts_by_context"`
	RecentCount     int            `json:"recent_count"`
	MostRecent      []TrackedError `json:"most_recent"`
}

// TrackerConfig holds error tracker configuration
type TrackerConfig struct {
	// Capacity bounds the number of tracked fingerprints
	Capacity int
	// RecentWindow is the lookback for the recent error rate
	RecentWindow time.Duration
}

// DefaultTrackerConfig returns a default tracker configuration
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Capacity:     100,
		RecentWindow: 5 * time.Minute,
	}
}

// mostRecentLimit caps the number of entries returned in Stats.MostRecent
const mostRecentLimit = 10

type trackedEntry struct {
	event     ErrorEvent
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// Tracker is a bounded in-memory ledger of recent errors keyed by
// fingerprint. Insertion-oldest entries are evicted once the capacity
// is exceeded. Reads take a snapshot and never mutate state.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*trackedEntry
	order   []string
	recent  []time.Time
	config  TrackerConfig
	logger  *logging.Logger
	now     func() time.Time
}

// NewTracker creates a new error tracker
func NewTracker(config TrackerConfig, logger *logging.Logger) *Tracker {
	if config.Capacity <= 0 {
		config.Capacity = DefaultTrackerConfig().Capacity
	}
	if config.RecentWindow <= 0 {
		config.RecentWindow = DefaultTrackerConfig().RecentWindow
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Tracker{
		entries: make(map[string]*trackedEntry),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Record stores the event under its fingerprint. A repeated
// fingerprint replaces the stored event and bumps its occurrence
// count; it keeps its original position in the eviction order.
func (t *Tracker) Record(event ErrorEvent) {
	fp := event.Fingerprint()
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[fp]; ok {
		entry.event = event
		entry.count++
		entry.lastSeen = now
	} else {
		t.entries[fp] = &trackedEntry{
			event:     event,
			count:     1,
			firstSeen: now,
			lastSeen:  now,
		}
		t.order = append(t.order, fp)

		if len(t.entries) > t.config.Capacity {
			oldest := t.order[0]
			t.order = t.order[1:]
			delete(t.entries, oldest)
			t.logger.Debug("Evicted oldest tracked error", "fingerprint", oldest)
		}
	}

	// Rolling record of occurrence times for the recent error rate;
	// pruned here so Stats stays a pure read.
	cutoff := now.Add(-t.config.RecentWindow)
	t.recent = append(t.recent, now)
	for len(t.recent) > 0 && t.recent[0].Before(cutoff) {
		t.recent = t.recent[1:]
	}
}

// Stats returns a snapshot of the tracker's state. Safe to call
// concurrently with Record.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		TotalTracked:    len(t.entries),
		CountsByContext: make(map[string]int),
	}

	all := make([]TrackedError, 0, len(t.entries))
	for _, entry := range t.entries {
		stats.CountsByContext[entry.event.Context] += entry.count
		all = append(all, TrackedError{
			Event:     entry.event,
			Count:     entry.count,
			FirstSeen: entry.firstSeen,
			LastSeen:  entry.lastSeen,
		})
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].LastSeen.After(all[j].LastSeen)
	})
	if len(all) > mostRecentLimit {
		all = all[:mostRecentLimit]
	}
	stats.MostRecent = all

	cutoff := t.now().Add(-t.config.RecentWindow)
	for i := len(t.recent) - 1; i >= 0; i-- {
		if t.recent[i].Before(cutoff) {
			break
		}
		stats.RecentCount++
	}

	return stats
}
