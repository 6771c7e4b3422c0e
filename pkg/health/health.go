package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harborline/opswatch/pkg/logging"
	"github.com/harborline/opswatch/pkg/metrics"
	"github.com/harborline/opswatch/pkg/resilience"
)

// Status represents the health status of a check
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	// StatusError means the probe itself failed, distinct from a
	// probe reporting an unhealthy target
	StatusError Status = "error"
)

// metricValue maps a status onto the health gauge
func (s Status) metricValue() float64 {
	switch s {
	case StatusHealthy:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	case StatusError:
		return 3
	default:
		return 3
	}
}

// Result is what a probe reports about its target
type Result struct {
	Status   Status            `json:"status"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ProbeFunc inspects a target and reports its status. A returned
// error means the probe itself failed.
type ProbeFunc func(ctx context.Context) (Result, error)

// Options configures a registered check
type Options struct {
	// Critical marks the check as one whose non-healthy status forces
	// the aggregate to critical
	Critical bool
	// Interval is the minimum time between runs of this check; zero
	// runs it every cycle
	Interval time.Duration
}

// CheckResult is the outcome of one probe run
type CheckResult struct {
	Name                string            `json:"name"`
	Status              Status            `json:"status"`
	Message             string            `json:"message,omitempty"`
	Error               string            `json:"error,omitempty"`
	Critical            bool              `json:"critical"`
	Duration            time.Duration     `json:"duration"`
	Timestamp           time.Time         `json:"timestamp"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Report is the aggregate outcome of one check cycle. Overall is the
// worst status observed across all checks in that cycle, recomputed
// fully every cycle.
type Report struct {
	Timestamp      time.Time               `json:"timestamp"`
	Duration       time.Duration           `json:"duration"`
	Overall        Status                  `json:"overall"`
	Checks         map[string]*CheckResult `json:"checks"`
	CriticalIssues []string                `json:"critical_issues,omitempty"`
	Warnings       []string                `json:"warnings,omitempty"`
}

// Alerter routes a critical aggregate through the alert throttler
type Alerter interface {
	MaybeNotify(fingerprint, subject, body string, severity resilience.Severity, force bool) bool
}

type check struct {
	name                string
	probe               ProbeFunc
	critical            bool
	interval            time.Duration
	lastRun             time.Time
	lastResult          *CheckResult
	consecutiveFailures int
}

// Config holds registry configuration
type Config struct {
	// Interval between scheduled check cycles
	Interval time.Duration
}

// DefaultConfig returns default registry configuration
func DefaultConfig() Config {
	return Config{Interval: 60 * time.Second}
}

// Registry runs named probes on a schedule and aggregates their
// results into one overall status.
type Registry struct {
	mu         sync.Mutex
	checks     map[string]*check
	lastReport *Report
	config     Config
	logger     *logging.Logger
	metrics    *metrics.Metrics
	alerter    Alerter
	now        func() time.Time

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewRegistry creates a new health check registry. metrics may be nil.
func NewRegistry(config Config, logger *logging.Logger, m *metrics.Metrics) *Registry {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Registry{
		checks:   make(map[string]*check),
		config:   config,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// SetAlerter wires the registry to an alert throttler; a critical
// aggregate raises one throttled notification.
func (r *Registry) SetAlerter(a Alerter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerter = a
}

// Register adds a named check. Registering an existing name replaces
// it and resets its state.
func (r *Registry) Register(name string, probe ProbeFunc, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checks[name] = &check{
		name:     name,
		probe:    probe,
		critical: opts.Critical,
		interval: opts.Interval,
	}
	r.logger.Info("Health check registered",
		"check", name,
		"critical", opts.Critical,
		"interval", opts.Interval.String(),
	)
}

// RunChecks runs all due probes concurrently and publishes a full
// report once every probe has completed. Checks whose own interval
// has not elapsed carry their previous result into the report.
func (r *Registry) RunChecks(ctx context.Context) *Report {
	start := time.Now()
	now := r.now()

	r.mu.Lock()
	var due []*check
	carried := make(map[string]*CheckResult)
	for _, ch := range r.checks {
		if ch.interval > 0 && !ch.lastRun.IsZero() && now.Sub(ch.lastRun) < ch.interval && ch.lastResult != nil {
			carried[ch.name] = ch.lastResult
			continue
		}
		due = append(due, ch)
	}
	r.mu.Unlock()

	results := make(map[string]*CheckResult, len(due))
	var wg sync.WaitGroup
	var resultsMu sync.Mutex

	for _, ch := range due {
		wg.Add(1)
		go func(ch *check) {
			defer wg.Done()

			res := r.runProbe(ctx, ch)

			resultsMu.Lock()
			results[ch.name] = res
			resultsMu.Unlock()
		}(ch)
	}
	wg.Wait()

	// Fold the fresh results back into check state
	r.mu.Lock()
	for name, res := range results {
		ch, ok := r.checks[name]
		if !ok {
			continue
		}
		ch.lastRun = now
		if res.Status == StatusHealthy {
			ch.consecutiveFailures = 0
		} else {
			ch.consecutiveFailures++
		}
		res.ConsecutiveFailures = ch.consecutiveFailures
		ch.lastResult = res
	}
	r.mu.Unlock()

	for name, res := range carried {
		results[name] = res
	}

	report := r.aggregate(now, results)
	report.Duration = time.Since(start)

	r.mu.Lock()
	r.lastReport = report
	alerter := r.alerter
	r.mu.Unlock()

	if r.metrics != nil {
		for name, res := range results {
			r.metrics.RecordHealthCheck(name, res.Status.metricValue(), res.Duration)
		}
		r.metrics.RecordHealthCycle()
	}

	if report.Overall == StatusCritical && alerter != nil {
		r.raiseAlert(alerter, report)
	}

	return report
}

// LastReport returns the most recent report, or nil before the first
// cycle.
func (r *Registry) LastReport() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReport
}

// Start begins scheduled check cycles. Safe to call more than once.
func (r *Registry) Start(ctx context.Context) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if r.running {
		return
	}

	r.running = true
	r.stopChan = make(chan struct{})
	go r.runLoop(ctx, r.stopChan)
	r.logger.Info("Health check scheduler started", "interval", r.config.Interval.String())
}

// Stop stops scheduling further cycles. In-flight probes run to
// completion.
func (r *Registry) Stop() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if !r.running {
		return
	}

	close(r.stopChan)
	r.running = false
	r.logger.Info("Health check scheduler stopped")
}

func (r *Registry) runLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			r.RunChecks(ctx)
		}
	}
}

// runProbe invokes a single probe, containing panics and mapping a
// probe failure to StatusError.
func (r *Registry) runProbe(ctx context.Context, ch *check) *CheckResult {
	start := time.Now()
	res := &CheckResult{
		Name:      ch.name,
		Critical:  ch.critical,
		Timestamp: r.now(),
	}

	var probeResult Result
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("probe panicked: %v", rec)
			}
		}()
		probeResult, err = ch.probe(ctx)
	}()

	res.Duration = time.Since(start)

	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		r.logger.Error("Health probe failed",
			"check", ch.name,
			"error", err.Error(),
		)
		return res
	}

	res.Status = probeResult.Status
	res.Message = probeResult.Message
	res.Metadata = probeResult.Metadata
	if res.Status == "" {
		res.Status = StatusError
		res.Error = "probe returned no status"
	}

	return res
}

// aggregate computes the cycle's overall status: any warning raises
// the aggregate to at least warning; any critical or errored check,
// or any critical-flagged check that is not healthy, forces critical.
func (r *Registry) aggregate(now time.Time, results map[string]*CheckResult) *Report {
	report := &Report{
		Timestamp: now,
		Overall:   StatusHealthy,
		Checks:    results,
	}

	for _, res := range results {
		switch {
		case res.Status == StatusCritical || res.Status == StatusError:
			report.Overall = StatusCritical
			report.CriticalIssues = append(report.CriticalIssues, describe(res))
		case res.Critical && res.Status != StatusHealthy:
			report.Overall = StatusCritical
			report.CriticalIssues = append(report.CriticalIssues, describe(res))
		case res.Status == StatusWarning:
			if report.Overall == StatusHealthy {
				report.Overall = StatusWarning
			}
			report.Warnings = append(report.Warnings, describe(res))
		}
	}

	sort.Strings(report.CriticalIssues)
	sort.Strings(report.Warnings)

	return report
}

func describe(res *CheckResult) string {
	detail := res.Message
	if detail == "" {
		detail = res.Error
	}
	if detail == "" {
		detail = string(res.Status)
	}
	return fmt.Sprintf("%s: %s", res.Name, detail)
}

func (r *Registry) raiseAlert(alerter Alerter, report *Report) {
	issues := strings.Join(report.CriticalIssues, "; ")
	fp := resilience.Fingerprint("healthcheck", resilience.SeverityCritical, issues)

	var b strings.Builder
	fmt.Fprintf(&b, "Overall: %s\n", report.Overall)
	fmt.Fprintf(&b, "Time: %s\n", report.Timestamp.Format(time.RFC3339))
	for _, issue := range report.CriticalIssues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(&b, "- warning: %s\n", warning)
	}

	alerter.MaybeNotify(fp, "[CRITICAL] Health check failed", b.String(), resilience.SeverityCritical, false)
}
