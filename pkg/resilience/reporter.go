package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harborline/opswatch/pkg/logging"
	"github.com/harborline/opswatch/pkg/metrics"
)

// Reporter is the inbound surface for application code: it classifies
// a reported error, records it in the tracker, and routes eligible
// severities through the throttler. Fire-and-forget: a failure inside
// the alerting path is logged and never masks the reported error.
type Reporter struct {
	classifier *Classifier
	tracker    *Tracker
	throttler  *Throttler
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewReporter creates a new error reporter. metrics may be nil.
func NewReporter(classifier *Classifier, tracker *Tracker, throttler *Throttler, logger *logging.Logger, m *metrics.Metrics) *Reporter {
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Reporter{
		classifier: classifier,
		tracker:    tracker,
		throttler:  throttler,
		logger:     logger,
		metrics:    m,
	}
}

// ReportError classifies, tracks, and maybe notifies about an error.
// Safe to call from any error path; it never panics and never returns
// anything the caller has to handle.
func (r *Reporter) ReportError(ctx context.Context, err error, domain Domain, contextTag string, metadata map[string]interface{}) {
	if err == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Error reporting failed",
				"panic", rec,
				"original_error", err.Error(),
				"context", contextTag,
			)
		}
	}()

	severity := r.classifier.Classify(err, domain)

	event := ErrorEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Severity:  severity,
		Context:   contextTag,
		Message:   err.Error(),
		Cause:     stderrors.Unwrap(err),
		Metadata:  metadata,
	}

	r.tracker.Record(event)

	if r.metrics != nil {
		r.metrics.RecordError(string(domain), severity.String())
	}

	r.logAt(ctx, severity, err, domain, contextTag, metadata)

	subject := fmt.Sprintf("[%s] %s error in %s", strings.ToUpper(severity.String()), domain, contextTag)
	r.throttler.MaybeNotify(event.Fingerprint(), subject, formatAlertBody(event, domain), severity, false)
}

// Stats returns the tracker's current statistics
func (r *Reporter) Stats() Stats {
	return r.tracker.Stats()
}

// logAt logs the reported error at a level matching its severity
func (r *Reporter) logAt(ctx context.Context, severity Severity, err error, domain Domain, contextTag string, metadata map[string]interface{}) {
	entry := r.logger.WithContext(ctx).WithFields(logrus.Fields{
		"domain":   string(domain),
		"context":  contextTag,
		"severity": severity.String(),
		"error":    err.Error(),
	})
	for k, v := range metadata {
		entry = entry.WithField(k, v)
	}

	switch severity {
	case SeverityCritical, SeverityHigh:
		entry.Error("Error reported")
	case SeverityMedium:
		entry.Warn("Error reported")
	default:
		entry.Info("Error reported")
	}
}

func formatAlertBody(event ErrorEvent, domain Domain) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Severity: %s\n", event.Severity)
	fmt.Fprintf(&b, "Domain: %s\n", domain)
	fmt.Fprintf(&b, "Context: %s\n", event.Context)
	fmt.Fprintf(&b, "Error: %s\n", event.Message)
	fmt.Fprintf(&b, "Time: %s\n", event.Timestamp.Format(time.RFC3339))

	if len(event.Metadata) > 0 {
		b.WriteString("Metadata:\n")
		for k, v := range event.Metadata {
			fmt.Fprintf(&b, "  %s: %v\n", k, v)
		}
	}

	return b.String()
}
