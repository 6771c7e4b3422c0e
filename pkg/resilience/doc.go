// Package resilience provides error classification, alert throttling,
// rolling error statistics, and retry logic for the opswatch service.
//
// This package implements the following patterns:
//
// # Error Reporting
//
// The reporter is the single entry point for application error paths.
// It classifies the error by domain, records it in the bounded
// tracker, and routes high and critical severities through the
// throttler to the notification sink.
//
//	reporter := resilience.NewReporter(classifier, tracker, throttler, logger, m)
//	reporter.ReportError(ctx, err, resilience.DomainCommand, "settings.update", metadata)
//
// # Alert Throttling
//
// Notifications are deduplicated per error fingerprint with a fixed
// cooldown window so a cascading failure produces one alert, not a
// storm.
//
//	throttler := resilience.NewThrottler(sink, resilience.DefaultThrottleConfig(), logger, m)
//	sent := throttler.MaybeNotify(fp, subject, body, resilience.SeverityCritical, false)
//
// # Retry
//
// The retry mechanism re-runs failed operations with a fixed
// inter-attempt delay by default; exponential backoff and jitter are
// available behind the same configuration.
//
//	err := resilience.WithRetry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
//		return riskyOperation(ctx)
//	})
//
// # Error Statistics
//
// The tracker keeps a bounded ledger of recent errors keyed by
// fingerprint for diagnostics and the recent-error-rate health probe.
//
//	stats := tracker.Stats()
//
// All components are explicitly constructed and dependency-injected;
// the package holds no process-wide singletons. Everything is safe
// for concurrent use.
package resilience
