package health

import (
	"context"
	"fmt"
	"time"

	"github.com/harborline/opswatch/pkg/resilience"
)

// Pinger is the slice of the data store the store probe needs
type Pinger interface {
	Ping(ctx context.Context) error
	GuildCount(ctx context.Context) (int64, error)
}

// StatusSource reports platform connection state for the platform probe
type StatusSource interface {
	IsReady() bool
	Counts() (guilds, users, channels int)
}

// SinkStatus is the slice of the notification sink the sink probe needs
type SinkStatus interface {
	Configured() bool
}

// StoreProbe checks database connectivity and round-trip latency.
// A failed ping or count query is critical; a slow round trip is a
// warning.
func StoreProbe(store Pinger, latencyWarn time.Duration) ProbeFunc {
	if latencyWarn <= 0 {
		latencyWarn = 500 * time.Millisecond
	}

	return func(ctx context.Context) (Result, error) {
		start := time.Now()

		if err := store.Ping(ctx); err != nil {
			return Result{
				Status:  StatusCritical,
				Message: fmt.Sprintf("database ping failed: %v", err),
			}, nil
		}

		count, err := store.GuildCount(ctx)
		if err != nil {
			return Result{
				Status:  StatusCritical,
				Message: fmt.Sprintf("guild count query failed: %v", err),
			}, nil
		}

		elapsed := time.Since(start)
		meta := map[string]string{
			"guild_count": fmt.Sprintf("%d", count),
			"latency":     elapsed.String(),
		}

		if elapsed > latencyWarn {
			return Result{
				Status:   StatusWarning,
				Message:  fmt.Sprintf("database round trip took %s", elapsed.Round(time.Millisecond)),
				Metadata: meta,
			}, nil
		}

		return Result{Status: StatusHealthy, Metadata: meta}, nil
	}
}

// PlatformProbe checks the platform API connection. A connection that
// is not ready is critical.
func PlatformProbe(source StatusSource) ProbeFunc {
	return func(ctx context.Context) (Result, error) {
		if !source.IsReady() {
			return Result{
				Status:  StatusCritical,
				Message: "platform connection not ready",
			}, nil
		}

		guilds, users, channels := source.Counts()
		return Result{
			Status: StatusHealthy,
			Metadata: map[string]string{
				"guilds":   fmt.Sprintf("%d", guilds),
				"users":    fmt.Sprintf("%d", users),
				"channels": fmt.Sprintf("%d", channels),
			},
		}, nil
	}
}

// SinkProbe reports whether the notification sink is configured. An
// unconfigured sink is a warning, never critical: the service runs
// fine without outbound alerts.
func SinkProbe(sink SinkStatus) ProbeFunc {
	return func(ctx context.Context) (Result, error) {
		if !sink.Configured() {
			return Result{
				Status:  StatusWarning,
				Message: "notification sink not configured, alerts are logged only",
			}, nil
		}
		return Result{Status: StatusHealthy}, nil
	}
}

// ErrorRateProbe watches the recent error rate from tracker stats.
// Crossing the threshold is critical, crossing half of it is a
// warning.
func ErrorRateProbe(stats func() resilience.Stats, threshold int) ProbeFunc {
	if threshold <= 0 {
		threshold = 10
	}

	return func(ctx context.Context) (Result, error) {
		s := stats()
		meta := map[string]string{
			"recent_errors": fmt.Sprintf("%d", s.RecentCount),
			"threshold":     fmt.Sprintf("%d", threshold),
		}

		switch {
		case s.RecentCount >= threshold:
			return Result{
				Status:   StatusCritical,
				Message:  fmt.Sprintf("%d errors in recent window", s.RecentCount),
				Metadata: meta,
			}, nil
		case s.RecentCount >= (threshold+1)/2:
			return Result{
				Status:   StatusWarning,
				Message:  fmt.Sprintf("elevated error rate: %d in recent window", s.RecentCount),
				Metadata: meta,
			}, nil
		}

		return Result{Status: StatusHealthy, Metadata: meta}, nil
	}
}
