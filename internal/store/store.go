package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/harborline/opswatch/pkg/config"
	"github.com/harborline/opswatch/pkg/errors"
)

// Store wraps the chat service database used by the health probes
type Store struct {
	db     *sqlx.DB
	config *config.DatabaseConfig
}

// New opens a connection to the chat service database
func New(cfg *config.DatabaseConfig) (*Store, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("database configuration is required")
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=10",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, errors.NewDatabaseError("connect", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewDatabaseError("ping", err)
	}

	return &Store{db: db, config: cfg}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the connection is alive
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.NewDatabaseError("ping", fmt.Errorf("connection is nil"))
	}

	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewDatabaseError("ping", err)
	}

	return nil
}

// GuildCount counts configured guilds, doubling as a cheap query
// round trip for the store health probe.
func (s *Store) GuildCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM guild_configs"); err != nil {
		return 0, errors.NewDatabaseError("guild count", err)
	}
	return count, nil
}

// Stats exposes connection pool statistics for diagnostics
func (s *Store) Stats() map[string]interface{} {
	stats := s.db.Stats()
	return map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration":    stats.WaitDuration.String(),
	}
}
