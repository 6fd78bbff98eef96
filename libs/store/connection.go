package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps a pooled *sql.DB with the typed operations the ingestion
// engine and GEX scheduler need. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	config *Config
}

// Connect opens a pooled Postgres connection with retry and exponential
// backoff, matching the teacher's libs/database.Connect.
func Connect(ctx context.Context, config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var db *sql.DB
	var err error

	delay := config.RetryDelay
	for attempt := 0; attempt <= config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		db, err = sql.Open("pgx", config.DSN)
		if err != nil {
			if attempt == config.RetryAttempts {
				return nil, fmt.Errorf("%w: open after %d attempts: %v", ErrConnectionFailed, attempt+1, err)
			}
			continue
		}

		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

		if err = db.PingContext(ctx); err != nil {
			db.Close()
			if attempt == config.RetryAttempts {
				return nil, fmt.Errorf("%w: ping after %d attempts: %v", ErrConnectionFailed, attempt+1, err)
			}
			continue
		}

		return &Store{db: db, config: config}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

// ConnectWithMigrations connects and applies migrations from
// config.MigrationsPath before returning.
func ConnectWithMigrations(ctx context.Context, config *Config) (*Store, error) {
	s, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(s.db, config.MigrationsPath); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return s, nil
}

// HealthCheck pings the database with a bounded timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

// Stats exposes the underlying connection pool statistics.
func (s *Store) Stats() sql.DBStats { return s.db.Stats() }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }
