// Package store is the persistence adapter: a pooled Postgres connection
// plus typed upsert/read operations for the six tables the ingestion
// engine and GEX scheduler write to and read from.
package store

import "time"

// Config holds database connection configuration, adapted from the
// teacher's libs/database.Config with the same retry/pool semantics.
type Config struct {
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	RetryAttempts int
	RetryDelay    time.Duration

	MigrationsPath string
}

// DefaultConfig returns a Config with the pool bounds spec §5 calls for
// (min=1, max=3-5 connections per ingestion process).
func DefaultConfig() *Config {
	return &Config{
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      1 * time.Second,
		MigrationsPath:  "migrations",
	}
}

// Validate normalizes zero-valued pool and retry-delay fields to their
// defaults and rejects a missing DSN. A negative RetryAttempts is clamped to
// zero and MigrationsPath is left as given.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return ErrInvalidDSN
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 5
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 1
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 1 * time.Minute
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 1 * time.Second
	}
	return nil
}
