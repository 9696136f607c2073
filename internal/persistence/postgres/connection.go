package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/sawpanic/punit/internal/spec"
)

// Config holds the connection-pool settings for the spec registry's
// Postgres backing store, mirrored field-for-field on the donor's
// db.Config (infrastructure/db/connection.go).
type Config struct {
	DSN             string        `yaml:"dsn" env:"PUNIT_PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PUNIT_PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PUNIT_PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PUNIT_PG_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"PUNIT_PG_CONN_MAX_IDLE_TIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PUNIT_PG_QUERY_TIMEOUT"`
	Enabled         bool          `yaml:"enabled" env:"PUNIT_PG_ENABLED"`
}

// DefaultConfig returns conservative pool settings with persistence disabled;
// a deployment opts in by setting Enabled and DSN explicitly.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// Manager owns the pooled connection backing a SpecStore and reports its
// health, mirroring the donor's db.Manager split between connection
// lifecycle and repository construction.
type Manager struct {
	db    *sqlx.DB
	store *SpecStore
	cfg   Config
}

// NewManager opens a pooled connection per cfg and wraps it in a SpecStore.
// When cfg.Enabled is false it returns a Manager with no store, letting a
// deployment run entirely off the file/Redis layers of the spec source chain.
func NewManager(cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{cfg: cfg}, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Manager{
		db:    db,
		store: NewSpecStore(db, cfg.QueryTimeout),
		cfg:   cfg,
	}, nil
}

// Store returns the spec.Source backed by this connection, or nil when the
// manager was constructed with persistence disabled.
func (m *Manager) Store() spec.Source {
	if m.store == nil {
		return nil
	}
	return m.store
}

// Stats reports connection-pool counters for the report/metrics surface.
func (m *Manager) Stats() map[string]int64 {
	if m.db == nil {
		return map[string]int64{"enabled": 0}
	}
	stats := m.db.Stats()
	return map[string]int64{
		"enabled":       1,
		"max_open":      int64(stats.MaxOpenConnections),
		"open":          int64(stats.OpenConnections),
		"in_use":        int64(stats.InUse),
		"idle":          int64(stats.Idle),
		"wait_count":    stats.WaitCount,
		"wait_duration": int64(stats.WaitDuration.Milliseconds()),
	}
}

// Ping checks connectivity, returning nil immediately when disabled.
func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()
	return m.db.PingContext(pingCtx)
}

// Close releases the pooled connection, a no-op when disabled.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
