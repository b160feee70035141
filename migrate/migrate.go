// Package migrate applies ordered SQL migration scripts to a relational database.
// It tracks applied scripts by content checksum, detects drift and executes each
// script's batches with configurable transactional isolation.
package migrate

import (
	"context"
	"database/sql"
	"time"
)

// Result is the outcome of handling a single migration file
type Result int

const (
	// Run means the migration was executed for the first time
	Run Result = iota
	// Skipped means the migration was applied before and is unchanged
	Skipped
	// Changed means the migration was applied before and its content changed since
	Changed
)

func (r Result) String() string {
	switch r {
	case Run:
		return "Run"
	case Skipped:
		return "Skipped"
	case Changed:
		return "Changed"
	default:
		return "Unknown"
	}
}

// MigrationRun is a row of the migration state table
type MigrationRun struct {
	ID       int64
	LastRun  time.Time
	Filename string
	Checksum string
	Result   Result
}

// Config is the fully resolved configuration of a single migration target.
// It is read-only for the engine.
type Config struct {
	ConnectionString string `mapstructure:"connectionstring"`
	// Dialect selects the SQL dialect: SqlServer, Postgres, MySql or SQLite
	Dialect string `mapstructure:"sqltype"`
	// Driver overrides the database/sql driver name derived from Dialect
	Driver string `mapstructure:"driver"`
	// Path is a directory or a file pattern like "migrations/*.sql"
	Path           string `mapstructure:"path"`
	Force          bool   `mapstructure:"force"`
	Install        bool   `mapstructure:"install"`
	UseTransaction bool   `mapstructure:"usetransaction"`
	StrictEncoding bool   `mapstructure:"strictencoding"`
	EnablePlugins  bool   `mapstructure:"enableplugins"`
	Verbose        bool   `mapstructure:"verbose"`
	// StackTraces selects detailed failure diagnostics over a compact message
	StackTraces bool `mapstructure:"stacktraces"`
}

// DefaultConfig returns a Config with the defaults applied
func DefaultConfig() *Config {
	return &Config{
		Dialect:        "Postgres",
		Path:           ".",
		UseTransaction: true,
		EnablePlugins:  true,
		StackTraces:    true,
	}
}

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx used for
// single statements outside of a migration batch.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
