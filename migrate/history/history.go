// Package history manages the migration state table.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/badgie/migrator/internal/debug"
	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/dialect"
)

// SchemaState reports whether the state table is available
type SchemaState int

const (
	// NotInstalled means the state table is missing and wasn't created
	NotInstalled SchemaState = iota
	// Installed means the state table exists
	Installed
)

func (s SchemaState) String() string {
	if s == Installed {
		return "installed"
	}
	return "not installed"
}

// Manager persists and queries migration runs. Finding a run and writing it
// afterwards isn't atomic, so only a single runner may target a database.
type Manager struct {
	db      *sql.DB
	dialect dialect.Dialect
	log     *slog.Logger
}

// NewManager creates a new migration history manager
func NewManager(db *sql.DB, d dialect.Dialect, log *slog.Logger) *Manager {
	if log == nil {
		log = debug.Discard()
	}
	return &Manager{
		db:      db,
		dialect: d,
		log:     log,
	}
}

// EnsureSchema checks for the state table and creates it when it is missing
// and cfg.Install is set
func (m *Manager) EnsureSchema(ctx context.Context, cfg *migrate.Config) (SchemaState, error) {
	m.log.Debug("verifying state table", "dialect", m.dialect.Name())

	exists, err := m.dialect.StateTableExists(ctx, m.db)
	if err != nil {
		return NotInstalled, err
	}
	if exists {
		m.log.Debug("state table found")
		return Installed, nil
	}

	m.log.Debug("state table not found", "install", cfg.Install)
	if !cfg.Install {
		return NotInstalled, nil
	}

	m.log.Info("creating migration state table", "dialect", m.dialect.Name())
	if _, err := m.db.ExecContext(ctx, m.dialect.CreateStateTableStatement()); err != nil {
		return NotInstalled, fmt.Errorf("failed to create migration table: %w", err)
	}
	return Installed, nil
}

// FindByFilename returns the run recorded for filename, or nil when the file
// was never run
func (m *Manager) FindByFilename(ctx context.Context, filename string) (*migrate.MigrationRun, error) {
	query, args := m.dialect.SelectRunByFilename(filename)
	run, err := scanRun(m.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query migration %s: %w", filename, err)
	}
	return run, nil
}

// List returns all recorded runs ordered by filename
func (m *Manager) List(ctx context.Context) ([]*migrate.MigrationRun, error) {
	rows, err := m.db.QueryContext(ctx, m.dialect.SelectRuns())
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var runs []*migrate.MigrationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Record inserts run, or updates the existing row with the same filename when
// isUpdate is set. It uses its own connection from the pool and therefore has
// to be called after the migration's batches are committed.
func (m *Manager) Record(ctx context.Context, run *migrate.MigrationRun, isUpdate bool) error {
	query, args := m.dialect.InsertRun(run)
	if isUpdate {
		query, args = m.dialect.UpdateRun(run)
	}

	m.log.Debug("saving in migration table", "file", run.Filename, "result", run.Result, "update", isUpdate)
	if _, err := m.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", run.Filename, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*migrate.MigrationRun, error) {
	var run migrate.MigrationRun
	var lastRun any
	var result int64

	if err := row.Scan(&run.ID, &lastRun, &run.Filename, &run.Checksum, &result); err != nil {
		return nil, err
	}

	t, err := parseTimestamp(lastRun)
	if err != nil {
		return nil, err
	}
	run.LastRun = t
	run.Result = migrate.Result(result)
	return &run, nil
}
