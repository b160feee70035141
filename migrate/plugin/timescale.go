package plugin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/dialect"
)

// functionsSchemaSince is the TimescaleDB release that moved the internal
// functions from _timescaledb_internal to _timescaledb_functions
var functionsSchemaSince = version.Must(version.NewVersion("2.12.0"))

// TimescaleDB pauses the TimescaleDB background workers (jobs, compression,
// continuous aggregates) while migrations run and resumes them afterwards.
type TimescaleDB struct {
	schema  string
	stopped bool
}

// NewTimescaleDB creates the TimescaleDB plugin
func NewTimescaleDB() *TimescaleDB {
	return &TimescaleDB{}
}

func (p *TimescaleDB) Name() string {
	return "TimescaleDB Background Worker Manager"
}

// ShouldActivate reports true for Postgres databases with the timescaledb
// extension installed. Other dialects never touch the connection.
func (p *TimescaleDB) ShouldActivate(ctx context.Context, q migrate.Querier, cfg *migrate.Config) (bool, error) {
	if name, err := dialect.Parse(cfg.Dialect); err != nil || name != dialect.Postgres {
		return false, nil
	}

	var ext string
	err := q.QueryRowContext(ctx, "SELECT extversion FROM pg_extension WHERE extname = 'timescaledb'").Scan(&ext)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not detect TimescaleDB extension: %w", err)
	}

	p.schema = functionsSchema(ext)
	return true, nil
}

func (p *TimescaleDB) PreMigration(ctx context.Context, q migrate.Querier, _ *migrate.Config) error {
	if _, err := q.ExecContext(ctx, p.statement("stop_background_workers")); err != nil {
		return fmt.Errorf("failed to stop TimescaleDB background workers: %w", err)
	}
	p.stopped = true
	return nil
}

func (p *TimescaleDB) PostMigration(ctx context.Context, q migrate.Querier, _ *migrate.Config) error {
	return p.restart(ctx, q)
}

func (p *TimescaleDB) OnMigrationFailure(ctx context.Context, q migrate.Querier, _ *migrate.Config, _ error) error {
	return p.restart(ctx, q)
}

// RecoveryHint is the statement an operator has to run when the workers
// couldn't be restarted
func (p *TimescaleDB) RecoveryHint() string {
	return p.statement("start_background_workers")
}

func (p *TimescaleDB) restart(ctx context.Context, q migrate.Querier) error {
	if !p.stopped {
		return nil
	}
	if _, err := q.ExecContext(ctx, p.statement("start_background_workers")); err != nil {
		return fmt.Errorf("failed to restart TimescaleDB background workers: %w", err)
	}
	p.stopped = false
	return nil
}

func (p *TimescaleDB) statement(fn string) string {
	schema := p.schema
	if schema == "" {
		schema = "_timescaledb_functions"
	}
	return fmt.Sprintf("SELECT %s.%s();", schema, fn)
}

// functionsSchema returns the schema holding the worker functions for the
// installed extension version. Unparsable versions are assumed to be recent.
func functionsSchema(extVersion string) string {
	v, err := version.NewVersion(extVersion)
	if err != nil || v.GreaterThanOrEqual(functionsSchemaSince) {
		return "_timescaledb_functions"
	}
	return "_timescaledb_internal"
}
