// Package dialect provides the engine specific SQL for the migration state table.
package dialect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/badgie/migrator/migrate"
)

// ErrUnsupportedDialect is returned for dialect names that have no implementation
var ErrUnsupportedDialect = errors.New("unsupported dialect")

// Name identifies a SQL dialect
type Name string

const (
	SqlServer Name = "SqlServer"
	Postgres  Name = "Postgres"
	MySql     Name = "MySql"
	SQLite    Name = "SQLite"
)

// Names lists all supported dialects
var Names = []Name{SqlServer, Postgres, MySql, SQLite}

// Dialect hides engine differences of the state table. All variants share the
// same logical shape: id, last run, filename, checksum and result.
type Dialect interface {
	// Name reports the dialect name
	Name() Name
	// DriverName is the default database/sql driver name for this dialect
	DriverName() string
	// StateTableExists reports whether the state table is installed
	StateTableExists(ctx context.Context, q migrate.Querier) (bool, error)
	// CreateStateTableStatement returns the DDL creating the state table
	CreateStateTableStatement() string
	// SelectRunByFilename must return a query selecting id, last run,
	// filename, checksum and result (in that order) for a single filename
	SelectRunByFilename(filename string) (query string, args []any)
	// SelectRuns returns a query selecting all runs in the same column order,
	// ordered by filename
	SelectRuns() (query string)
	// InsertRun returns the statement inserting a new run
	InsertRun(run *migrate.MigrationRun) (query string, args []any)
	// UpdateRun returns the statement updating last run, result and checksum
	// of the run with the same filename
	UpdateRun(run *migrate.MigrationRun) (query string, args []any)
}

// Parse resolves a dialect name case-insensitively. An empty name resolves to Postgres.
func Parse(name string) (Name, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Postgres, nil
	}
	for _, n := range Names {
		if strings.EqualFold(string(n), name) {
			return n, nil
		}
	}
	switch strings.ToLower(name) {
	case "mssql", "sqlserver":
		return SqlServer, nil
	case "postgresql", "pg":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("%w: %q (expected one of SqlServer, Postgres, MySql, SQLite)", ErrUnsupportedDialect, name)
}

// New creates the Dialect for name
func New(name string) (Dialect, error) {
	n, err := Parse(name)
	if err != nil {
		return nil, err
	}

	switch n {
	case SqlServer:
		return sqlServer{}, nil
	case Postgres:
		return postgres{}, nil
	case MySql:
		return mysql{}, nil
	case SQLite:
		return sqlite{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
}

// tableExists runs a COUNT(*) style existence query
func tableExists(ctx context.Context, q migrate.Querier, query string, args ...any) (bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check for state table: %w", err)
	}
	return count > 0, nil
}
