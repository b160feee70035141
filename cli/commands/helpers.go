package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/spf13/cobra"

	"github.com/badgie/migrator/cli/internal/config"
	"github.com/badgie/migrator/cli/internal/ui"
	"github.com/badgie/migrator/internal/debug"
	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/dialect"
	"github.com/badgie/migrator/migrate/runner"
)

// loadConfigs resolves the configurations for cmd from its flags and args
func loadConfigs(cmd *cobra.Command, args []string) ([]*migrate.Config, error) {
	loader, err := config.NewLoader(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return loader.Load(args)
}

// newLogger traces to stderr when any configuration asks for it
func newLogger(configs []*migrate.Config) *slog.Logger {
	verbose := false
	for _, cfg := range configs {
		verbose = verbose || cfg.Verbose
	}
	return debug.New(os.Stderr, verbose)
}

// driverName returns the database/sql driver for cfg
func driverName(cfg *migrate.Config) (string, error) {
	if cfg.Driver != "" {
		return cfg.Driver, nil
	}
	d, err := dialect.New(cfg.Dialect)
	if err != nil {
		return "", &migrate.ConfigError{Field: "sqltype", Err: err}
	}
	return d.DriverName(), nil
}

// openDB opens and pings the database described by cfg
func openDB(ctx context.Context, cfg *migrate.Config) (*sql.DB, error) {
	driver, err := driverName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.ConnectionString)
	if err != nil {
		return nil, &migrate.ConfigError{Field: "driver", Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// splitPattern returns the directory and file pattern a migration path refers to
func splitPattern(path string) (dir, pattern string) {
	if info, err := config.AppFs.Stat(path); err == nil && info.IsDir() {
		return path, runner.DefaultPattern
	}
	return filepath.Dir(path), filepath.Base(path)
}

// reportedError marks an error that was already printed
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// reportError prints err unless it was printed before
func reportError(err error, detailed bool) error {
	var rep *reportedError
	if errors.As(err, &rep) {
		return err
	}
	ui.PrintError("%s", describeError(err, detailed))
	return &reportedError{err: err}
}

// failedFile reports whether the run stopped at a file with an error
func failedFile(report *runner.Report) bool {
	if report == nil || len(report.Outcomes) == 0 {
		return false
	}
	return report.Outcomes[len(report.Outcomes)-1].Err != nil
}

// describeError renders err for the console. The detailed form adds the
// failing batch and the diagnostics reported by the database driver.
func describeError(err error, detailed bool) string {
	if !detailed {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(err.Error())

	var execErr *migrate.ExecutionError
	if errors.As(err, &execErr) {
		fmt.Fprintf(&b, "\n  batch %d of %s:", execErr.Batch, execErr.File)
		for _, line := range strings.Split(execErr.SQL, "\n") {
			fmt.Fprintf(&b, "\n    | %s", strings.TrimRight(line, "\r"))
		}
		if execErr.RolledBack {
			b.WriteString("\n  the batch was rolled back, earlier batches of this file stay committed")
		}
	}

	var pqErr *pq.Error
	var myErr *mysql.MySQLError
	var msErr mssql.Error
	switch {
	case errors.As(err, &pqErr):
		fmt.Fprintf(&b, "\n  postgres %s %s (%s)", pqErr.Severity, pqErr.Code, pqErr.Code.Name())
		writeField(&b, "detail", pqErr.Detail)
		writeField(&b, "hint", pqErr.Hint)
		writeField(&b, "position", pqErr.Position)
		writeField(&b, "where", pqErr.Where)
	case errors.As(err, &myErr):
		fmt.Fprintf(&b, "\n  mysql error %d", myErr.Number)
		if myErr.SQLState != [5]byte{} {
			fmt.Fprintf(&b, " (sqlstate %s)", myErr.SQLState[:])
		}
	case errors.As(err, &msErr):
		fmt.Fprintf(&b, "\n  sql server error %d, state %d, class %d", msErr.Number, msErr.State, msErr.Class)
		if msErr.LineNo > 0 {
			fmt.Fprintf(&b, ", line %d", msErr.LineNo)
		}
		writeField(&b, "procedure", msErr.ProcName)
	}

	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value != "" {
		fmt.Fprintf(b, "\n  %s: %s", name, value)
	}
}
