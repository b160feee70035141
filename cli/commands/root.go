package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/badgie/migrator/cli/internal/config"
	"github.com/badgie/migrator/cli/internal/ui"
	"github.com/badgie/migrator/cli/internal/version"
	"github.com/badgie/migrator/cli/internal/watch"
	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/plugin"
	"github.com/badgie/migrator/migrate/runner"
)

// Exit codes
const (
	ExitOK          = 0
	ExitRunFailure  = 1
	ExitConfigError = 2
)

var errAborted = errors.New("aborted by user")

var rootCmd = &cobra.Command{
	Use:   "migrator [connection-string] [path]",
	Short: "Apply ordered SQL migration scripts",
	Long: `Apply ordered SQL migration scripts to a database.

Scripts matching the path (a directory means *.sql inside it) run in
lexicographic order of their file names. Every applied script is recorded
with its checksum, so it runs only once. A script that changed since it was
applied stops the run unless --force is given.

Scripts are split into batches on lines consisting of GO only. Each batch
runs in its own transaction unless --no-transaction is given.

A JSON file with an array of configurations can be passed with --config
(legacy: -json=<file>) to migrate several databases in order.`,
	Example: `  migrator "postgres://localhost/app?sslmode=disable" "migrations/*.sql" -i
  migrator "server=db;user id=sa;password=secret" ./migrations -d SqlServer
  migrator "file:app.db" ./migrations -d SQLite --driver sqlite
  migrator --config targets.json`,
	Args:          configArgs(cobra.RangeArgs(0, 2)),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMigrate,
}

var (
	migrateWatch bool
	migrateYes   bool
)

func init() {
	rootCmd.Version = version.Get().String()

	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.Flags().BoolVarP(&migrateWatch, "watch", "w", false, "keep running and migrate again when the migration directory changes")
	rootCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "don't ask for confirmation when --force is given")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &migrate.ConfigError{Reason: "invalid flags", Err: err}
	})
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetArgs(config.NormalizeArgs(os.Args[1:]))
	err := rootCmd.ExecuteContext(ctx)

	var rep *reportedError
	if err != nil && !errors.As(err, &rep) {
		ui.PrintError("%v", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case migrate.IsConfigError(err):
		return ExitConfigError
	default:
		return ExitRunFailure
	}
}

// configArgs turns argument validation failures into configuration errors
func configArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &migrate.ConfigError{Reason: "invalid arguments", Err: err}
		}
		return nil
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	configs, err := loadConfigs(cmd, args)
	if err != nil {
		return err
	}
	log := newLogger(configs)

	if err := confirmForce(configs); err != nil {
		return err
	}

	if migrateWatch {
		if len(configs) != 1 {
			return &migrate.ConfigError{Field: "watch", Reason: "--watch works with a single configuration only"}
		}
		return watchTarget(cmd.Context(), configs[0], log)
	}

	return migrateAll(cmd.Context(), configs, log)
}

// migrateAll migrates every configuration in order and stops at the first failure
func migrateAll(ctx context.Context, configs []*migrate.Config, log *slog.Logger) error {
	start := time.Now()
	for i, cfg := range configs {
		if len(configs) > 1 {
			ui.PrintHeader(fmt.Sprintf("Migrating target %d/%d", i+1, len(configs)), fmt.Sprintf("%s %s", cfg.Dialect, cfg.Path))
		}
		if err := migrateTarget(ctx, cfg, log); err != nil {
			return err
		}
	}
	ui.PrintElapsed(time.Since(start))
	return nil
}

// migrateTarget migrates a single configuration. Every error is printed
// before it is returned.
func migrateTarget(ctx context.Context, cfg *migrate.Config, log *slog.Logger) (err error) {
	defer func() {
		if err != nil {
			err = reportError(err, cfg.StackTraces)
		}
	}()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := runner.New(db, cfg,
		runner.WithLogger(log),
		runner.WithPluginManager(plugin.NewManager(plugin.WithLogger(log))),
		runner.WithObserver(func(o runner.Outcome) {
			if o.Err != nil {
				ui.PrintFailure(o.File, describeError(o.Err, cfg.StackTraces))
				return
			}
			ui.PrintResult(o.Result, o.File)
		}),
	)
	if err != nil {
		return err
	}

	report, err := r.Run(ctx)
	if err != nil {
		if failedFile(report) {
			// already printed by the observer
			return &reportedError{err: err}
		}
		return err
	}

	ui.PrintSummary(report)
	return nil
}

func confirmForce(configs []*migrate.Config) error {
	if migrateYes || !ui.Interactive() {
		return nil
	}
	for _, cfg := range configs {
		if !cfg.Force {
			continue
		}
		ok, err := ui.Confirm("--force re-applies migrations that changed since they were run. Continue?")
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
		return nil
	}
	return nil
}

func watchTarget(ctx context.Context, cfg *migrate.Config, log *slog.Logger) error {
	migrateOnce := func(ctx context.Context) error {
		// failures are printed and watching goes on
		_ = migrateAll(ctx, []*migrate.Config{cfg}, log)
		return nil
	}

	dir, pattern := splitPattern(cfg.Path)
	w, err := watch.NewWatcher(dir, pattern, log, migrateOnce)
	if err != nil {
		return &migrate.ConfigError{Field: "path", Err: err}
	}

	_ = migrateOnce(ctx)
	ui.PrintSuccess("Watching %s for changes (ctrl+c to stop)", dir)
	return w.Run(ctx)
}
