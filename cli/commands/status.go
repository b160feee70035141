package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/badgie/migrator/cli/internal/ui"
	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/runner"
)

var statusCmd = &cobra.Command{
	Use:   "status [connection-string] [path]",
	Short: "Show which migrations are pending, applied or changed",
	Long: `Compare the migration files with the state table without executing
anything. A missing state table reports every file as pending.`,
	Args:          configArgs(cobra.RangeArgs(0, 2)),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	configs, err := loadConfigs(cmd, args)
	if err != nil {
		return err
	}
	log := newLogger(configs)

	for i, cfg := range configs {
		if len(configs) > 1 {
			ui.PrintHeader(fmt.Sprintf("Target %d/%d", i+1, len(configs)), cfg.Dialect+" "+cfg.Path)
		}
		if err := statusTarget(cmd.Context(), cfg, log); err != nil {
			return reportError(err, cfg.StackTraces)
		}
	}
	return nil
}

func statusTarget(ctx context.Context, cfg *migrate.Config, log *slog.Logger) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := runner.New(db, cfg, runner.WithLogger(log))
	if err != nil {
		return err
	}

	statuses, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		ui.PrintWarning("No migrations found in %s", cfg.Path)
		return nil
	}
	return ui.PrintStatus(statuses)
}
