package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/badgie/migrator/cli/internal/ui"
	"github.com/badgie/migrator/cli/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  configArgs(cobra.NoArgs),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(ui.Stdout, version.Get().FullString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
