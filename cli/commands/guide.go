package commands

import (
	_ "embed"

	"github.com/spf13/cobra"

	"github.com/badgie/migrator/cli/internal/ui"
)

//go:embed guide.md
var guideMarkdown string

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how to name and write migrations",
	Args:  configArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ui.PrintMarkdown(guideMarkdown)
	},
}

func init() {
	rootCmd.AddCommand(guideCmd)
}
