package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for toolwindow
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolwindow",
		Short: "Tool window usage interval analysis",
		Long: `Toolwindow reconstructs tool window usage intervals from open/close event logs.

It pairs opened and closed events per user into intervals, classifies each
interval by how the window was opened (manual or auto), and reports duration
statistics, an auto vs manual comparison and implicit-close transitions.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewAnalyzeCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
