package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dev.helix.sqlmaint/internal/app"
	"dev.helix.sqlmaint/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "maintctl",
	Short: "SQL Server index maintenance orchestrator",
	Long: `maintctl runs fragmentation-driven ALTER INDEX maintenance across one
or more SQL Server databases, with pause/resume/skip/stop control and a
persisted run history.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openApp loads configuration and wires up a ready-to-use App. Callers
// must Close() the returned app.
func openApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

// cmdContext returns the command's context, falling back to Background if
// cobra hasn't set one (it does once ExecuteContext or a subcommand's own
// Context call touches it, but plain Execute() leaves it nil).
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
