package cmd

import (
	"github.com/spf13/cobra"
)

// refreshCmd implements: impostorwatch refresh
//
// Bulk-checks tracked accounts against the API and deactivates the ones
// reported as suspended.
var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Aliases: []string{"status"},
	Short:   "Refresh suspension status of tracked scammers",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		if err := e.requireBearer(); err != nil {
			return err
		}
		return e.pipeline().RefreshStatuses(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
