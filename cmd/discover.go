package cmd

import (
	"github.com/spf13/cobra"
)

// discoverCmd implements: impostorwatch discover
//
// One-shot account search over every brand, classifying candidates and
// tracking the confirmed impersonators.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search for new impersonator accounts once",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		if err := e.requireBearer(); err != nil {
			return err
		}
		return e.pipeline().Discover(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
