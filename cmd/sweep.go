package cmd

import (
	"github.com/spf13/cobra"
)

// sweepCmd implements: impostorwatch sweep
//
// One-shot pass over all tracked scammers: fetch new replies, classify
// them, and alert victims.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep tracked scammers once and alert victims",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		if err := e.requireBearer(); err != nil {
			return err
		}
		return e.pipeline().Sweep(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
