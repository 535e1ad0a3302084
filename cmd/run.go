package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/impostorwatch/impostorwatch/pkg/pipeline"
)

// runCmd implements: impostorwatch run [job]
//
// Runs a job on an interval until interrupted. Without an argument the
// full loop runs each tick: discover new scammers, refresh suspension
// status, then sweep for fresh scam replies.
var runCmd = &cobra.Command{
	Use:       "run [sweep|discover|refresh]",
	Short:     "Run the detection-and-alert loop continuously",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"sweep", "discover", "refresh"},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		if err := e.requireBearer(); err != nil {
			return err
		}

		p := e.pipeline()
		name := "detection"
		job := func(ctx context.Context) error {
			if err := p.Discover(ctx); err != nil {
				return err
			}
			if err := p.RefreshStatuses(ctx); err != nil {
				return err
			}
			return p.Sweep(ctx)
		}
		if len(args) == 1 {
			name = args[0]
			switch args[0] {
			case "sweep":
				job = p.Sweep
			case "discover":
				job = p.Discover
			case "refresh":
				job = p.RefreshStatuses
			default:
				return fmt.Errorf("unknown job: '%s'. See 'impostorwatch run --help'", args[0])
			}
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		runner := &pipeline.Runner{
			Interval:     interval,
			HeartbeatURL: viper.GetString("heartbeaturl"),
			Notifier:     e.notifier,
		}
		return runner.Run(cmd.Context(), name, job)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Duration("interval", 30*time.Minute, "Delay between runs")
}
