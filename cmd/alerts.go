package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/impostorwatch/impostorwatch/pkg/alert"
)

// alertsCmd implements: impostorwatch alerts
//
// Prints the most recent warnings posted, newest first.
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show recently posted warnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		limit, _ := cmd.Flags().GetInt("limit")
		alerts, err := e.db.RecentAlerts(cmd.Context(), limit)
		if err != nil {
			return err
		}

		scammers, err := e.db.ScammerUsernames(cmd.Context())
		if err != nil {
			return err
		}
		for _, a := range alerts {
			fmt.Printf("%s  @%s -> @%s  %s\n",
				a.CreatedAt.Format("2006-01-02 15:04"),
				scammers[a.ScammerID], a.VictimUsername,
				alert.TweetURL(scammers[a.ScammerID], a.TweetID))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.Flags().Int("limit", 20, "Maximum number of alerts to show")
}
