package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/impostorwatch/impostorwatch/internal/utils"
	"github.com/impostorwatch/impostorwatch/pkg/storage"
)

var scammerCmd = &cobra.Command{
	Use:   "scammer",
	Short: "Manage tracked scammer accounts",
}

// scammerAddCmd implements: impostorwatch scammer add <username>
//
// Manually tracks an account the discovery search missed. The brand is
// matched from the handle by similarity unless --brand names one.
var scammerAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Track an impersonator account manually",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		if err := e.requireBearer(); err != nil {
			return err
		}

		username := strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
		if existing, ok, err := e.db.ScammerByUsername(cmd.Context(), username); err != nil {
			return err
		} else if ok {
			utils.Log.Infof("@%s is already tracked (brand id %d)", existing.Username, existing.BrandID)
			return nil
		}

		user, err := e.client.UserByUsername(cmd.Context(), username)
		if err != nil {
			return fmt.Errorf("looking up @%s: %w", username, err)
		}

		cache := storage.NewBrandCache(e.db)
		if err := cache.Refresh(cmd.Context()); err != nil {
			return err
		}

		var brand storage.Brand
		if name, _ := cmd.Flags().GetString("brand"); name != "" {
			found := false
			for _, b := range cache.All() {
				if strings.EqualFold(b.Name, name) {
					brand, found = b, true
					break
				}
			}
			if !found {
				return fmt.Errorf("no brand named %q. See 'impostorwatch brand list'", name)
			}
		} else {
			b, ok := cache.FindByUsername(user.Username)
			if !ok {
				return fmt.Errorf("no brand matches @%s, pass one with --brand", user.Username)
			}
			brand = b
		}

		if err := e.db.UpsertScammer(cmd.Context(), storage.Scammer{
			ID:        user.ID,
			Username:  user.Username,
			BrandID:   brand.ID,
			CreatedAt: user.CreatedAt,
			StartTime: time.Now().UTC(),
		}); err != nil {
			return err
		}
		utils.Log.Infof("Tracking @%s (%s) for brand %s", user.Username, user.Name, brand.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scammerCmd)
	scammerCmd.AddCommand(scammerAddCmd)

	scammerAddCmd.Flags().String("brand", "", "Brand name to attribute the account to")
}
