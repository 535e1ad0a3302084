package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/impostorwatch/impostorwatch/internal/utils"
	"github.com/impostorwatch/impostorwatch/pkg/search"
	"github.com/impostorwatch/impostorwatch/pkg/storage"
)

var brandCmd = &cobra.Command{
	Use:   "brand",
	Short: "Manage protected brands",
}

// brandAddCmd implements: impostorwatch brand add <name>
//
// The official account is resolved through the API: from --username
// when given, otherwise from the first verified account the search
// surface returns for the name. With --no-account the brand is stored
// without an official presence and every reply from an impersonator
// counts as a scam attempt.
var brandAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a brand to protect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return fmt.Errorf("brand name cannot be empty")
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		b := storage.Brand{Name: name}
		noAccount, _ := cmd.Flags().GetBool("no-account")
		username, _ := cmd.Flags().GetString("username")
		switch {
		case noAccount:
		case username != "":
			if err := e.requireBearer(); err != nil {
				return err
			}
			user, err := e.client.UserByUsername(cmd.Context(), strings.TrimPrefix(username, "@"))
			if err != nil {
				return fmt.Errorf("resolving official account @%s: %w", username, err)
			}
			b.HasAccount = true
			b.AccountID = user.ID
			b.Username = user.Username
		default:
			if err := e.requireBearer(); err != nil {
				return err
			}
			users, err := search.FindAccounts(cmd.Context(), e.client, name)
			if err != nil {
				return fmt.Errorf("searching official account for %s: %w", name, err)
			}
			for _, u := range users {
				if u.Verified {
					b.HasAccount = true
					b.AccountID = u.ID
					b.Username = u.Username
					break
				}
			}
			if !b.HasAccount {
				return fmt.Errorf("no verified account found for %q; pass --username or --no-account", name)
			}
		}

		id, err := e.db.InsertBrand(cmd.Context(), b)
		if err != nil {
			return err
		}
		if b.HasAccount {
			utils.Log.Infof("Added brand %s (id %d, official @%s)", b.Name, id, b.Username)
		} else {
			utils.Log.Infof("Added brand %s (id %d, no official account)", b.Name, id)
		}
		return nil
	},
}

// brandListCmd implements: impostorwatch brand list
var brandListCmd = &cobra.Command{
	Use:   "list",
	Short: "List protected brands",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		brands, err := e.db.Brands(cmd.Context())
		if err != nil {
			return err
		}
		for _, b := range brands {
			official := "-"
			if b.HasAccount {
				official = "@" + b.Username
			}
			fmt.Printf("%d  %s  %s\n", b.ID, b.Name, official)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(brandCmd)
	brandCmd.AddCommand(brandAddCmd)
	brandCmd.AddCommand(brandListCmd)

	brandAddCmd.Flags().String("username", "", "The brand's official account handle")
	brandAddCmd.Flags().Bool("no-account", false, "The brand has no official account on the platform")
}
