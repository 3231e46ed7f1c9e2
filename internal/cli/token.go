package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LuuuXXX/crater-ohos/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenMintCmd)
}

var tokenPermissions string

var tokenMintCmd = &cobra.Command{
	Use:   "mint <name>",
	Short: "Mint a new bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, tokens, err := openTokenRegistry()
		if err != nil {
			return err
		}
		defer db.Close()

		var perms []auth.Permission
		for _, p := range strings.Split(tokenPermissions, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			perms = append(perms, auth.Permission(p))
		}

		tok, err := tokens.Mint(cmd.Context(), args[0], perms, nil)
		if err != nil {
			return err
		}
		fmt.Printf("token: %s\n", tok.Value)
		return nil
	},
}

func init() {
	tokenMintCmd.Flags().StringVar(&tokenPermissions, "permissions", "read-experiments",
		"comma-separated permissions (read-experiments, write-experiments, manage-workers, admin)")
}
