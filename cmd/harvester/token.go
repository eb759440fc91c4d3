package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"harvester/pkg/auth"
)

var (
	flagSubject string
	flagRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the report API",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := auth.ParseRole(flagRole)
		if err != nil {
			return fmt.Errorf("unknown role %q", flagRole)
		}

		jwt, err := newJWTService()
		if err != nil {
			return err
		}

		token, err := jwt.GenerateToken(flagSubject, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagSubject, "subject", "cli", "token subject")
	tokenCmd.Flags().StringVar(&flagRole, "role", string(auth.RoleViewer), "viewer or admin")
}
