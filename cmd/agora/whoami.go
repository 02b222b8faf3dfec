// ABOUTME: Whoami command
// ABOUTME: Shows current identity and its forum account

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/identity"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show current identity",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	fmt.Printf("Identity: %s\n", identity.GetIdentity(identityFlag, "cli"))
	fmt.Printf("Database: %s\n", cfg.GetDBPath())

	u, err := currentUser(cmd.Context())
	if err != nil {
		color.Yellow("Account: %v", err)
		return nil
	}
	role := "member"
	switch {
	case u.Admin:
		role = "admin"
	case u.Moderator:
		role = "moderator"
	}
	fmt.Printf("Account: %s (ID %d, %s)\n", u.Username, u.ID, role)
	return nil
}
