// ABOUTME: User CLI commands
// ABOUTME: Implements user add, list and staff subcommands

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/forum"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE:  runUserList,
}

var userStaffCmd = &cobra.Command{
	Use:   "staff <username>",
	Short: "Grant or revoke staff roles (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserStaff,
}

var (
	userEmail     string
	userAdmin     bool
	userModerator bool
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userListCmd, userStaffCmd)

	userAddCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	userAddCmd.Flags().BoolVar(&userAdmin, "admin", false, "make the user an admin")
	userAddCmd.Flags().BoolVar(&userModerator, "moderator", false, "make the user a moderator")
	userStaffCmd.Flags().BoolVar(&userAdmin, "admin", false, "admin role")
	userStaffCmd.Flags().BoolVar(&userModerator, "moderator", false, "moderator role")
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	u, err := svc.CreateUser(cmd.Context(), forum.NewUserParams{
		Username:  args[0],
		Email:     userEmail,
		Admin:     userAdmin,
		Moderator: userModerator,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	color.Green("Created user: %s", u.Username)
	fmt.Printf("ID: %d\n", u.ID)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	users, err := svc.Users(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tEMAIL\tROLE")
	for _, u := range users {
		role := ""
		switch {
		case u.Admin:
			role = "admin"
		case u.Moderator:
			role = "moderator"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.Email, role)
	}
	return w.Flush()
}

func runUserStaff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}

	u, err := svc.SetStaff(ctx, actor, args[0], userAdmin, userModerator)
	if err != nil {
		return err
	}
	color.Green("%s: admin=%t moderator=%t", u.Username, u.Admin, u.Moderator)
	return nil
}
