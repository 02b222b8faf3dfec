// ABOUTME: Category CLI commands
// ABOUTME: Implements category list and new subcommands

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/forum"
)

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE:  runCategoryList,
}

var categoryNewCmd = &cobra.Command{
	Use:   "new <name> [description]",
	Short: "Create a category (staff only)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCategoryNew,
}

var (
	categoryAutoClose  float64
	categoryRestricted bool
)

func init() {
	rootCmd.AddCommand(categoryCmd)
	categoryCmd.AddCommand(categoryListCmd, categoryNewCmd)

	categoryNewCmd.Flags().Float64Var(&categoryAutoClose, "auto-close", 0, "close new topics after this many hours")
	categoryNewCmd.Flags().BoolVar(&categoryRestricted, "restricted", false, "only staff can read")
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	cats, err := svc.Categories(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTOPICS\tAUTO-CLOSE\tDESCRIPTION")
	for _, c := range cats {
		autoClose := "-"
		if c.AutoCloseHours != nil {
			autoClose = fmt.Sprintf("%gh", *c.AutoCloseHours)
		}
		name := c.Name
		if c.ReadRestricted {
			name += " 🔒"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, c.TopicCount, autoClose, c.Description)
	}
	return w.Flush()
}

func runCategoryNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}

	p := forum.NewCategoryParams{Name: args[0], ReadRestricted: categoryRestricted}
	if len(args) > 1 {
		p.Description = args[1]
	}
	if cmd.Flags().Changed("auto-close") {
		p.AutoCloseHours = &categoryAutoClose
	}

	c, err := svc.CreateCategory(ctx, actor, p)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	color.Green("Created category: %s", c.Name)
	return nil
}
