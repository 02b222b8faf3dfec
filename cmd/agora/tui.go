// ABOUTME: TUI command
// ABOUTME: Opens the interactive forum browser

package main

import (
	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse the forum interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(svc, viewer(cmd.Context()))
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
