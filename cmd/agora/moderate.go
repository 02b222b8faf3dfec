// ABOUTME: Moderation CLI commands
// ABOUTME: Implements status toggles, auto-close, trash and pin dismissal

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/forum"
)

var statusCmd = &cobra.Command{
	Use:   "status <topic> <status>",
	Short: "Turn a topic status on (or off with --off): " + strings.Join(forum.Statuses, ", "),
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

var autoCloseCmd = &cobra.Command{
	Use:   "autoclose <topic> <hours|HH:MM|clear>",
	Short: "Close a topic automatically later",
	Args:  cobra.ExactArgs(2),
	RunE:  runAutoClose,
}

var trashCmd = &cobra.Command{
	Use:   "trash <topic>",
	Short: "Delete a topic (or restore it with --recover)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrash,
}

var dismissPinCmd = &cobra.Command{
	Use:   "dismiss <topic>",
	Short: "Stop a pinned topic from showing first for you",
	Args:  cobra.ExactArgs(1),
	RunE:  runDismissPin,
}

var (
	statusOff    bool
	recoverTopic bool
)

func init() {
	rootCmd.AddCommand(statusCmd, autoCloseCmd, trashCmd, dismissPinCmd)

	statusCmd.Flags().BoolVar(&statusOff, "off", false, "turn the status off")
	trashCmd.Flags().BoolVar(&recoverTopic, "recover", false, "restore a deleted topic")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	if _, err := svc.UpdateStatus(ctx, actor, topic.ID, args[1], !statusOff); err != nil {
		return err
	}
	if statusOff {
		color.Yellow("%s: %s off", topic.Title, args[1])
	} else {
		color.Green("%s: %s on", topic.Title, args[1])
	}
	return nil
}

func runAutoClose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	spec, err := forum.ParseAutoClose(args[1])
	if err != nil {
		return err
	}
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	updated, err := svc.SetAutoClose(ctx, actor, topic.ID, spec)
	if err != nil {
		return err
	}
	if updated.AutoCloseAt == nil {
		color.Yellow("Auto-close cleared on %s", updated.Title)
		return nil
	}
	color.Green("%s closes at %s", updated.Title, updated.AutoCloseAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func runTrash(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := svc.ResolveTopic(ctx, actor, args[0])
	if err != nil {
		return err
	}

	if recoverTopic {
		if _, err := svc.Recover(ctx, actor, topic.ID); err != nil {
			return err
		}
		color.Green("Recovered: %s", topic.Title)
		return nil
	}
	if _, err := svc.Trash(ctx, actor, topic.ID); err != nil {
		return err
	}
	color.Yellow("Deleted: %s", topic.Title)
	return nil
}

func runDismissPin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}
	if err := svc.ClearPin(ctx, actor, topic.ID); err != nil {
		return err
	}
	fmt.Printf("Dismissed pin on %s\n", topic.Title)
	return nil
}
