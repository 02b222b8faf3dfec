// ABOUTME: Private message, invite and notification CLI commands
// ABOUTME: Implements pm send/list/remove, invite, redeem and notifications

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/forum"
)

var pmCmd = &cobra.Command{
	Use:   "pm",
	Short: "Private messages",
}

var pmSendCmd = &cobra.Command{
	Use:   "send <title> <message>",
	Short: "Start a private conversation",
	Args:  cobra.ExactArgs(2),
	RunE:  runPMSend,
}

var pmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your private conversations",
	RunE:  runPMList,
}

var pmRemoveCmd = &cobra.Command{
	Use:   "remove <topic> <username>",
	Short: "Remove a participant from a conversation",
	Args:  cobra.ExactArgs(2),
	RunE:  runPMRemove,
}

var inviteCmd = &cobra.Command{
	Use:   "invite <topic> <username|email>",
	Short: "Invite someone to a topic",
	Args:  cobra.ExactArgs(2),
	RunE:  runInvite,
}

var redeemCmd = &cobra.Command{
	Use:   "redeem <invite-key> <username>",
	Short: "Redeem an email invite, creating your account",
	Args:  cobra.ExactArgs(2),
	RunE:  runRedeem,
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show your notifications",
	RunE:  runNotifications,
}

var (
	pmTo        []string
	unreadOnly  bool
	markAllRead bool
)

func init() {
	rootCmd.AddCommand(pmCmd, inviteCmd, redeemCmd, notificationsCmd)
	pmCmd.AddCommand(pmSendCmd, pmListCmd, pmRemoveCmd)

	pmSendCmd.Flags().StringSliceVar(&pmTo, "to", nil, "recipient usernames")
	_ = pmSendCmd.MarkFlagRequired("to")
	notificationsCmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread notifications")
	notificationsCmd.Flags().BoolVar(&markAllRead, "mark-read", false, "mark all notifications read")
}

func runPMSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}

	topic, err := svc.CreatePrivateMessage(ctx, actor, args[0], args[1], pmTo)
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	color.Green("Sent: %s", topic.Title)
	fmt.Printf("ID: %d\n", topic.ID)
	return nil
}

func runPMList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topics, err := svc.ListTopics(ctx, actor, forum.ListOptions{PrivateMessages: true, IncludeArchived: true})
	if err != nil {
		return err
	}
	return printTopics(topics)
}

func runPMRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}
	if err := svc.RemoveAllowedUser(ctx, actor, topic.ID, args[1]); err != nil {
		return err
	}
	color.Yellow("Removed %s from %s", args[1], topic.Title)
	return nil
}

func runInvite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	invite, err := svc.Invite(ctx, actor, topic.ID, args[1])
	if err != nil {
		return err
	}
	if invite != nil {
		color.Green("Emailed an invite to %s", invite.Email)
		fmt.Printf("Key: %s\n", invite.InviteKey)
		return nil
	}
	color.Green("Invited %s to %s", args[1], topic.Title)
	return nil
}

func runRedeem(cmd *cobra.Command, args []string) error {
	u, err := svc.RedeemInvite(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	color.Green("Welcome, %s!", u.Username)
	fmt.Printf("Act as this user with --as %s or AGORA_USER=%s\n", u.Username, u.Username)
	return nil
}

func runNotifications(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}

	notes, err := svc.Notifications(ctx, actor, unreadOnly)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Println("No notifications.")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tTYPE\tTOPIC\tWHEN")
		for _, n := range notes {
			mark := "•"
			if n.Read {
				mark = " "
			}
			var data struct {
				TopicTitle string `json:"topic_title"`
			}
			_ = json.Unmarshal([]byte(n.Data), &data)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, n.Type, data.TopicTitle, n.CreatedAt.Local().Format("Jan 02 15:04"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if markAllRead {
		n, err := svc.MarkNotificationsRead(ctx, actor)
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d read\n", n)
	}
	return nil
}
