// ABOUTME: Post CLI commands
// ABOUTME: Implements replying to topics and moving posts between topics

package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/forum"
)

var postCmd = &cobra.Command{
	Use:   "post <topic> <message>",
	Short: "Reply to a topic",
	Args:  cobra.ExactArgs(2),
	RunE:  runPost,
}

var moveCmd = &cobra.Command{
	Use:   "move <topic> <post-id>...",
	Short: "Move posts to a new topic (--title) or an existing one (--into); staff only",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMove,
}

var mergeCmd = &cobra.Command{
	Use:   "merge <topic> <into-topic>",
	Short: "Merge every post of a topic into another; staff only",
	Args:  cobra.ExactArgs(2),
	RunE:  runMerge,
}

var (
	replyTo      int
	moveTitle    string
	moveInto     string
	moveCategory string
)

func init() {
	rootCmd.AddCommand(postCmd, moveCmd, mergeCmd)

	postCmd.Flags().IntVar(&replyTo, "reply-to", 0, "post number being answered")
	moveCmd.Flags().StringVar(&moveTitle, "title", "", "title of a new topic for the posts")
	moveCmd.Flags().StringVar(&moveInto, "into", "", "existing topic to receive the posts")
	moveCmd.Flags().StringVar(&moveCategory, "category", "", "category of the new topic")
}

func runPost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	var to *int
	if replyTo > 0 {
		to = &replyTo
	}
	post, err := svc.CreatePost(ctx, actor, topic.ID, args[1], to)
	if err != nil {
		return fmt.Errorf("failed to post: %w", err)
	}

	color.Green("Posted to: %s", topic.Title)
	fmt.Printf("Post #%d  URL: %s\n", post.PostNumber, topic.PostURL(post.PostNumber))
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	p := forum.MoveParams{Title: moveTitle, Category: moveCategory}
	for _, a := range args[1:] {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid post id %q", a)
		}
		p.PostIDs = append(p.PostIDs, id)
	}
	if moveInto != "" {
		dest, err := resolveTopic(ctx, moveInto)
		if err != nil {
			return err
		}
		p.DestinationTopicID = dest.ID
	}

	dest, err := svc.MovePosts(ctx, actor, topic.ID, p)
	if err != nil {
		return err
	}
	color.Green("Moved %d posts to: %s", len(p.PostIDs), dest.Title)
	fmt.Printf("ID: %d  URL: %s\n", dest.ID, dest.RelativeURL())
	return nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}
	dest, err := resolveTopic(ctx, args[1])
	if err != nil {
		return err
	}

	merged, err := svc.MergeTopic(ctx, actor, topic.ID, dest.ID)
	if err != nil {
		return err
	}
	color.Green("Merged %s into %s (%d posts)", topic.Title, merged.Title, merged.PostsCount)
	return nil
}
