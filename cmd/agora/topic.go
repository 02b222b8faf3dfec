// ABOUTME: Topic CLI commands
// ABOUTME: Implements listing, creating, showing and editing topics

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/logger"
	"github.com/harper/agora/internal/models"
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage topics",
	Long:  "Create, list, view and edit topics on the forum.",
}

var topicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List topics, pinned first then by activity",
	RunE:  runTopicList,
}

var topicNewCmd = &cobra.Command{
	Use:   "new <title> <body>",
	Short: "Create a new topic",
	Args:  cobra.ExactArgs(2),
	RunE:  runTopicNew,
}

var topicShowCmd = &cobra.Command{
	Use:   "show <topic>",
	Short: "Show a topic with its posts",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicShow,
}

var topicRenameCmd = &cobra.Command{
	Use:   "rename <topic> <title>",
	Short: "Change a topic title",
	Args:  cobra.ExactArgs(2),
	RunE:  runTopicRename,
}

var topicCategoryCmd = &cobra.Command{
	Use:   "recategorize <topic> <category>",
	Short: "Move a topic to another category",
	Args:  cobra.ExactArgs(2),
	RunE:  runTopicCategory,
}

var topicStarCmd = &cobra.Command{
	Use:   "star <topic>",
	Short: "Star a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicStar,
}

var topicReadCmd = &cobra.Command{
	Use:   "read <topic> [post-number]",
	Short: "Mark a topic read up to a post (default: all)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTopicRead,
}

var topicSimilarCmd = &cobra.Command{
	Use:   "similar <title> [body]",
	Short: "Find topics similar to a draft",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTopicSimilar,
}

var topicHistoryCmd = &cobra.Command{
	Use:   "history <topic>",
	Short: "Show title and category revisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicHistory,
}

var (
	listCategory string
	listArchived bool
	listLimit    int
	newCategory  string
	unstar       bool
)

func init() {
	rootCmd.AddCommand(topicCmd)
	topicCmd.AddCommand(topicListCmd, topicNewCmd, topicShowCmd, topicRenameCmd, topicCategoryCmd,
		topicStarCmd, topicReadCmd, topicSimilarCmd, topicHistoryCmd)

	topicListCmd.Flags().StringVar(&listCategory, "category", "", "only topics in this category")
	topicListCmd.Flags().BoolVar(&listArchived, "archived", false, "include archived topics")
	topicListCmd.Flags().IntVar(&listLimit, "limit", 30, "maximum topics to show (0 for all)")
	topicNewCmd.Flags().StringVar(&newCategory, "category", "", "category name")
	topicStarCmd.Flags().BoolVar(&unstar, "remove", false, "remove the star instead")
}

func runTopicList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	topics, err := svc.ListTopics(ctx, viewer(ctx), forum.ListOptions{
		Category:        listCategory,
		IncludeArchived: listArchived,
		Limit:           listLimit,
	})
	if err != nil {
		return err
	}
	return printTopics(topics)
}

func printTopics(topics []*models.Topic) error {
	if len(topics) == 0 {
		fmt.Println("No topics found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPOSTS\tACTIVE")
	for _, t := range topics {
		fmt.Fprintf(w, "%d\t%s%s\t%d\t%s\n", t.ID, statusIcons(t), t.FancyTitle, t.PostsCount, t.BumpedAt.Format("Jan 02 15:04"))
	}
	return w.Flush()
}

func statusIcons(t *models.Topic) string {
	var icons []string
	if t.Pinned {
		icons = append(icons, "📌")
	}
	if t.Closed {
		icons = append(icons, "🔒")
	}
	if t.Archived {
		icons = append(icons, "🗄")
	}
	if !t.Visible {
		icons = append(icons, "👻")
	}
	if len(icons) == 0 {
		return ""
	}
	return strings.Join(icons, "") + " "
}

func runTopicNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}

	topic, err := svc.CreateTopic(ctx, actor, forum.NewTopicParams{
		Title:    args[0],
		Raw:      args[1],
		Category: newCategory,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}

	color.Green("Created topic: %s", topic.Title)
	fmt.Printf("ID: %d  URL: %s\n", topic.ID, topic.RelativeURL())
	if topic.AutoCloseAt != nil {
		color.Yellow("Closes automatically at %s", topic.AutoCloseAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runTopicShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	v := viewer(ctx)
	topic, err := svc.ResolveTopic(ctx, v, args[0])
	if err != nil {
		return err
	}
	posts, err := svc.ListPosts(ctx, v, topic.ID)
	if err != nil {
		return err
	}
	names, err := usernames(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("%s%s\n", statusIcons(topic), topic.FancyTitle)
	faint := color.New(color.Faint)
	faint.Printf("by %s on %s · %s\n", names[topic.UserID], topic.CreatedAt.Local().Format("2006-01-02 15:04"), topic.RelativeURL())
	if topic.AutoCloseAt != nil && !topic.Closed {
		color.Yellow("Closes at %s", topic.AutoCloseAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println()

	note := color.New(color.FgYellow, color.Italic)
	for _, p := range posts {
		fmt.Printf("─────────────────────────────────\n")
		if p.IsModeratorAction() {
			note.Printf("#%d %s: %s\n", p.PostNumber, names[p.UserID], p.Raw)
			continue
		}
		faint.Printf("#%d %s · %s", p.PostNumber, names[p.UserID], p.CreatedAt.Local().Format("Jan 02 15:04"))
		if p.ReplyToPostNumber != nil {
			faint.Printf(" ↪ #%d", *p.ReplyToPostNumber)
		}
		fmt.Println()
		fmt.Println(p.Raw)
		fmt.Println()
	}

	if v != nil {
		if _, err := svc.MarkRead(ctx, v, topic.ID, topic.HighestPostNumber); err != nil {
			log.Warn("failed to mark topic read", logger.Error(err))
		}
	}
	return nil
}

func usernames(cmd *cobra.Command) (map[int64]string, error) {
	users, err := svc.Users(cmd.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func runTopicRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	updated, err := svc.UpdateTitle(ctx, actor, topic.ID, args[1])
	if err != nil {
		return err
	}
	color.Green("Renamed to: %s (version %d)", updated.Title, updated.Version)
	return nil
}

func runTopicCategory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	if _, err := svc.ChangeCategory(ctx, actor, topic.ID, args[1]); err != nil {
		return err
	}
	color.Green("Moved %s to %s", topic.Title, args[1])
	return nil
}

func runTopicStar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	updated, err := svc.ToggleStar(ctx, actor, topic.ID, !unstar)
	if err != nil {
		return err
	}
	if unstar {
		color.Yellow("Unstarred %s (%d stars)", updated.Title, updated.StarCount)
	} else {
		color.Green("⭐ Starred %s (%d stars)", updated.Title, updated.StarCount)
	}
	return nil
}

func runTopicRead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := currentUser(ctx)
	if err != nil {
		return err
	}
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}

	upTo := topic.HighestPostNumber
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid post number %q", args[1])
		}
		upTo = n
	}
	tu, err := svc.MarkRead(ctx, actor, topic.ID, upTo)
	if err != nil {
		return err
	}
	fmt.Printf("Read %d of %d posts\n", tu.LastReadPostNumber, topic.HighestPostNumber)
	return nil
}

func runTopicSimilar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	body := ""
	if len(args) > 1 {
		body = args[1]
	}
	topics, err := svc.SimilarTo(ctx, viewer(ctx), args[0], body)
	if err != nil {
		return err
	}
	return printTopics(topics)
}

func runTopicHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	topic, err := resolveTopic(ctx, args[0])
	if err != nil {
		return err
	}
	revs, err := svc.Revisions(ctx, topic.ID)
	if err != nil {
		return err
	}
	if len(revs) == 0 {
		fmt.Println("No revisions.")
		return nil
	}
	names, err := usernames(cmd)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tBY\tFIELD\tFROM\tTO")
	for _, r := range revs {
		for field, change := range r.Changes {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.Version, names[r.UserID], field, change[0], change[1])
		}
	}
	return w.Flush()
}
