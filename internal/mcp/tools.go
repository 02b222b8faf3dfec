// ABOUTME: MCP tool implementations
// ABOUTME: Topic, post, moderation and invite operations exposed as MCP tools

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/models"
)

func (s *Server) registerTools() {
	// Reading
	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_categories",
		Description: "List forum categories with their topic counts",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}, s.handleListCategories)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_topics",
		Description: "List topics, pinned first then most recently active",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"category":{"type":"string"},"include_archived":{"type":"boolean"},"private_messages":{"type":"boolean","description":"List your private messages instead"},"limit":{"type":"integer"},"agent_name":{"type":"string"}}}`),
	}, s.handleListTopics)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_topic",
		Description: "Read a topic and its posts",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string","description":"Topic ID or slug"},"agent_name":{"type":"string"}},"required":["topic"]}`),
	}, s.handleGetTopic)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "similar_topics",
		Description: "Find existing topics similar to a draft before creating a new one",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"},"raw":{"type":"string"},"agent_name":{"type":"string"}},"required":["title"]}`),
	}, s.handleSimilarTopics)

	// Writing
	s.mcp.AddTool(&mcp.Tool{
		Name:        "create_topic",
		Description: "Create a new topic with its first post",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"},"raw":{"type":"string"},"category":{"type":"string"},"agent_name":{"type":"string"}},"required":["title","raw"]}`),
	}, s.handleCreateTopic)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "create_private_message",
		Description: "Start a private conversation with other users",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"},"raw":{"type":"string"},"recipients":{"type":"array","items":{"type":"string"}},"agent_name":{"type":"string"}},"required":["title","raw","recipients"]}`),
	}, s.handleCreatePrivateMessage)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "reply",
		Description: "Reply to a topic",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"raw":{"type":"string"},"reply_to":{"type":"integer","description":"Post number being answered"},"agent_name":{"type":"string"}},"required":["topic","raw"]}`),
	}, s.handleReply)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "update_title",
		Description: "Rename a topic",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"title":{"type":"string"},"agent_name":{"type":"string"}},"required":["topic","title"]}`),
	}, s.handleUpdateTitle)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "change_category",
		Description: "Move a topic to another category",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"category":{"type":"string"},"agent_name":{"type":"string"}},"required":["topic","category"]}`),
	}, s.handleChangeCategory)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "star_topic",
		Description: "Star or unstar a topic",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"starred":{"type":"boolean"},"agent_name":{"type":"string"}},"required":["topic","starred"]}`),
	}, s.handleStarTopic)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "mark_read",
		Description: "Record how far you have read a topic",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"post_number":{"type":"integer"},"agent_name":{"type":"string"}},"required":["topic","post_number"]}`),
	}, s.handleMarkRead)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "invite",
		Description: "Invite a user by username, or anyone by email, to a topic",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"user":{"type":"string","description":"Username or email address"},"agent_name":{"type":"string"}},"required":["topic","user"]}`),
	}, s.handleInvite)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_notifications",
		Description: "List your notifications",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"unread_only":{"type":"boolean"},"agent_name":{"type":"string"}}}`),
	}, s.handleListNotifications)

	// Moderation
	s.mcp.AddTool(&mcp.Tool{
		Name:        "update_status",
		Description: "Set a topic status: visible, pinned, archived, closed or autoclosed",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"status":{"type":"string","enum":["visible","pinned","archived","closed","autoclosed"]},"enabled":{"type":"boolean"},"agent_name":{"type":"string"}},"required":["topic","status","enabled"]}`),
	}, s.handleUpdateStatus)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "set_auto_close",
		Description: "Close a topic automatically after a number of hours or at a time of day (HH:MM); empty clears",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"when":{"type":"string"},"agent_name":{"type":"string"}},"required":["topic","when"]}`),
	}, s.handleSetAutoClose)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "move_posts",
		Description: "Move posts to a new topic (title) or an existing one (destination)",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"post_ids":{"type":"array","items":{"type":"integer"}},"title":{"type":"string"},"category":{"type":"string"},"destination":{"type":"string"},"agent_name":{"type":"string"}},"required":["topic","post_ids"]}`),
	}, s.handleMovePosts)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "merge_topic",
		Description: "Merge every post of a topic into another topic",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"destination":{"type":"string"},"agent_name":{"type":"string"}},"required":["topic","destination"]}`),
	}, s.handleMergeTopic)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "trash_topic",
		Description: "Delete a topic, or restore it with recover",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"recover":{"type":"boolean"},"agent_name":{"type":"string"}},"required":["topic"]}`),
	}, s.handleTrashTopic)
}

// topicView is a topic with its posts, as returned by get_topic.
type topicView struct {
	Topic *models.Topic  `json:"topic"`
	Posts []*models.Post `json:"posts"`
}

func (s *Server) handleListCategories(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.forum.Categories(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(cats), nil
}

func (s *Server) handleListTopics(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Category        string `json:"category"`
		IncludeArchived bool   `json:"include_archived"`
		PrivateMessages bool   `json:"private_messages"`
		Limit           int    `json:"limit"`
		AgentName       string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	topics, err := s.forum.ListTopics(ctx, s.viewer(ctx, args.AgentName), forum.ListOptions{
		Category:        args.Category,
		IncludeArchived: args.IncludeArchived,
		PrivateMessages: args.PrivateMessages,
		Limit:           args.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(topics), nil
}

func (s *Server) handleGetTopic(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	viewer := s.viewer(ctx, args.AgentName)
	topic, err := s.forum.ResolveTopic(ctx, viewer, args.Topic)
	if err != nil {
		return errorResult(err), nil
	}
	posts, err := s.forum.ListPosts(ctx, viewer, topic.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(topicView{Topic: topic, Posts: posts}), nil
}

func (s *Server) handleSimilarTopics(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Title     string `json:"title"`
		Raw       string `json:"raw"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	topics, err := s.forum.SimilarTo(ctx, s.viewer(ctx, args.AgentName), args.Title, args.Raw)
	if err != nil {
		return errorResult(err), nil
	}
	if topics == nil {
		topics = []*models.Topic{}
	}
	return jsonResult(topics), nil
}

func (s *Server) handleCreateTopic(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Title     string `json:"title"`
		Raw       string `json:"raw"`
		Category  string `json:"category"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, err := s.actor(ctx, args.AgentName)
	if err != nil {
		return errorResult(err), nil
	}
	topic, err := s.forum.CreateTopic(ctx, actor, forum.NewTopicParams{
		Title:    args.Title,
		Raw:      args.Raw,
		Category: args.Category,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Created topic %q (ID: %d) at %s", topic.Title, topic.ID, topic.RelativeURL())), nil
}

func (s *Server) handleCreatePrivateMessage(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Title      string   `json:"title"`
		Raw        string   `json:"raw"`
		Recipients []string `json:"recipients"`
		AgentName  string   `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, err := s.actor(ctx, args.AgentName)
	if err != nil {
		return errorResult(err), nil
	}
	topic, err := s.forum.CreatePrivateMessage(ctx, actor, args.Title, args.Raw, args.Recipients)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Sent private message %q (ID: %d)", topic.Title, topic.ID)), nil
}

func (s *Server) handleReply(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		Raw       string `json:"raw"`
		ReplyTo   *int   `json:"reply_to"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	post, err := s.forum.CreatePost(ctx, actor, topic.ID, args.Raw, args.ReplyTo)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Posted #%d in %q", post.PostNumber, topic.Title)), nil
}

func (s *Server) handleUpdateTitle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		Title     string `json:"title"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	updated, err := s.forum.UpdateTitle(ctx, actor, topic.ID, args.Title)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Topic %d is now %q (version %d)", updated.ID, updated.Title, updated.Version)), nil
}

func (s *Server) handleChangeCategory(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		Category  string `json:"category"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	if _, err := s.forum.ChangeCategory(ctx, actor, topic.ID, args.Category); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Moved %q to %s", topic.Title, args.Category)), nil
}

func (s *Server) handleStarTopic(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		Starred   bool   `json:"starred"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	updated, err := s.forum.ToggleStar(ctx, actor, topic.ID, args.Starred)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("%q has %d stars", updated.Title, updated.StarCount)), nil
}

func (s *Server) handleMarkRead(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic      string `json:"topic"`
		PostNumber int    `json:"post_number"`
		AgentName  string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	tu, err := s.forum.MarkRead(ctx, actor, topic.ID, args.PostNumber)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tu), nil
}

func (s *Server) handleInvite(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		User      string `json:"user"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	invite, err := s.forum.Invite(ctx, actor, topic.ID, args.User)
	if err != nil {
		return errorResult(err), nil
	}
	if invite != nil {
		return textResult(fmt.Sprintf("Emailed an invite to %s", invite.Email)), nil
	}
	return textResult(fmt.Sprintf("Invited %s to %q", args.User, topic.Title)), nil
}

func (s *Server) handleListNotifications(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		UnreadOnly bool   `json:"unread_only"`
		AgentName  string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, err := s.actor(ctx, args.AgentName)
	if err != nil {
		return errorResult(err), nil
	}
	notes, err := s.forum.Notifications(ctx, actor, args.UnreadOnly)
	if err != nil {
		return errorResult(err), nil
	}
	if notes == nil {
		notes = []*models.Notification{}
	}
	return jsonResult(notes), nil
}

func (s *Server) handleUpdateStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		Status    string `json:"status"`
		Enabled   bool   `json:"enabled"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	if _, err := s.forum.UpdateStatus(ctx, actor, topic.ID, args.Status, args.Enabled); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("%s set to %t on %q", args.Status, args.Enabled, topic.Title)), nil
}

func (s *Server) handleSetAutoClose(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		When      string `json:"when"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	spec, err := forum.ParseAutoClose(args.When)
	if err != nil {
		return errorResult(err), nil
	}
	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	updated, err := s.forum.SetAutoClose(ctx, actor, topic.ID, spec)
	if err != nil {
		return errorResult(err), nil
	}
	if updated.AutoCloseAt == nil {
		return textResult(fmt.Sprintf("Auto-close cleared on %q", updated.Title)), nil
	}
	return textResult(fmt.Sprintf("%q will close at %s", updated.Title, updated.AutoCloseAt.Format("2006-01-02 15:04 MST"))), nil
}

func (s *Server) handleMovePosts(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic       string  `json:"topic"`
		PostIDs     []int64 `json:"post_ids"`
		Title       string  `json:"title"`
		Category    string  `json:"category"`
		Destination string  `json:"destination"`
		AgentName   string  `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	params := forum.MoveParams{PostIDs: args.PostIDs, Title: args.Title, Category: args.Category}
	if args.Destination != "" {
		dest, err := s.forum.ResolveTopic(ctx, actor, args.Destination)
		if err != nil {
			return errorResult(err), nil
		}
		params.DestinationTopicID = dest.ID
	}
	dest, err := s.forum.MovePosts(ctx, actor, topic.ID, params)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Moved %d posts to %q (ID: %d)", len(args.PostIDs), dest.Title, dest.ID)), nil
}

func (s *Server) handleMergeTopic(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic       string `json:"topic"`
		Destination string `json:"destination"`
		AgentName   string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	dest, err := s.forum.ResolveTopic(ctx, actor, args.Destination)
	if err != nil {
		return errorResult(err), nil
	}
	if _, err := s.forum.MergeTopic(ctx, actor, topic.ID, dest.ID); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Merged %q into %q", topic.Title, dest.Title)), nil
}

func (s *Server) handleTrashTopic(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Topic     string `json:"topic"`
		Recover   bool   `json:"recover"`
		AgentName string `json:"agent_name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	actor, topic, errResult := s.actorAndTopic(ctx, args.AgentName, args.Topic)
	if errResult != nil {
		return errResult, nil
	}
	if args.Recover {
		if _, err := s.forum.Recover(ctx, actor, topic.ID); err != nil {
			return errorResult(err), nil
		}
		return textResult(fmt.Sprintf("Recovered %q", topic.Title)), nil
	}
	if _, err := s.forum.Trash(ctx, actor, topic.ID); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Deleted %q", topic.Title)), nil
}

// actorAndTopic resolves the acting user and the topic they name. On failure
// it returns the error result to send back.
func (s *Server) actorAndTopic(ctx context.Context, agentName, ref string) (*models.User, *models.Topic, *mcp.CallToolResult) {
	actor, err := s.actor(ctx, agentName)
	if err != nil {
		return nil, nil, errorResult(err)
	}
	topic, err := s.forum.ResolveTopic(ctx, actor, ref)
	if err != nil {
		return nil, nil, errorResult(err)
	}
	return actor, topic, nil
}
