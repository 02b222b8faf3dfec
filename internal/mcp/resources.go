// ABOUTME: MCP resource implementations
// ABOUTME: Read-only views of categories, the latest topics and topic posts

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/models"
)

const (
	categoriesURI   = "agora://categories"
	latestURI       = "agora://latest"
	topicsURIPrefix = "agora://topics/"
	latestLimit     = 20
)

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         categoriesURI,
		Name:        "Categories",
		Description: "All categories with topic counts",
		MIMEType:    "application/json",
	}, s.handleCategoriesResource)

	s.mcp.AddResource(&mcp.Resource{
		URI:         latestURI,
		Name:        "Latest Topics",
		Description: "Most recently active topics",
		MIMEType:    "text/markdown",
	}, s.handleLatestResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: topicsURIPrefix + "{topic}",
		Name:        "Topic",
		Description: "A topic and its posts, by ID or slug",
		MIMEType:    "text/markdown",
	}, s.handleTopicResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: topicsURIPrefix + "{topic}/posters",
		Name:        "Topic Posters",
		Description: "Featured posters of a topic",
		MIMEType:    "application/json",
	}, s.handlePostersResource)
}

func (s *Server) handleCategoriesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	cats, err := s.forum.Categories(ctx)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(cats, "", "  ")
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      categoriesURI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleLatestResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	topics, err := s.forum.ListTopics(ctx, s.viewer(ctx, ""), forum.ListOptions{Limit: latestLimit})
	if err != nil {
		return nil, err
	}
	names, err := s.usernames(ctx)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# Latest Topics\n\n")
	for _, topic := range topics {
		prefix := ""
		if topic.Pinned {
			prefix = "📌 "
		}
		if topic.Closed {
			prefix += "🔒 "
		}
		sb.WriteString(fmt.Sprintf("- %s**%s** (%s) by %s, %d posts\n",
			prefix, topic.FancyTitle, topic.RelativeURL(), names[topic.UserID], topic.PostsCount))
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      latestURI,
			MIMEType: "text/markdown",
			Text:     sb.String(),
		}},
	}, nil
}

func (s *Server) handleTopicResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	ref, ok := topicRef(req.Params.URI, "")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	viewer := s.viewer(ctx, "")
	topic, err := s.forum.ResolveTopic(ctx, viewer, ref)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	posts, err := s.forum.ListPosts(ctx, viewer, topic.ID)
	if err != nil {
		return nil, err
	}
	names, err := s.usernames(ctx)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     renderTopic(topic, posts, names),
		}},
	}, nil
}

func (s *Server) handlePostersResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	ref, ok := topicRef(req.Params.URI, "/posters")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	viewer := s.viewer(ctx, "")
	topic, err := s.forum.ResolveTopic(ctx, viewer, ref)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	posters, err := s.forum.PostersSummary(ctx, viewer, topic.ID)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(posters, "", "  ")
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// topicRef pulls the topic ID or slug out of a topics URI ending in suffix.
func topicRef(uri, suffix string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, topicsURIPrefix)
	if !ok {
		return "", false
	}
	if suffix != "" {
		if rest, ok = strings.CutSuffix(rest, suffix); !ok {
			return "", false
		}
	}
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func (s *Server) usernames(ctx context.Context) (map[int64]string, error) {
	users, err := s.forum.Users(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func renderTopic(topic *models.Topic, posts []*models.Post, names map[int64]string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", topic.FancyTitle))
	sb.WriteString(fmt.Sprintf("*Started by %s on %s*\n\n", names[topic.UserID], topic.CreatedAt.Format("2006-01-02")))
	sb.WriteString("---\n\n")

	for _, post := range posts {
		if post.IsModeratorAction() {
			sb.WriteString(fmt.Sprintf("> _%s · %s_\n\n", names[post.UserID], post.Raw))
			continue
		}
		sb.WriteString(fmt.Sprintf("**#%d %s** · %s", post.PostNumber, names[post.UserID], post.CreatedAt.Format("Jan 02 15:04")))
		if post.ReplyToPostNumber != nil {
			sb.WriteString(fmt.Sprintf(" · in reply to #%d", *post.ReplyToPostNumber))
		}
		sb.WriteString("\n\n")
		sb.WriteString(post.Raw)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}
