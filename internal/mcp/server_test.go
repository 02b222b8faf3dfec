// ABOUTME: Tests for the MCP server, its tools, resources and prompts
// ABOUTME: Runs handlers against a real forum service on a temp SQLite database

package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/agora/internal/config"
	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/notify"
)

type testServer struct {
	*Server
	svc    *forum.Service
	mailer *notify.MemoryMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database, err := db.InitDB(filepath.Join(t.TempDir(), "agora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	mailer := &notify.MemoryMailer{}
	svc := forum.NewService(database, config.DefaultSiteSettings(),
		forum.WithObservers(notify.NewNotifier(database, mailer, nil)))
	ctx := context.Background()
	for _, p := range []forum.NewUserParams{
		{Username: "admin", Admin: true},
		{Username: "alice"},
		{Username: "bob"},
	} {
		_, err := svc.CreateUser(ctx, p)
		require.NoError(t, err)
	}

	server, err := NewServer(svc, nil, "alice")
	require.NoError(t, err)
	return &testServer{Server: server, svc: svc, mailer: mailer}
}

func callRequest(args string) *mcp.CallToolRequest {
	return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewServerRequiresService(t *testing.T) {
	_, err := NewServer(nil, nil, "alice")
	assert.Error(t, err)
}

func TestServerOverSession(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.mcp.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "create_topic")
	assert.Contains(t, names, "move_posts")
	assert.Contains(t, names, "set_auto_close")

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name: "create_topic",
		Arguments: map[string]any{
			"title": "Welcome to the agora forum",
			"raw":   "Say hello here",
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "/t/welcome-to-the-agora-forum/")

	latest, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: latestURI})
	require.NoError(t, err)
	require.Len(t, latest.Contents, 1)
	assert.Contains(t, latest.Contents[0].Text, "Welcome to the agora forum")
	assert.Contains(t, latest.Contents[0].Text, "by alice")
}

func TestCreateTopicAndReply(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreateTopic(ctx, callRequest(`{"title":"Welcome to the agora forum","raw":"Say hello here"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	res, err = s.handleReply(ctx, callRequest(`{"topic":"welcome-to-the-agora-forum","raw":"hello from bob","reply_to":1,"agent_name":"bob"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, `Posted #2 in "Welcome to the agora forum"`, resultText(t, res))

	res, err = s.handleGetTopic(ctx, callRequest(`{"topic":"welcome-to-the-agora-forum"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var view topicView
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &view))
	assert.Equal(t, 2, view.Topic.PostsCount)
	require.Len(t, view.Posts, 2)
	require.NotNil(t, view.Posts[1].ReplyToPostNumber)
	assert.Equal(t, 1, *view.Posts[1].ReplyToPostNumber)
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    string
		want    string
	}{
		{"unknown agent", s.handleCreateTopic, `{"title":"Welcome to the agora forum","raw":"x","agent_name":"nobody"}`, "acting user"},
		{"short title", s.handleCreateTopic, `{"title":"hi","raw":"x"}`, "title"},
		{"bad json", s.handleCreateTopic, `{"title":`, "invalid arguments"},
		{"missing topic", s.handleReply, `{"topic":"nope","raw":"x"}`, "not found"},
		{"not staff", s.handleUpdateStatus, `{"topic":"1","status":"closed","enabled":true}`, ""},
		{"bad auto close", s.handleSetAutoClose, `{"topic":"1","when":"soon"}`, "auto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(ctx, callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			if tt.want != "" {
				assert.Contains(t, resultText(t, res), tt.want)
			}
		})
	}
}

func TestModerationTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreateTopic(ctx, callRequest(`{"title":"Welcome to the agora forum","raw":"Say hello here"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	res, err = s.handleReply(ctx, callRequest(`{"topic":"welcome-to-the-agora-forum","raw":"off topic aside","agent_name":"bob"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	res, err = s.handleUpdateStatus(ctx, callRequest(`{"topic":"welcome-to-the-agora-forum","status":"pinned","enabled":true,"agent_name":"admin"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	res, err = s.handleSetAutoClose(ctx, callRequest(`{"topic":"welcome-to-the-agora-forum","when":"24","agent_name":"admin"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "will close at")

	topic, err := s.svc.ResolveTopic(ctx, nil, "welcome-to-the-agora-forum")
	require.NoError(t, err)
	posts, err := s.svc.ListPosts(ctx, nil, topic.ID)
	require.NoError(t, err)
	var aside int64
	for _, p := range posts {
		if p.Raw == "off topic aside" {
			aside = p.ID
		}
	}
	require.NotZero(t, aside)

	args, err := json.Marshal(map[string]any{
		"topic":      "welcome-to-the-agora-forum",
		"post_ids":   []int64{aside},
		"title":      "An aside about something else",
		"agent_name": "admin",
	})
	require.NoError(t, err)
	res, err = s.handleMovePosts(ctx, callRequest(string(args)))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), `Moved 1 posts to "An aside about something else"`)

	res, err = s.handleTrashTopic(ctx, callRequest(`{"topic":"an-aside-about-something-else","agent_name":"admin"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	res, err = s.handleListTopics(ctx, callRequest(`{}`))
	require.NoError(t, err)
	var topics []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &topics))
	require.Len(t, topics, 1)
	assert.Equal(t, true, topics[0]["pinned"])
}

func TestPrivateMessageTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreatePrivateMessage(ctx, callRequest(`{"title":"Quick question","raw":"are you around?","recipients":["bob"]}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	res, err = s.handleListNotifications(ctx, callRequest(`{"unread_only":true,"agent_name":"bob"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "private_message")

	res, err = s.handleListTopics(ctx, callRequest(`{"private_messages":true,"agent_name":"bob"}`))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Quick question")

	res, err = s.handleListTopics(ctx, callRequest(`{"private_messages":true}`))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Quick question")

	res, err = s.handleListTopics(ctx, callRequest(`{}`))
	require.NoError(t, err)
	assert.NotContains(t, resultText(t, res), "Quick question")

	res, err = s.handleInvite(ctx, callRequest(`{"topic":"quick-question","user":"carol@example.com"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, "Emailed an invite to carol@example.com", resultText(t, res))
	sent := s.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "carol@example.com", sent[0].To)
	assert.Contains(t, sent[0].Body, "agora redeem ")
}

func TestSimilarTopicsTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreateTopic(ctx, callRequest(`{"title":"Growing tomatoes on a balcony","raw":"tips please"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	res, err = s.handleSimilarTopics(ctx, callRequest(`{"title":"Help with my tomatoes"}`))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Growing tomatoes on a balcony")

	res, err = s.handleSimilarTopics(ctx, callRequest(`{"title":"Completely unrelated words"}`))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, res))
}

func TestTopicResources(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreateTopic(ctx, callRequest(`{"title":"Welcome to the agora forum","raw":"Say hello here"}`))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	read, err := s.handleTopicResource(ctx, &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "agora://topics/welcome-to-the-agora-forum"},
	})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	assert.Contains(t, read.Contents[0].Text, "# Welcome to the agora forum")
	assert.Contains(t, read.Contents[0].Text, "**#1 alice**")
	assert.Contains(t, read.Contents[0].Text, "Say hello here")

	posters, err := s.handlePostersResource(ctx, &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "agora://topics/welcome-to-the-agora-forum/posters"},
	})
	require.NoError(t, err)
	assert.Contains(t, posters.Contents[0].Text, `"username": "alice"`)

	_, err = s.handleTopicResource(ctx, &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "agora://topics/missing"},
	})
	assert.Error(t, err)

	cats, err := s.handleCategoriesResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: categoriesURI}})
	require.NoError(t, err)
	assert.Contains(t, cats.Contents[0].Text, db.UncategorizedName)
}

func TestTopicRef(t *testing.T) {
	tests := []struct {
		uri    string
		suffix string
		want   string
		ok     bool
	}{
		{"agora://topics/42", "", "42", true},
		{"agora://topics/hello-world", "", "hello-world", true},
		{"agora://topics/42/posters", "/posters", "42", true},
		{"agora://topics/42/posters", "", "", false},
		{"agora://topics/", "", "", false},
		{"agora://latest", "", "", false},
	}
	for _, tt := range tests {
		got, ok := topicRef(tt.uri, tt.suffix)
		assert.Equal(t, tt.ok, ok, tt.uri)
		assert.Equal(t, tt.want, got, tt.uri)
	}
}

func TestPrompts(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleStartTopicPrompt(ctx, &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Arguments: map[string]string{"title": "Garden tips"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "similar_topics")
	assert.Contains(t, text, "Category: (none)")

	res, err = s.handleSummarizePrompt(ctx, &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Arguments: map[string]string{"topic": "42"}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content.(*mcp.TextContent).Text, "agora://topics/42")
}
