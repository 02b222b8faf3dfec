// ABOUTME: MCP server wiring for agora
// ABOUTME: Exposes forum operations as tools, resources and prompts over stdio

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/identity"
	"github.com/harper/agora/internal/logger"
	"github.com/harper/agora/internal/models"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Server adapts the forum service to the Model Context Protocol.
type Server struct {
	mcp   *mcp.Server
	forum *forum.Service
	log   logger.Logger
	// user acts when a call names no agent_name.
	user string
}

// NewServer creates an MCP server over svc. defaultUser is the username
// calls act as unless they pass agent_name.
func NewServer(svc *forum.Service, log logger.Logger, defaultUser string) (*Server, error) {
	if svc == nil {
		return nil, errors.New("forum service is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		mcp:   mcp.NewServer(&mcp.Implementation{Name: "agora", Version: Version}, nil),
		forum: svc,
		log:   log,
		user:  defaultUser,
	}
	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s, nil
}

// Serve runs the server on stdio until ctx ends or the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("mcp server starting", logger.String("user", identity.Username(s.user)))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// actor resolves the user a call acts as.
func (s *Server) actor(ctx context.Context, agentName string) (*models.User, error) {
	name := agentName
	if name == "" {
		name = s.user
	}
	u, err := s.forum.UserByName(ctx, identity.Username(name))
	if err != nil {
		return nil, fmt.Errorf("acting user: %w", err)
	}
	return u, nil
}

// viewer is like actor but reads anonymously when the user does not exist.
func (s *Server) viewer(ctx context.Context, agentName string) *models.User {
	u, err := s.actor(ctx, agentName)
	if err != nil {
		return nil
	}
	return u
}

func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return textResult(string(data))
}
