// ABOUTME: MCP prompt templates
// ABOUTME: Guided workflows for starting and summarizing topics

package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "start-topic",
		Description: "Start a new topic without duplicating an existing one",
		Arguments: []*mcp.PromptArgument{
			{Name: "title", Description: "Proposed topic title", Required: true},
			{Name: "category", Description: "Category to post in"},
		},
	}, s.handleStartTopicPrompt)

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "summarize-topic",
		Description: "Summarize a topic discussion",
		Arguments: []*mcp.PromptArgument{
			{Name: "topic", Description: "Topic ID or slug to summarize", Required: true},
		},
	}, s.handleSummarizePrompt)
}

func (s *Server) handleStartTopicPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	title := req.Params.Arguments["title"]
	category := req.Params.Arguments["category"]
	if category == "" {
		category = "(none)"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start topic: %s", title),
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: fmt.Sprintf(`Start a new topic on the forum.

Title: %s
Category: %s

First call similar_topics with the title. If an open topic already covers it, reply there with the reply tool instead.
Otherwise use create_topic. Titles need to be descriptive; very short or repetitive titles are rejected.`, title, category),
				},
			},
		},
	}, nil
}

func (s *Server) handleSummarizePrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Summarize topic %s", topic),
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: fmt.Sprintf(`Read the resource %s%s and summarize the discussion.

Include:
- The original question or proposal
- Key points raised by each participant
- Any staff actions (closing, moving, pinning)
- Open questions or next steps`, topicsURIPrefix, topic),
				},
			},
		},
	}, nil
}
