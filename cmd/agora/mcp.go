// ABOUTME: MCP server command implementation
// ABOUTME: Starts the agora MCP server in stdio mode with the job runner alongside

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/mcp"
)

var noJobs bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server (stdio mode)",
	Long: `Start the Model Context Protocol server for AI agent integration.

The MCP server communicates via stdio, allowing AI agents like Claude
to read and post on the forum through a standardized protocol. Calls act
as the --as user unless they pass agent_name.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&noJobs, "no-jobs", false, "do not run scheduled jobs in this process")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := mcp.NewServer(svc, log, identityFlag)
	if err != nil {
		return err
	}

	if !noJobs {
		runner := newRunner()
		if err := runner.Start(ctx); err != nil {
			return err
		}
		defer runner.Stop()
	}

	return server.Serve(ctx)
}
