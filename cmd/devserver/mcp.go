// Package main provides MCP server commands for AI assistant integration.
package main

import (
	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/mcp"
	"github.com/appforge/devserver/internal/ui"
)

// mcpCmd is the parent command for MCP server management.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server for AI assistants",
	Long: `Manage the Model Context Protocol (MCP) server.

The MCP server exposes dev server control to AI assistants over stdio:
starting and stopping session servers, querying status, resolving app
paths, and reconciling session records.`,
}

// mcpServeCmd starts the MCP server on stdio.
var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server (stdio)",
	Long: `Start the MCP server communicating over stdio.

This command is meant to be launched by an MCP host, not interactively.

EXAMPLE HOST CONFIGURATION:
  {
    "mcpServers": {
      "appforge-devserver": {
        "command": "devserver",
        "args": ["mcp", "serve"]
      }
    }
  }

TOOLS EXPOSED:
  - start_dev_server         Start (or observe) a session's dev server
  - stop_dev_server          Stop a session's dev server
  - get_dev_server_status    Query a session's dev server
  - list_dev_servers         List all running dev servers
  - resolve_app_path         Resolve a session to its app directory
  - reconcile_app_paths      Repair stale session app paths`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(version)
		if err != nil {
			ui.PrintError("Failed to create MCP server: %v", err)
			return err
		}
		return server.Run(cmd.Context())
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
}
