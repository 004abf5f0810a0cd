// Package mcp exposes dev-server lifecycle operations as MCP tools.
//
// The server speaks the Model Context Protocol over stdio so AI agents can
// start, stop, and inspect per-session dev servers the same way the CLI
// does. It owns one orchestrator and one session store for its lifetime and
// keeps the store snapshot fresh with the filesystem watcher.
package mcp

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/appforge/devserver/internal/apppath"
	"github.com/appforge/devserver/internal/config"
	"github.com/appforge/devserver/internal/devserver"
	"github.com/appforge/devserver/internal/store"
)

// Server wraps the MCP server with dev-server functionality.
type Server struct {
	mcpServer    *mcp.Server
	orchestrator *devserver.Orchestrator
	store        *store.Store
	cfg          *config.Config
	projectRoot  string
	version      string
}

// NewServer creates an MCP server rooted at the current working directory's
// project (if any).
//
// Parameters:
//   - version: The CLI version string
//
// Returns:
//   - *Server: A new server instance
//   - error: Any error that occurred during initialization
func NewServer(version string) (*Server, error) {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}

	cfg, projectRoot, err := config.Discover(workDir)
	if err != nil {
		return nil, err
	}

	st := store.NewWithDir(cfg.GetStateDir())
	s := &Server{
		orchestrator: devserver.NewOrchestrator(cfg, projectRoot, st),
		store:        st,
		cfg:          cfg,
		projectRoot:  projectRoot,
		version:      version,
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    "appforge-devserver",
			Version: version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio. The store watcher runs for the
// server's lifetime so external session edits are picked up.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Any error that occurred during execution
func (s *Server) Run(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.store.Watch(watchCtx); err != nil {
		log.Warn("Session store watcher unavailable", "error", err)
	}

	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers all dev-server tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "start_dev_server",
		Description: "Start (or observe) the dev server for a session. Resolves the session's app directory, installs dependencies if needed, and waits for the server to announce its URL.",
	}, s.handleStartDevServer)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "stop_dev_server",
		Description: "Stop the dev server for a session. Terminates the whole process tree. Stopping a session with nothing running is not an error.",
	}, s.handleStopDevServer)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_dev_server_status",
		Description: "Report whether a session's dev server is running, with its pid, port, and URL when it is.",
	}, s.handleGetDevServerStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_dev_servers",
		Description: "List all live dev servers across sessions.",
	}, s.handleListDevServers)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "resolve_app_path",
		Description: "Resolve which app directory backs a session without starting anything. Reports the strategy that matched.",
	}, s.handleResolveAppPath)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reconcile_app_paths",
		Description: "Backfill or correct persisted app paths for all sessions by scanning their message history for directory mentions.",
	}, s.handleReconcileAppPaths)
}

// reconciler builds a reconciler over the server's store.
func (s *Server) reconciler(dryRun bool) *apppath.Reconciler {
	return &apppath.Reconciler{
		Resolver: apppath.NewResolver(s.cfg, s.projectRoot),
		Sessions: s.store,
		DryRun:   dryRun,
	}
}
