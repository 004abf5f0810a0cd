package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/appforge/devserver/internal/devserver"
)

// StartDevServerInput defines the input parameters for the start_dev_server tool.
type StartDevServerInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session identifier whose dev server should start"`
	Path      string `json:"path,omitempty" jsonschema:"description=Explicit app directory; overrides every resolution strategy"`
}

// StartDevServerOutput defines the output for the start_dev_server tool.
type StartDevServerOutput struct {
	Success        bool   `json:"success"`
	PID            int    `json:"pid,omitempty"`
	Port           int    `json:"port,omitempty"`
	URL            string `json:"url,omitempty"`
	AppPath        string `json:"app_path,omitempty"`
	Strategy       string `json:"strategy,omitempty"`
	AlreadyRunning bool   `json:"already_running,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleStartDevServer handles the start_dev_server tool call.
func (s *Server) handleStartDevServer(ctx context.Context, req *mcp.CallToolRequest, input StartDevServerInput) (*mcp.CallToolResult, StartDevServerOutput, error) {
	if input.SessionID == "" {
		return nil, StartDevServerOutput{Error: "session_id is required"}, nil
	}

	res, err := s.orchestrator.Start(ctx, input.SessionID, input.Path)
	if err != nil {
		return nil, StartDevServerOutput{Success: false, Error: err.Error()}, nil
	}

	return nil, StartDevServerOutput{
		Success:        res.Success,
		PID:            res.PID,
		Port:           res.Port,
		URL:            res.URL,
		AppPath:        res.AppPath,
		Strategy:       res.Strategy,
		AlreadyRunning: res.AlreadyRunning,
		Message:        res.Message,
	}, nil
}

// StopDevServerInput defines the input parameters for the stop_dev_server tool.
type StopDevServerInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session identifier whose dev server should stop"`
	PID       int    `json:"pid,omitempty" jsonschema:"description=Process id the caller believes is running; 0 uses the tracked one"`
}

// StopDevServerOutput defines the output for the stop_dev_server tool.
type StopDevServerOutput struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleStopDevServer handles the stop_dev_server tool call.
func (s *Server) handleStopDevServer(ctx context.Context, req *mcp.CallToolRequest, input StopDevServerInput) (*mcp.CallToolResult, StopDevServerOutput, error) {
	if input.SessionID == "" {
		return nil, StopDevServerOutput{Error: "session_id is required"}, nil
	}

	res, err := s.orchestrator.Stop(ctx, input.SessionID, input.PID)
	if err != nil {
		return nil, StopDevServerOutput{Error: err.Error()}, nil
	}

	return nil, StopDevServerOutput{Stopped: res.Stopped, Message: res.Message}, nil
}

// GetDevServerStatusInput defines the input parameters for the get_dev_server_status tool.
type GetDevServerStatusInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session identifier to query"`
}

// GetDevServerStatusOutput defines the output for the get_dev_server_status tool.
type GetDevServerStatusOutput struct {
	IsRunning bool   `json:"is_running"`
	PID       int    `json:"pid,omitempty"`
	Port      int    `json:"port,omitempty"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleGetDevServerStatus handles the get_dev_server_status tool call.
func (s *Server) handleGetDevServerStatus(ctx context.Context, req *mcp.CallToolRequest, input GetDevServerStatusInput) (*mcp.CallToolResult, GetDevServerStatusOutput, error) {
	if input.SessionID == "" {
		return nil, GetDevServerStatusOutput{Error: "session_id is required"}, nil
	}

	res, err := s.orchestrator.Status(ctx, input.SessionID)
	if err != nil {
		return nil, GetDevServerStatusOutput{Error: err.Error()}, nil
	}

	return nil, GetDevServerStatusOutput{
		IsRunning: res.Running,
		PID:       res.PID,
		Port:      res.Port,
		URL:       res.URL,
	}, nil
}

// ListDevServersInput defines the input parameters for the list_dev_servers tool.
type ListDevServersInput struct{}

// DevServerInfo describes one live dev server in list output.
type DevServerInfo struct {
	SessionID string `json:"session_id"`
	PID       int    `json:"pid"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
	AppPath   string `json:"app_path,omitempty"`
	StartedAt string `json:"started_at"`
}

// ListDevServersOutput defines the output for the list_dev_servers tool.
type ListDevServersOutput struct {
	Servers []DevServerInfo `json:"servers"`
	Count   int             `json:"count"`
}

// handleListDevServers handles the list_dev_servers tool call.
func (s *Server) handleListDevServers(ctx context.Context, req *mcp.CallToolRequest, input ListDevServersInput) (*mcp.CallToolResult, ListDevServersOutput, error) {
	handles := s.orchestrator.List(ctx)

	out := ListDevServersOutput{Servers: make([]DevServerInfo, 0, len(handles)), Count: len(handles)}
	for _, h := range handles {
		out.Servers = append(out.Servers, devServerInfo(h))
	}
	return nil, out, nil
}

func devServerInfo(h devserver.Handle) DevServerInfo {
	return DevServerInfo{
		SessionID: h.SessionID,
		PID:       h.PID,
		Port:      h.Port,
		URL:       h.URL,
		AppPath:   h.Dir,
		StartedAt: h.StartedAt.Format(time.RFC3339),
	}
}

// ResolveAppPathInput defines the input parameters for the resolve_app_path tool.
type ResolveAppPathInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session identifier to resolve"`
	Path      string `json:"path,omitempty" jsonschema:"description=Explicit app directory to test first"`
}

// ResolveAppPathOutput defines the output for the resolve_app_path tool.
type ResolveAppPathOutput struct {
	Path     string `json:"path,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Matched  bool   `json:"matched"`
	Error    string `json:"error,omitempty"`
}

// handleResolveAppPath handles the resolve_app_path tool call.
func (s *Server) handleResolveAppPath(ctx context.Context, req *mcp.CallToolRequest, input ResolveAppPathInput) (*mcp.CallToolResult, ResolveAppPathOutput, error) {
	if input.SessionID == "" {
		return nil, ResolveAppPathOutput{Error: "session_id is required"}, nil
	}

	res, err := s.orchestrator.Resolve(ctx, input.SessionID, input.Path)
	if err != nil {
		return nil, ResolveAppPathOutput{Error: err.Error()}, nil
	}

	return nil, ResolveAppPathOutput{
		Path:     res.Path,
		Strategy: string(res.Strategy),
		Matched:  res.Matched,
	}, nil
}

// ReconcileAppPathsInput defines the input parameters for the reconcile_app_paths tool.
type ReconcileAppPathsInput struct {
	DryRun bool `json:"dry_run,omitempty" jsonschema:"description=Report would-be corrections without writing them"`
}

// AppPathChange describes one reconciliation correction.
type AppPathChange struct {
	SessionID string `json:"session_id"`
	OldPath   string `json:"old_path,omitempty"`
	NewPath   string `json:"new_path"`
	Mention   string `json:"mention"`
}

// ReconcileAppPathsOutput defines the output for the reconcile_app_paths tool.
type ReconcileAppPathsOutput struct {
	Changes []AppPathChange `json:"changes"`
	Count   int             `json:"count"`
	DryRun  bool            `json:"dry_run"`
	Error   string          `json:"error,omitempty"`
}

// handleReconcileAppPaths handles the reconcile_app_paths tool call.
func (s *Server) handleReconcileAppPaths(ctx context.Context, req *mcp.CallToolRequest, input ReconcileAppPathsInput) (*mcp.CallToolResult, ReconcileAppPathsOutput, error) {
	changes, err := s.reconciler(input.DryRun).Run()
	if err != nil {
		return nil, ReconcileAppPathsOutput{DryRun: input.DryRun, Error: err.Error()}, nil
	}

	out := ReconcileAppPathsOutput{
		Changes: make([]AppPathChange, 0, len(changes)),
		Count:   len(changes),
		DryRun:  input.DryRun,
	}
	for _, c := range changes {
		out.Changes = append(out.Changes, AppPathChange{
			SessionID: c.SessionID,
			OldPath:   c.OldPath,
			NewPath:   c.NewPath,
			Mention:   c.Mention,
		})
	}
	return nil, out, nil
}
