// Package devserver manages the lifecycle of per-session dev servers: port
// allocation, process supervision, readiness detection, and the registry
// that maps sessions to running servers.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/appforge/devserver/internal/apppath"
	"github.com/appforge/devserver/internal/config"
	"github.com/appforge/devserver/internal/store"
)

// SessionSource supplies the session records resolution runs against.
// *store.Store satisfies it; tests use small fakes.
type SessionSource interface {
	Get(id string) (store.Session, bool, error)
	ClaimedPaths(excludeID string) (map[string]string, error)
	SetAppPath(id, path string) error
}

// StartResult is the outcome of a start operation.
type StartResult struct {
	Success        bool   `json:"success"`
	SessionID      string `json:"session_id"`
	PID            int    `json:"pid,omitempty"`
	Port           int    `json:"port,omitempty"`
	URL            string `json:"url,omitempty"`
	AppPath        string `json:"app_path,omitempty"`
	Strategy       string `json:"strategy,omitempty"`
	AlreadyRunning bool   `json:"already_running,omitempty"`
	Message        string `json:"message"`
}

// StopResult is the outcome of a stop operation.
type StopResult struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

// StatusResult is the outcome of a status query.
type StatusResult struct {
	SessionID string `json:"session_id"`
	Running   bool   `json:"is_running"`
	PID       int    `json:"pid,omitempty"`
	Port      int    `json:"port,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Orchestrator composes the resolver, supervisor, allocator and registry
// behind the start/stop/status operations. Calls for the same session are
// serialized with a per-session lock; different sessions proceed
// concurrently.
type Orchestrator struct {
	cfg        *config.Config
	sessions   SessionSource
	resolver   *apppath.Resolver
	supervisor *Supervisor
	ports      *PortAllocator
	registry   *Registry
	tracer     trace.Tracer

	// OnLine, when set, observes every dev-server output line. The CLI
	// streams these to the terminal.
	OnLine func(sessionID, stream, line string)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator wires an orchestrator from configuration and a session
// source. projectRoot anchors the embedded-apps strategy; empty disables it.
func NewOrchestrator(cfg *config.Config, projectRoot string, sessions SessionSource) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		sessions:   sessions,
		resolver:   apppath.NewResolver(cfg, projectRoot),
		supervisor: NewSupervisor(cfg),
		ports:      NewPortAllocator(cfg.GetPortWindow()),
		registry:   NewRegistry(),
		tracer:     otel.Tracer("github.com/appforge/devserver/internal/devserver"),
		locks:      make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing operations for one session,
// creating it on first use.
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	l, ok := o.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[sessionID] = l
	}
	return l
}

// Start brings up (or observes) the dev server for a session.
//
// A live registered server short-circuits to its existing handle. Otherwise
// the session's app directory is resolved, dependencies are installed if
// needed, a port is allocated, the server is spawned and awaited. A
// readiness timeout (or caller cancellation after spawn) degrades to the
// predicted URL with the server left running; an exit before readiness is a
// hard failure and nothing is registered.
//
// Parameters:
//   - ctx: Cancellation for the blocking phases before and during readiness
//   - sessionID: The session to start a server for
//   - pathHint: Optional explicit app directory, outranks every strategy
//
// Returns:
//   - StartResult: Handle details and a human-readable message
//   - error: Typed failure (*NotFoundError, *InstallError, *SpawnError,
//     *EarlyExitError, ErrPortExhausted)
func (o *Orchestrator) Start(ctx context.Context, sessionID, pathHint string) (StartResult, error) {
	ctx, span := o.tracer.Start(ctx, "devserver.start",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if h, ok := o.registry.TryGet(sessionID); ok {
		span.SetAttributes(attribute.Bool("devserver.already_running", true))
		return StartResult{
			Success:        true,
			SessionID:      sessionID,
			PID:            h.PID,
			Port:           h.Port,
			URL:            h.URL,
			AppPath:        h.Dir,
			AlreadyRunning: true,
			Message:        fmt.Sprintf("Dev server already running at %s", h.URL),
		}, nil
	}

	res, sess, found, err := o.resolve(sessionID, pathHint)
	if err != nil {
		return StartResult{SessionID: sessionID}, o.failSpan(span, err)
	}
	if !apppath.HasManifest(res.Path) {
		err := &NotFoundError{SessionID: sessionID, Path: res.Path}
		return StartResult{SessionID: sessionID}, o.failSpan(span, err)
	}
	span.SetAttributes(
		attribute.String("devserver.app_path", res.Path),
		attribute.String("devserver.strategy", string(res.Strategy)),
	)

	if found && sess.AppPath != res.Path {
		if err := o.sessions.SetAppPath(sessionID, res.Path); err != nil {
			log.Warn("Failed to persist resolved app path", "session", sessionID, "path", res.Path, "error", err)
		}
	}

	if err := o.supervisor.EnsureDeps(ctx, res.Path); err != nil {
		return StartResult{SessionID: sessionID}, o.failSpan(span, err)
	}

	port, err := o.ports.Allocate(o.cfg.GetPortStart())
	if err != nil {
		return StartResult{SessionID: sessionID}, o.failSpan(span, err)
	}
	span.SetAttributes(attribute.Int("devserver.port", port))

	proc, err := o.supervisor.Start(ctx, res.Path, port)
	if err != nil {
		return StartResult{SessionID: sessionID}, o.failSpan(span, err)
	}
	span.SetAttributes(attribute.Int("devserver.pid", proc.PID))
	if o.OnLine != nil {
		id := sessionID
		proc.OnLine = func(stream, line string) { o.OnLine(id, stream, line) }
	}

	timeout := o.cfg.GetReadyTimeout()
	url, err := AwaitReady(ctx, proc, timeout)
	message := fmt.Sprintf("Dev server running at %s", url)
	switch {
	case err == nil:
	case errors.Is(err, ErrReadyTimeout):
		// The tool may well be up without having printed its URL yet;
		// leave it running and predict where it bound.
		url = URLFor(port)
		message = fmt.Sprintf("No ready URL within %s; dev server may still be starting at %s", timeout, url)
		log.Warn("Dev server produced no ready URL", "session", sessionID, "pid", proc.PID, "assumed", url)
	default:
		// Exited before readiness. Sweep up any children it left behind.
		killTree(proc.PID)
		return StartResult{SessionID: sessionID}, o.failSpan(span, err)
	}

	h, _ := o.registry.Put(Handle{
		SessionID: sessionID,
		PID:       proc.PID,
		Port:      port,
		URL:       url,
		Dir:       res.Path,
		StartedAt: time.Now(),
	})

	log.Info("Dev server started", "session", sessionID, "pid", h.PID, "port", h.Port, "url", h.URL)
	return StartResult{
		Success:   true,
		SessionID: sessionID,
		PID:       h.PID,
		Port:      h.Port,
		URL:       h.URL,
		AppPath:   res.Path,
		Strategy:  string(res.Strategy),
		Message:   message,
	}, nil
}

// Stop tears down the dev server for a session.
//
// With no tracked handle and pid 0 there is nothing to do. A caller-supplied
// pid that disagrees with the tracked one stops both trees and reports a
// composite message; a mismatch is never an error.
//
// Parameters:
//   - ctx: Carries the operation's trace span
//   - sessionID: The session whose server should stop
//   - pid: Optional caller-supplied process id (0 means use the tracked one)
//
// Returns:
//   - StopResult: Whether anything was stopped and what happened
//   - error: Reserved for infrastructure failures; absent handles are not errors
func (o *Orchestrator) Stop(ctx context.Context, sessionID string, pid int) (StopResult, error) {
	_, span := o.tracer.Start(ctx, "devserver.stop",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("devserver.requested_pid", pid),
		))
	defer span.End()

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	h, ok := o.registry.TryGet(sessionID)
	switch {
	case !ok && pid == 0:
		return StopResult{Stopped: false, Message: "No dev server is running for this session"}, nil

	case !ok:
		stopped, msg := o.supervisor.Stop(pid)
		return StopResult{Stopped: stopped, Message: msg}, nil

	case pid == 0 || pid == h.PID:
		stopped, msg := o.supervisor.Stop(h.PID)
		o.registry.Remove(sessionID)
		log.Info("Dev server stopped", "session", sessionID, "pid", h.PID)
		return StopResult{Stopped: stopped, Message: msg}, nil

	default:
		// The caller is tracking a different pid than we are. Stop both
		// rather than guessing which one is the real server.
		requestedOK, requestedMsg := o.supervisor.Stop(pid)
		trackedOK, trackedMsg := o.supervisor.Stop(h.PID)
		o.registry.Remove(sessionID)
		log.Warn("Stop pid mismatch", "session", sessionID, "requested", pid, "tracked", h.PID)
		return StopResult{
			Stopped: requestedOK && trackedOK,
			Message: fmt.Sprintf("requested pid %d: %s; tracked pid %d: %s", pid, requestedMsg, h.PID, trackedMsg),
		}, nil
	}
}

// Status reports whether a session's dev server is running. A tracked
// process that died since registration is pruned and reported not-running.
func (o *Orchestrator) Status(ctx context.Context, sessionID string) (StatusResult, error) {
	_, span := o.tracer.Start(ctx, "devserver.status",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	h, ok := o.registry.TryGet(sessionID)
	if !ok {
		return StatusResult{SessionID: sessionID, Running: false}, nil
	}
	return StatusResult{
		SessionID: sessionID,
		Running:   true,
		PID:       h.PID,
		Port:      h.Port,
		URL:       h.URL,
	}, nil
}

// List snapshots the live dev servers, pruning any whose process is gone.
func (o *Orchestrator) List(ctx context.Context) []Handle {
	_, span := o.tracer.Start(ctx, "devserver.list")
	defer span.End()

	handles := o.registry.Live()
	span.SetAttributes(attribute.Int("devserver.count", len(handles)))
	return handles
}

// Adopt seeds the registry with an externally tracked handle, so stop and
// status semantics apply to servers recorded by a previous process. A live
// incumbent for the same session wins.
func (o *Orchestrator) Adopt(h Handle) (Handle, bool) {
	return o.registry.Put(h)
}

// Lookup returns the tracked handle for a session, pruning it when its
// process has died.
func (o *Orchestrator) Lookup(sessionID string) (Handle, bool) {
	return o.registry.TryGet(sessionID)
}

// Resolve runs the app-path pipeline for a session without starting
// anything. The CLI and MCP resolve surfaces use it for dry runs.
func (o *Orchestrator) Resolve(ctx context.Context, sessionID, pathHint string) (apppath.Resolution, error) {
	_, span := o.tracer.Start(ctx, "devserver.resolve",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	res, _, _, err := o.resolve(sessionID, pathHint)
	if err != nil {
		return apppath.Resolution{}, o.failSpan(span, err)
	}
	span.SetAttributes(
		attribute.String("devserver.app_path", res.Path),
		attribute.String("devserver.strategy", string(res.Strategy)),
	)
	return res, nil
}

// resolve assembles the resolution context from the session source and runs
// the strategy pipeline.
func (o *Orchestrator) resolve(sessionID, pathHint string) (apppath.Resolution, store.Session, bool, error) {
	sess, found, err := o.sessions.Get(sessionID)
	if err != nil {
		return apppath.Resolution{}, store.Session{}, false, fmt.Errorf("failed to read session records: %w", err)
	}
	claimed, err := o.sessions.ClaimedPaths(sessionID)
	if err != nil {
		return apppath.Resolution{}, store.Session{}, false, fmt.Errorf("failed to read claimed paths: %w", err)
	}

	res := o.resolver.Resolve(apppath.Context{
		SessionID:     sessionID,
		CreatedAt:     sess.CreatedAt,
		ExplicitPath:  pathHint,
		PersistedPath: sess.AppPath,
		ClaimedPaths:  claimed,
	})
	return res, sess, found, nil
}

// failSpan records err on the span and passes it through.
func (o *Orchestrator) failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
