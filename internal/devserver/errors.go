package devserver

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrPortExhausted means no free port was found inside the scan window.
	ErrPortExhausted = errors.New("no free port in scan window")

	// ErrReadyTimeout means the process printed no ready URL before the
	// deadline. Callers treat this as soft: the server may well be up, so
	// they fall back to the URL predicted from the allocated port.
	ErrReadyTimeout = errors.New("timed out waiting for ready URL")
)

// NotFoundError means no application directory could be resolved for a
// session, or the resolved directory lacks the dependency manifest.
type NotFoundError struct {
	// SessionID is the session that failed to resolve.
	SessionID string

	// Path is the directory that was tried last (the resolver's answer).
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no app found for session %q (looked in %s)", e.SessionID, e.Path)
}

// InstallError means the one-shot dependency install failed before the dev
// server was ever spawned.
type InstallError struct {
	// Dir is the app directory the install ran in.
	Dir string

	// Output is the tail of the install tool's combined output.
	Output string

	// Err is the underlying process error.
	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("dependency install failed in %s: %v", e.Dir, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// SpawnError means the dev server process could not be started at all.
type SpawnError struct {
	// Dir is the app directory the spawn was attempted in.
	Dir string

	// Err is the underlying OS error.
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start dev server in %s: %v", e.Dir, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// EarlyExitError means the process exited before announcing a ready URL.
// Unlike a timeout this is a hard failure: there is no server to talk to.
type EarlyExitError struct {
	// Err is the Wait result, nil when the process exited with status 0.
	Err error
}

func (e *EarlyExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dev server exited before becoming ready: %v", e.Err)
	}
	return "dev server exited before becoming ready"
}

func (e *EarlyExitError) Unwrap() error { return e.Err }
