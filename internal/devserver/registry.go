package devserver

import (
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Handle is a live dev-server registration for one session.
type Handle struct {
	SessionID string    `json:"session_id"`
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	URL       string    `json:"url"`
	Dir       string    `json:"dir,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Registry maps session ids to running dev servers. Entries whose process
// died out from under us (crash, external kill) are pruned on every lookup,
// so a dead entry never blocks a restart.
type Registry struct {
	mu      sync.Mutex
	handles map[string]Handle

	// alive reports whether a pid is still running. Tests inject this.
	alive func(pid int) bool
}

// NewRegistry creates an empty registry backed by real pid probing.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]Handle),
		alive:   PidAlive,
	}
}

// TryGet returns the live handle for sessionID. A handle whose process is
// gone is removed and reported as absent.
func (r *Registry) TryGet(sessionID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[sessionID]
	if !ok {
		return Handle{}, false
	}
	if !r.alive(h.PID) {
		log.Debug("Pruning dead dev server entry", "session", sessionID, "pid", h.PID)
		delete(r.handles, sessionID)
		return Handle{}, false
	}
	return h, true
}

// Put registers h unless a live handle already exists for the session, in
// which case the incumbent wins.
//
// Returns:
//   - Handle: The handle now registered (h, or the incumbent)
//   - bool: Whether h was inserted
func (r *Registry) Put(h Handle) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.handles[h.SessionID]; ok && r.alive(cur.PID) {
		return cur, false
	}
	r.handles[h.SessionID] = h
	return h, true
}

// Remove drops the handle for sessionID, if any.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, sessionID)
}

// Live prunes dead entries and returns the remaining handles sorted by
// session id.
func (r *Registry) Live() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Handle, 0, len(r.handles))
	for id, h := range r.handles {
		if !r.alive(h.PID) {
			delete(r.handles, id)
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
