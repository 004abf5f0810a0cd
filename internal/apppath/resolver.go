package apppath

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/appforge/devserver/internal/config"
	"github.com/appforge/devserver/internal/util"
)

// Strategy identifies which pipeline stage produced a resolution. Earlier
// strategies are more trustworthy; the value is surfaced in logs and tool
// output so operators can see why a session landed on a directory.
type Strategy string

const (
	// StrategyExplicit means the caller supplied the path directly.
	StrategyExplicit Strategy = "explicit-path"

	// StrategyPersisted means a previously resolved path was reused.
	StrategyPersisted Strategy = "persisted-path"

	// StrategyExactName means a directory named after the session id (raw,
	// lowercased, or with underscores as hyphens) was found in the apps root.
	StrategyExactName Strategy = "exact-name"

	// StrategyEmbedded means the directory came from the embedded apps area
	// inside the platform checkout.
	StrategyEmbedded Strategy = "embedded-app"

	// StrategyNormalized means the session id and the directory name reduce
	// to the same normalized key.
	StrategyNormalized Strategy = "normalized-name"

	// StrategySubstring means one of the two names contains the other,
	// case-insensitively.
	StrategySubstring Strategy = "substring"

	// StrategyTimeProximity means the directory closest in time to the
	// session's creation was picked. Best effort; concurrent sessions can
	// confuse it, which is why claimed paths are excluded.
	StrategyTimeProximity Strategy = "time-proximity"

	// StrategyDefault means nothing matched and the conventional path was
	// derived from the session id.
	StrategyDefault Strategy = "default"
)

// proximityWindow bounds the time-proximity heuristic. A candidate whose
// reference time differs from the session's creation by more than this is
// rejected even when it is the closest one on disk.
const proximityWindow = 24 * time.Hour

// Context carries the collaborator-supplied inputs for a single resolution.
type Context struct {
	// SessionID is the logical session being resolved.
	SessionID string

	// CreatedAt is the session's creation time. Zero disables the
	// time-proximity heuristic.
	CreatedAt time.Time

	// ExplicitPath is a caller-supplied directory hint, tried first.
	ExplicitPath string

	// PersistedPath is the path a previous resolution stored for this
	// session, tried second.
	PersistedPath string

	// ClaimedPaths maps directories already persisted by other sessions to
	// their owning session ids. The time-proximity heuristic never assigns a
	// claimed directory.
	ClaimedPaths map[string]string
}

// Resolution is the outcome of a resolve call. Path is always usable: when
// no strategy matched it holds the conventional default location and Matched
// is false so callers can distinguish a real hit from a guess.
type Resolution struct {
	Path     string
	Strategy Strategy
	Matched  bool
}

// Resolver maps sessions to application directories. All fields are plain
// data so tests can point it at temporary directories.
type Resolver struct {
	// AppsRoot is the directory generated apps live under.
	AppsRoot string

	// ProjectRoot is the platform checkout. Empty disables the embedded
	// apps strategy.
	ProjectRoot string

	// EmbeddedDir is the directory name under ProjectRoot holding embedded
	// apps.
	EmbeddedDir string

	// SelfName is the platform's own directory name. It is never matched;
	// the platform frequently mentions itself in logs and timestamps.
	SelfName string
}

// NewResolver builds a resolver from project configuration. projectRoot
// anchors the embedded-apps strategy; empty disables it.
func NewResolver(cfg *config.Config, projectRoot string) *Resolver {
	return &Resolver{
		AppsRoot:    cfg.GetAppsDir(),
		ProjectRoot: projectRoot,
		EmbeddedDir: cfg.GetEmbeddedAppsDir(),
		SelfName:    cfg.GetProjectName(),
	}
}

// Resolve runs the strategy pipeline for one session. Strategies are tried
// strictly in order and the first qualifying directory wins; a directory
// qualifies only when it contains the dependency manifest.
func (r *Resolver) Resolve(rctx Context) Resolution {
	if rctx.ExplicitPath != "" && HasManifest(rctx.ExplicitPath) {
		return r.resolved(rctx, StrategyExplicit, rctx.ExplicitPath)
	}

	if rctx.PersistedPath != "" && HasManifest(rctx.PersistedPath) {
		return r.resolved(rctx, StrategyPersisted, rctx.PersistedPath)
	}

	if rctx.SessionID == "" {
		return r.fallback(rctx)
	}

	for _, variant := range nameVariants(rctx.SessionID) {
		path := filepath.Join(r.AppsRoot, variant)
		if HasManifest(path) {
			return r.resolved(rctx, StrategyExactName, path)
		}
	}

	if path, ok := r.embeddedMatch(rctx.SessionID); ok {
		return r.resolved(rctx, StrategyEmbedded, path)
	}

	candidates := listCandidates(r.AppsRoot)

	if want := NormalizeName(rctx.SessionID); want != "" {
		for _, c := range candidates {
			if c.HasManifest && NormalizeName(c.Name) == want {
				return r.resolved(rctx, StrategyNormalized, c.Path)
			}
		}
	}

	lowerID := strings.ToLower(rctx.SessionID)
	for _, c := range candidates {
		if !c.HasManifest {
			continue
		}
		lowerName := strings.ToLower(c.Name)
		if strings.Contains(lowerName, lowerID) || strings.Contains(lowerID, lowerName) {
			return r.resolved(rctx, StrategySubstring, c.Path)
		}
	}

	if path, ok := r.closestByTime(rctx, candidates); ok {
		return r.resolved(rctx, StrategyTimeProximity, path)
	}

	return r.fallback(rctx)
}

// DefaultPath returns the conventional location for a session's app, derived
// from the sanitized session id. It is where a fresh app would be generated.
func (r *Resolver) DefaultPath(sessionID string) string {
	return filepath.Join(r.AppsRoot, util.SanitizeDirName(sessionID))
}

// embeddedMatch checks the embedded apps area inside the platform checkout:
// first a directory named exactly after the session id, then a fuzzy match
// by normalized name, one level deep.
func (r *Resolver) embeddedMatch(sessionID string) (string, bool) {
	if r.ProjectRoot == "" || r.EmbeddedDir == "" {
		return "", false
	}
	base := filepath.Join(r.ProjectRoot, r.EmbeddedDir)

	exact := filepath.Join(base, sessionID)
	if HasManifest(exact) {
		return exact, true
	}

	want := NormalizeName(sessionID)
	if want == "" {
		return "", false
	}
	for _, c := range listCandidates(base) {
		if c.HasManifest && NormalizeName(c.Name) == want {
			return c.Path, true
		}
	}
	return "", false
}

// closestByTime picks the qualifying candidate whose reference time is
// nearest the session's creation, within proximityWindow. Directories
// claimed by other sessions and the platform's own directory are excluded.
func (r *Resolver) closestByTime(rctx Context, candidates []Candidate) (string, bool) {
	if rctx.CreatedAt.IsZero() {
		return "", false
	}

	claimed := make(map[string]struct{}, len(rctx.ClaimedPaths))
	for p := range rctx.ClaimedPaths {
		claimed[filepath.Clean(p)] = struct{}{}
	}

	var best *Candidate
	var bestDiff time.Duration
	for i := range candidates {
		c := &candidates[i]
		if !c.HasManifest {
			continue
		}
		if _, taken := claimed[c.Path]; taken {
			continue
		}
		if r.SelfName != "" && strings.EqualFold(c.Name, r.SelfName) {
			continue
		}
		diff := rctx.CreatedAt.Sub(c.referenceTime())
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best, bestDiff = c, diff
		}
	}

	if best == nil || bestDiff > proximityWindow {
		return "", false
	}
	return best.Path, true
}

func (r *Resolver) resolved(rctx Context, strategy Strategy, path string) Resolution {
	log.Debug("resolved app path", "session", rctx.SessionID, "strategy", strategy, "path", path)
	return Resolution{Path: path, Strategy: strategy, Matched: true}
}

func (r *Resolver) fallback(rctx Context) Resolution {
	path := r.DefaultPath(rctx.SessionID)
	log.Debug("no app path matched, using default", "session", rctx.SessionID, "path", path)
	return Resolution{Path: path, Strategy: StrategyDefault, Matched: false}
}
