package apppath

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/appforge/devserver/internal/store"
)

// appsFragmentRegex matches "apps/<name>" fragments the way assistants and
// tools mention generated directories in chat.
var appsFragmentRegex = regexp.MustCompile(`\bapps/([A-Za-z0-9][A-Za-z0-9._-]*)`)

// SessionStore is the slice of the session store reconciliation needs.
type SessionStore interface {
	Sessions() ([]store.Session, error)
	MessageLines(sessionID string) ([]string, error)
	SetAppPath(id, path string) error
}

// Change is one persisted-path correction produced by reconciliation.
type Change struct {
	SessionID string `json:"session_id"`
	OldPath   string `json:"old_path,omitempty"`
	NewPath   string `json:"new_path"`
	Mention   string `json:"mention"`
}

// Reconciler backfills or corrects persisted app paths by mining session
// message history for directory mentions. Interactive starts never run this;
// it is a batch maintenance operation.
type Reconciler struct {
	// Resolver supplies the apps root and the self name exclusion.
	Resolver *Resolver

	// Sessions is the record store being reconciled.
	Sessions SessionStore

	// DryRun reports would-be changes without writing any.
	DryRun bool
}

// Run reconciles every known session.
//
// A session is corrected when its message history mentions an app directory
// that exists, carries the manifest, is not the platform's own name, and
// differs from the currently persisted path. The latest mention in the log
// wins. Sessions with no usable mention are left untouched.
//
// Returns:
//   - []Change: The corrections made (or, in dry-run mode, proposed)
//   - error: The first store write failure; scanning problems only log
func (r *Reconciler) Run() ([]Change, error) {
	sessions, err := r.Sessions.Sessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	scanner := newMentionScanner(r.Resolver.AppsRoot)
	var changes []Change
	for _, sess := range sessions {
		change, ok := r.reconcileOne(scanner, sess)
		if !ok {
			continue
		}
		if !r.DryRun {
			if err := r.Sessions.SetAppPath(sess.ID, change.NewPath); err != nil {
				return changes, fmt.Errorf("failed to update session %s: %w", sess.ID, err)
			}
		}
		log.Info("Reconciled app path", "session", sess.ID, "old", change.OldPath, "new", change.NewPath, "dry_run", r.DryRun)
		changes = append(changes, change)
	}
	return changes, nil
}

// reconcileOne scans one session's history and decides whether a correction
// is warranted.
func (r *Reconciler) reconcileOne(scanner *mentionScanner, sess store.Session) (Change, bool) {
	lines, err := r.Sessions.MessageLines(sess.ID)
	if err != nil {
		log.Debug("Skipping session with unreadable message log", "session", sess.ID, "error", err)
		return Change{}, false
	}

	var last string
	for _, line := range lines {
		for _, m := range scanner.scan(line) {
			last = m
		}
	}
	if last == "" {
		return Change{}, false
	}
	if r.Resolver.SelfName != "" && strings.EqualFold(last, r.Resolver.SelfName) {
		return Change{}, false
	}

	path := filepath.Join(r.Resolver.AppsRoot, last)
	if !HasManifest(path) {
		return Change{}, false
	}
	if sess.AppPath != "" && filepath.Clean(sess.AppPath) == filepath.Clean(path) {
		return Change{}, false
	}

	return Change{SessionID: sess.ID, OldPath: sess.AppPath, NewPath: path, Mention: last}, true
}

// MentionedApps extracts the app directory names referenced in one raw JSONL
// message line, in order of appearance. It looks at assistant text and
// tool-result content, recognizing "apps/<name>" fragments and absolute
// paths under appsRoot.
func MentionedApps(line, appsRoot string) []string {
	return newMentionScanner(appsRoot).scan(line)
}

// mentionScanner holds the per-run compiled absolute-path pattern.
type mentionScanner struct {
	abs *regexp.Regexp
}

func newMentionScanner(appsRoot string) *mentionScanner {
	root := strings.TrimSuffix(filepath.ToSlash(appsRoot), "/")
	if root == "" {
		return &mentionScanner{}
	}
	return &mentionScanner{
		abs: regexp.MustCompile(regexp.QuoteMeta(root) + `/([A-Za-z0-9][A-Za-z0-9._-]*)`),
	}
}

// scan pulls directory mentions out of one raw message line, in order of
// appearance. An absolute path under the apps root also matches the fragment
// pattern, so hits on the same span are collapsed.
func (m *mentionScanner) scan(line string) []string {
	var names []string
	for _, text := range messageTexts(line) {
		type hit struct {
			end  int
			name string
		}
		var hits []hit
		if m.abs != nil {
			for _, idx := range m.abs.FindAllStringSubmatchIndex(text, -1) {
				hits = append(hits, hit{end: idx[3], name: text[idx[2]:idx[3]]})
			}
		}
		for _, idx := range appsFragmentRegex.FindAllStringSubmatchIndex(text, -1) {
			hits = append(hits, hit{end: idx[3], name: text[idx[2]:idx[3]]})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].end < hits[j].end })
		for i, h := range hits {
			if i > 0 && hits[i-1].end == h.end {
				continue
			}
			names = append(names, h.name)
		}
	}
	return names
}

// messageTexts extracts the text blobs worth scanning from one message:
// assistant prose and tool-result payloads. Message content is either a
// plain string or an array of typed blocks, with tool results nesting one
// level deeper.
func messageTexts(line string) []string {
	if !gjson.Valid(line) {
		return nil
	}

	role := gjson.Get(line, "role").String()
	content := gjson.Get(line, "content")

	var texts []string
	if content.Type == gjson.String {
		if role == "assistant" {
			texts = append(texts, content.String())
		}
		return texts
	}

	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			if role == "assistant" {
				texts = append(texts, block.Get("text").String())
			}
		case "tool_result":
			inner := block.Get("content")
			if inner.Type == gjson.String {
				texts = append(texts, inner.String())
				return true
			}
			inner.ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "text" {
					texts = append(texts, part.Get("text").String())
				}
				return true
			})
		}
		return true
	})
	return texts
}
