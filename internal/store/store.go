// Package store persists session records and reads collaborator message logs.
//
// The platform writes ~/.appforge/sessions.json and messages/<id>.jsonl; this
// package mirrors the fields the devserver needs and performs surgical updates
// (sjson) so collaborator-owned fields survive every write. Records are edited
// in place in the raw document rather than round-tripped through Go structs.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	sessionsFileName = "sessions.json"
	messagesDirName  = "messages"
)

// emptyDocument is the initial sessions file content.
const emptyDocument = `{"sessions":[]}`

// Session is the slice of a collaborator session record this subsystem reads
// and maintains. Unknown fields in the underlying JSON are preserved.
type Session struct {
	// ID is the opaque session identifier (also the default app name).
	ID string `json:"id"`

	// CreatedAt is when the collaborator created the session.
	CreatedAt time.Time `json:"created_at"`

	// AppPath is the persisted resolution for this session, if any.
	AppPath string `json:"app_path,omitempty"`
}

// Store reads and updates session records under a state directory.
//
// A parsed snapshot of sessions.json is cached between calls; Invalidate (or
// the watcher) drops it so the next read sees external edits.
type Store struct {
	dir string

	mu       sync.RWMutex
	raw      []byte
	sessions []Session
	loaded   bool
}

// NewWithDir creates a store rooted at a state directory, normally
// config.GetStateDir().
//
// Parameters:
//   - dir: The directory holding sessions.json and messages/
//
// Returns:
//   - *Store: A new store instance
func NewWithDir(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory this store reads from.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) sessionsPath() string {
	return filepath.Join(s.dir, sessionsFileName)
}

func (s *Store) messagesPath(sessionID string) string {
	return filepath.Join(s.dir, messagesDirName, sessionID+".jsonl")
}

// Invalidate drops the cached snapshot so the next read hits the disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.raw = nil
	s.sessions = nil
}

// load reads and parses sessions.json into the cache. Callers hold s.mu.
func (s *Store) load() error {
	if s.loaded {
		return nil
	}

	raw, err := os.ReadFile(s.sessionsPath())
	if err != nil {
		if os.IsNotExist(err) {
			raw = []byte(emptyDocument)
		} else {
			return fmt.Errorf("failed to read sessions file: %w", err)
		}
	}

	var doc struct {
		Sessions []Session `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse sessions file: %w", err)
	}

	s.raw = raw
	s.sessions = doc.Sessions
	s.loaded = true
	return nil
}

// Sessions returns all session records.
func (s *Store) Sessions() ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	out := make([]Session, len(s.sessions))
	copy(out, s.sessions)
	return out, nil
}

// Get returns the session with the given id.
//
// Returns:
//   - Session: The record, zero-valued when absent
//   - bool: Whether the session exists
//   - error: Any error reading the sessions file
func (s *Store) Get(id string) (Session, bool, error) {
	sessions, err := s.Sessions()
	if err != nil {
		return Session{}, false, err
	}
	for _, sess := range sessions {
		if sess.ID == id {
			return sess, true, nil
		}
	}
	return Session{}, false, nil
}

// Add appends a session record. An empty ID is replaced with a fresh UUID and
// a zero CreatedAt with the current time.
//
// Returns:
//   - Session: The record as stored
//   - error: Error when the id already exists or the write fails
func (s *Store) Add(sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return Session{}, err
	}
	for _, existing := range s.sessions {
		if existing.ID == sess.ID {
			return Session{}, fmt.Errorf("session %q already exists", sess.ID)
		}
	}

	record, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("failed to marshal session: %w", err)
	}
	raw, err := sjson.SetRawBytes(s.raw, "sessions.-1", record)
	if err != nil {
		return Session{}, fmt.Errorf("failed to append session: %w", err)
	}

	if err := s.writeLocked(raw); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Remove deletes a session record.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("session %q not found", id)
	}

	raw, err := sjson.DeleteBytes(s.raw, fmt.Sprintf("sessions.%d", idx))
	if err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return s.writeLocked(raw)
}

// SetAppPath updates one session's persisted path in place, leaving every
// other byte of the document as the collaborator wrote it.
func (s *Store) SetAppPath(id, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("session %q not found", id)
	}

	raw, err := sjson.SetBytes(s.raw, fmt.Sprintf("sessions.%d.app_path", idx), path)
	if err != nil {
		return fmt.Errorf("failed to update app path: %w", err)
	}
	return s.writeLocked(raw)
}

// indexLocked finds a session's position in the raw document. Callers hold s.mu.
func (s *Store) indexLocked(id string) int {
	for i, res := range gjson.GetBytes(s.raw, "sessions").Array() {
		if res.Get("id").String() == id {
			return i
		}
	}
	return -1
}

// writeLocked persists the document atomically and refreshes the cache.
// Callers hold s.mu.
func (s *Store) writeLocked(raw []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.sessionsPath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	if err := os.Rename(tmp, s.sessionsPath()); err != nil {
		return fmt.Errorf("failed to replace sessions file: %w", err)
	}

	var doc struct {
		Sessions []Session `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse sessions file after write: %w", err)
	}
	s.raw = raw
	s.sessions = doc.Sessions
	s.loaded = true
	return nil
}

// ClaimedPaths returns app paths held by sessions other than excludeID,
// mapped to the owning session id. Sessions without a path are skipped.
func (s *Store) ClaimedPaths(excludeID string) (map[string]string, error) {
	sessions, err := s.Sessions()
	if err != nil {
		return nil, err
	}

	claimed := make(map[string]string)
	for _, sess := range sessions {
		if sess.ID == excludeID || sess.AppPath == "" {
			continue
		}
		claimed[sess.AppPath] = sess.ID
	}
	return claimed, nil
}

// MessageLines returns the raw JSONL lines of a session's message log.
// A missing log yields an empty slice, not an error.
func (s *Store) MessageLines(sessionID string) ([]string, error) {
	f, err := os.Open(s.messagesPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open message log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // message lines can be large
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read message log: %w", err)
	}
	return lines, nil
}
