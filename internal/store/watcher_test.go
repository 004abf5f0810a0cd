package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchInvalidatesOnExternalWrite(t *testing.T) {
	dir := t.TempDir()
	s := NewWithDir(dir)

	if _, err := s.Add(Session{ID: "old"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if _, err := s.Sessions(); err != nil {
		t.Fatalf("Sessions() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	doc := `{"sessions":[{"id":"fresh","created_at":"2025-06-01T00:00:00Z"}]}`
	if err := os.WriteFile(filepath.Join(dir, "sessions.json"), []byte(doc), 0644); err != nil {
		t.Fatalf("external write: %v", err)
	}

	// The watcher delivers asynchronously; poll until the snapshot refreshes.
	deadline := time.After(5 * time.Second)
	for {
		sessions, err := s.Sessions()
		if err != nil {
			t.Fatalf("Sessions() error: %v", err)
		}
		if len(sessions) == 1 && sessions[0].ID == "fresh" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("snapshot never refreshed, still %+v", sessions)
		case <-time.After(20 * time.Millisecond):
		}
	}
}
