package apppath

import (
	"reflect"
	"testing"

	"github.com/appforge/devserver/internal/store"
)

func TestMentionedApps(t *testing.T) {
	appsRoot := "/home/dev/AppForge/apps"

	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			"assistant string content",
			`{"role":"assistant","content":"Created the app in apps/helicopter-game and started it"}`,
			[]string{"helicopter-game"},
		},
		{
			"assistant text block",
			`{"role":"assistant","content":[{"type":"text","text":"see apps/snake-game for the code"}]}`,
			[]string{"snake-game"},
		},
		{
			"tool result string content",
			`{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"wrote /home/dev/AppForge/apps/foo-app/package.json"}]}`,
			[]string{"foo-app"},
		},
		{
			"tool result nested text blocks",
			`{"role":"user","content":[{"type":"tool_result","content":[{"type":"text","text":"apps/alpha and apps/beta created"}]}]}`,
			[]string{"alpha", "beta"},
		},
		{
			"user prose is not scanned",
			`{"role":"user","content":"please look at apps/evil"}`,
			nil,
		},
		{
			"absolute and fragment in one blob",
			`{"role":"assistant","content":"moved /home/dev/AppForge/apps/old-one to apps/new-one"}`,
			[]string{"old-one", "new-one"},
		},
		{
			"unrelated path prefix",
			`{"role":"assistant","content":"this lives in webapps/thing"}`,
			nil,
		},
		{
			"not json",
			"plain log line mentioning apps/thing",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MentionedApps(tt.line, appsRoot)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MentionedApps(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

// fakeRecords is an in-memory SessionStore for reconciliation tests.
type fakeRecords struct {
	sessions []store.Session
	messages map[string][]string
	updates  map[string]string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{messages: make(map[string][]string), updates: make(map[string]string)}
}

func (f *fakeRecords) Sessions() ([]store.Session, error) { return f.sessions, nil }

func (f *fakeRecords) MessageLines(sessionID string) ([]string, error) {
	return f.messages[sessionID], nil
}

func (f *fakeRecords) SetAppPath(id, path string) error {
	f.updates[id] = path
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.sessions[i].AppPath = path
		}
	}
	return nil
}

func TestReconcileBackfillsFromHistory(t *testing.T) {
	root := t.TempDir()
	app := makeApp(t, root, "real-app", true)

	records := newFakeRecords()
	records.sessions = []store.Session{{ID: "s1"}}
	records.messages["s1"] = []string{
		`{"role":"assistant","content":"generating your app"}`,
		`{"role":"assistant","content":"done, see apps/real-app"}`,
	}

	rec := &Reconciler{Resolver: &Resolver{AppsRoot: root}, Sessions: records}
	changes, err := rec.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(changes) != 1 {
		t.Fatalf("Run produced %d changes, want 1: %+v", len(changes), changes)
	}
	if changes[0].SessionID != "s1" || changes[0].NewPath != app || changes[0].Mention != "real-app" {
		t.Errorf("change = %+v", changes[0])
	}
	if records.updates["s1"] != app {
		t.Errorf("persisted path = %q, want %q", records.updates["s1"], app)
	}
}

func TestReconcileLatestMentionWins(t *testing.T) {
	root := t.TempDir()
	makeApp(t, root, "old-app", true)
	newApp := makeApp(t, root, "new-app", true)

	records := newFakeRecords()
	records.sessions = []store.Session{{ID: "s1"}}
	records.messages["s1"] = []string{
		`{"role":"assistant","content":"started in apps/old-app"}`,
		`{"role":"assistant","content":"actually moved everything to apps/new-app"}`,
	}

	rec := &Reconciler{Resolver: &Resolver{AppsRoot: root}, Sessions: records}
	changes, err := rec.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(changes) != 1 || changes[0].NewPath != newApp {
		t.Errorf("changes = %+v, want the later mention %q", changes, newApp)
	}
}

func TestReconcileSkipsSelfName(t *testing.T) {
	root := t.TempDir()
	makeApp(t, root, "appforge", true)

	records := newFakeRecords()
	records.sessions = []store.Session{{ID: "s1"}}
	records.messages["s1"] = []string{
		`{"role":"assistant","content":"the platform code is in apps/appforge"}`,
	}

	rec := &Reconciler{Resolver: &Resolver{AppsRoot: root, SelfName: "appforge"}, Sessions: records}
	changes, err := rec.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("changes = %+v, want none for the platform's own directory", changes)
	}
}

func TestReconcileSkipsNonQualifyingMention(t *testing.T) {
	root := t.TempDir()
	makeApp(t, root, "no-manifest", false)

	records := newFakeRecords()
	records.sessions = []store.Session{{ID: "s1"}}
	records.messages["s1"] = []string{
		`{"role":"assistant","content":"see apps/no-manifest and apps/never-created"}`,
	}

	rec := &Reconciler{Resolver: &Resolver{AppsRoot: root}, Sessions: records}
	changes, err := rec.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("changes = %+v, want none", changes)
	}
}

func TestReconcileLeavesCorrectPathsAlone(t *testing.T) {
	root := t.TempDir()
	app := makeApp(t, root, "real-app", true)

	records := newFakeRecords()
	records.sessions = []store.Session{{ID: "s1", AppPath: app}}
	records.messages["s1"] = []string{
		`{"role":"assistant","content":"your app is in apps/real-app"}`,
	}

	rec := &Reconciler{Resolver: &Resolver{AppsRoot: root}, Sessions: records}
	changes, err := rec.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("changes = %+v, want none when already correct", changes)
	}
}

func TestReconcileDryRunDoesNotWrite(t *testing.T) {
	root := t.TempDir()
	app := makeApp(t, root, "real-app", true)

	records := newFakeRecords()
	records.sessions = []store.Session{{ID: "s1"}}
	records.messages["s1"] = []string{
		`{"role":"assistant","content":"done, see apps/real-app"}`,
	}

	rec := &Reconciler{Resolver: &Resolver{AppsRoot: root}, Sessions: records, DryRun: true}
	changes, err := rec.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(changes) != 1 || changes[0].NewPath != app {
		t.Fatalf("changes = %+v, want the proposed change", changes)
	}
	if len(records.updates) != 0 {
		t.Errorf("dry run wrote updates: %v", records.updates)
	}
}
