package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/appforge/devserver/internal/apppath"
	"github.com/appforge/devserver/internal/config"
	"github.com/appforge/devserver/internal/store"
)

// fakeSessions is an in-memory SessionSource.
type fakeSessions struct {
	mu       sync.Mutex
	records  map[string]store.Session
	claimed  map[string]string
	setCalls map[string]string
}

func newFakeSessions(sessions ...store.Session) *fakeSessions {
	f := &fakeSessions{
		records:  make(map[string]store.Session),
		claimed:  make(map[string]string),
		setCalls: make(map[string]string),
	}
	for _, s := range sessions {
		f.records[s.ID] = s
	}
	return f
}

func (f *fakeSessions) Get(id string) (store.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.records[id]
	return s, ok, nil
}

func (f *fakeSessions) ClaimedPaths(excludeID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for path, owner := range f.claimed {
		if owner != excludeID {
			out[path] = owner
		}
	}
	return out, nil
}

func (f *fakeSessions) SetAppPath(id, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.records[id]
	s.ID = id
	s.AppPath = path
	f.records[id] = s
	f.setCalls[id] = path
	return nil
}

func (f *fakeSessions) persistedPath(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls[id]
}

// testConfig builds a config pointing at temp directories and fake commands.
func testConfig(appsRoot string, dev []string, readySecs int) *config.Config {
	return &config.Config{
		Workspace: config.WorkspaceConfig{AppsDir: appsRoot, ProjectName: "appforge"},
		Server: config.ServerConfig{
			PortStart:        46200,
			PortWindow:       50,
			ReadyTimeoutSecs: readySecs,
			KillGraceSecs:    2,
		},
		Commands: config.CommandsConfig{Install: []string{"true"}, Dev: dev},
	}
}

// announcingScript writes a fake dev server that logs its spawn, announces a
// local URL on the allocated port, then idles until killed.
func announcingScript(t *testing.T) string {
	t.Helper()
	return writeScript(t, t.TempDir(), "fake-dev",
		"echo started >> \"${SPAWN_LOG:-/dev/null}\"\n"+
			"echo \"  Local: http://localhost:$3/\"\n"+
			"exec sleep 30\n")
}

// sessionApp creates <appsRoot>/<name> with a manifest and returns its path.
func sessionApp(t *testing.T, appsRoot, name string) string {
	t.Helper()
	dir := filepath.Join(appsRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"`+name+`"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func stopOnCleanup(t *testing.T, o *Orchestrator, sessionID string) {
	t.Helper()
	t.Cleanup(func() {
		o.Stop(context.Background(), sessionID, 0)
	})
}

func TestOrchestratorStartStatusStop(t *testing.T) {
	requirePOSIX(t)
	appsRoot := t.TempDir()
	appDir := sessionApp(t, appsRoot, "my-session")

	sessions := newFakeSessions(store.Session{ID: "my-session", CreatedAt: time.Now()})
	o := NewOrchestrator(testConfig(appsRoot, []string{announcingScript(t)}, 5), "", sessions)
	stopOnCleanup(t, o, "my-session")

	res, err := o.Start(context.Background(), "my-session", "")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !res.Success || res.PID <= 0 {
		t.Fatalf("Start result = %+v, want success with a pid", res)
	}
	if res.URL != URLFor(res.Port) {
		t.Errorf("URL = %q, want %q", res.URL, URLFor(res.Port))
	}
	if res.AppPath != appDir {
		t.Errorf("AppPath = %q, want %q", res.AppPath, appDir)
	}
	if res.Strategy != string(apppath.StrategyExactName) {
		t.Errorf("Strategy = %q, want %q", res.Strategy, apppath.StrategyExactName)
	}

	st, err := o.Status(context.Background(), "my-session")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.Running || st.PID != res.PID || st.Port != res.Port {
		t.Errorf("Status = %+v, want running pid %d port %d", st, res.PID, res.Port)
	}

	stopRes, err := o.Stop(context.Background(), "my-session", 0)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopRes.Stopped {
		t.Fatalf("Stop = %+v, want stopped", stopRes)
	}

	st, _ = o.Status(context.Background(), "my-session")
	if st.Running {
		t.Error("Status still running after Stop")
	}
}

func TestOrchestratorSecondStartReturnsExistingHandle(t *testing.T) {
	requirePOSIX(t)
	appsRoot := t.TempDir()
	sessionApp(t, appsRoot, "repeat")
	spawnLog := filepath.Join(t.TempDir(), "spawns.log")
	t.Setenv("SPAWN_LOG", spawnLog)

	sessions := newFakeSessions(store.Session{ID: "repeat", CreatedAt: time.Now()})
	o := NewOrchestrator(testConfig(appsRoot, []string{announcingScript(t)}, 5), "", sessions)
	stopOnCleanup(t, o, "repeat")

	first, err := o.Start(context.Background(), "repeat", "")
	if err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	second, err := o.Start(context.Background(), "repeat", "")
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	if !second.AlreadyRunning {
		t.Error("second Start did not report already running")
	}
	if second.PID != first.PID || second.Port != first.Port || second.URL != first.URL {
		t.Errorf("second Start handle = %+v, want the first one %+v", second, first)
	}
	if !strings.Contains(second.Message, "already running") {
		t.Errorf("second Start message = %q", second.Message)
	}

	data, err := os.ReadFile(spawnLog)
	if err != nil {
		t.Fatalf("spawn log missing: %v", err)
	}
	if got := strings.Count(string(data), "started"); got != 1 {
		t.Errorf("dev server spawned %d times, want 1", got)
	}
}

func TestOrchestratorConcurrentStartsSpawnOnce(t *testing.T) {
	requirePOSIX(t)
	appsRoot := t.TempDir()
	sessionApp(t, appsRoot, "racy")
	spawnLog := filepath.Join(t.TempDir(), "spawns.log")
	t.Setenv("SPAWN_LOG", spawnLog)

	sessions := newFakeSessions(store.Session{ID: "racy", CreatedAt: time.Now()})
	o := NewOrchestrator(testConfig(appsRoot, []string{announcingScript(t)}, 5), "", sessions)
	stopOnCleanup(t, o, "racy")

	var wg sync.WaitGroup
	results := make([]StartResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Start(context.Background(), "racy", "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Start %d failed: %v", i, err)
		}
	}
	if results[0].PID != results[1].PID {
		t.Errorf("concurrent starts got different pids: %d and %d", results[0].PID, results[1].PID)
	}

	data, err := os.ReadFile(spawnLog)
	if err != nil {
		t.Fatalf("spawn log missing: %v", err)
	}
	if got := strings.Count(string(data), "started"); got != 1 {
		t.Errorf("dev server spawned %d times, want 1", got)
	}
}

func TestOrchestratorEarlyExitLeavesNoHandle(t *testing.T) {
	requirePOSIX(t)
	appsRoot := t.TempDir()
	sessionApp(t, appsRoot, "broken")
	script := writeScript(t, t.TempDir(), "fake-dev",
		"echo \"npm ERR! missing script: dev\" >&2\nexit 1\n")

	sessions := newFakeSessions(store.Session{ID: "broken", CreatedAt: time.Now()})
	o := NewOrchestrator(testConfig(appsRoot, []string{script}, 5), "", sessions)

	_, err := o.Start(context.Background(), "broken", "")
	var exitErr *EarlyExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Start error = %v, want *EarlyExitError", err)
	}

	st, _ := o.Status(context.Background(), "broken")
	if st.Running {
		t.Error("a handle exists after an early exit")
	}
}

func TestOrchestratorStartUnresolvableSession(t *testing.T) {
	sessions := newFakeSessions(store.Session{ID: "ghost", CreatedAt: time.Now()})
	o := NewOrchestrator(testConfig(t.TempDir(), []string{"true"}, 5), "", sessions)

	_, err := o.Start(context.Background(), "ghost", "")
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("Start error = %v, want *NotFoundError", err)
	}
	if nfErr.SessionID != "ghost" {
		t.Errorf("NotFoundError session = %q, want ghost", nfErr.SessionID)
	}
}

func TestOrchestratorStopWithNothingRunning(t *testing.T) {
	sessions := newFakeSessions()
	o := NewOrchestrator(testConfig(t.TempDir(), []string{"true"}, 5), "", sessions)

	res, err := o.Stop(context.Background(), "idle", 0)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if res.Stopped {
		t.Error("Stop reported stopped with nothing running")
	}
	if res.Message != "No dev server is running for this session" {
		t.Errorf("Stop message = %q", res.Message)
	}
}

func TestOrchestratorStopPidMismatchStopsBoth(t *testing.T) {
	requirePOSIX(t)
	appsRoot := t.TempDir()
	sessionApp(t, appsRoot, "confused")

	sessions := newFakeSessions(store.Session{ID: "confused", CreatedAt: time.Now()})
	o := NewOrchestrator(testConfig(appsRoot, []string{announcingScript(t)}, 5), "", sessions)
	stopOnCleanup(t, o, "confused")

	started, err := o.Start(context.Background(), "confused", "")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	decoy := exec.Command("sleep", "30")
	setSysProcAttr(decoy)
	if err := decoy.Start(); err != nil {
		t.Skipf("cannot start decoy process: %v", err)
	}
	go decoy.Wait()

	res, err := o.Stop(context.Background(), "confused", decoy.Process.Pid)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !strings.Contains(res.Message, fmt.Sprintf("requested pid %d", decoy.Process.Pid)) ||
		!strings.Contains(res.Message, fmt.Sprintf("tracked pid %d", started.PID)) {
		t.Errorf("Stop message = %q, want both pids mentioned", res.Message)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && (PidAlive(started.PID) || PidAlive(decoy.Process.Pid)) {
		time.Sleep(50 * time.Millisecond)
	}
	if PidAlive(started.PID) {
		t.Errorf("tracked pid %d survived mismatch stop", started.PID)
	}
	if PidAlive(decoy.Process.Pid) {
		t.Errorf("requested pid %d survived mismatch stop", decoy.Process.Pid)
	}

	st, _ := o.Status(context.Background(), "confused")
	if st.Running {
		t.Error("handle survived mismatch stop")
	}
}

func TestOrchestratorReadyTimeoutFallsBackToPredictedURL(t *testing.T) {
	requirePOSIX(t)
	appsRoot := t.TempDir()
	sessionApp(t, appsRoot, "quiet")
	script := writeScript(t, t.TempDir(), "fake-dev", "exec sleep 30\n")

	sessions := newFakeSessions(store.Session{ID: "quiet", CreatedAt: time.Now()})
	o := NewOrchestrator(testConfig(appsRoot, []string{script}, 1), "", sessions)
	stopOnCleanup(t, o, "quiet")

	res, err := o.Start(context.Background(), "quiet", "")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Start result = %+v, want soft success", res)
	}
	if res.URL != URLFor(res.Port) {
		t.Errorf("URL = %q, want predicted %q", res.URL, URLFor(res.Port))
	}

	st, _ := o.Status(context.Background(), "quiet")
	if !st.Running {
		t.Error("server not registered after readiness timeout")
	}
}

func TestOrchestratorPersistsResolvedPath(t *testing.T) {
	requirePOSIX(t)
	appsRoot := t.TempDir()
	appDir := sessionApp(t, appsRoot, "fresh")

	sessions := newFakeSessions(store.Session{ID: "fresh", CreatedAt: time.Now()})
	o := NewOrchestrator(testConfig(appsRoot, []string{announcingScript(t)}, 5), "", sessions)
	stopOnCleanup(t, o, "fresh")

	if _, err := o.Start(context.Background(), "fresh", ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := sessions.persistedPath("fresh"); got != appDir {
		t.Errorf("persisted path = %q, want %q", got, appDir)
	}
}

func TestOrchestratorResolvePrecedence(t *testing.T) {
	appsRoot := t.TempDir()
	persisted := sessionApp(t, appsRoot, "stored-app")
	explicit := sessionApp(t, appsRoot, "other-app")

	sessions := newFakeSessions(store.Session{ID: "sess", CreatedAt: time.Now(), AppPath: persisted})
	o := NewOrchestrator(testConfig(appsRoot, []string{"true"}, 5), "", sessions)

	res, err := o.Resolve(context.Background(), "sess", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Path != persisted || res.Strategy != apppath.StrategyPersisted {
		t.Errorf("Resolve = %+v, want persisted %q", res, persisted)
	}

	res, err = o.Resolve(context.Background(), "sess", explicit)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Path != explicit || res.Strategy != apppath.StrategyExplicit {
		t.Errorf("Resolve = %+v, want explicit %q", res, explicit)
	}
}

func TestOrchestratorStartExhaustedPortWindow(t *testing.T) {
	requirePOSIX(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer ln.Close()
	occupied := ln.Addr().(*net.TCPAddr).Port

	appsRoot := t.TempDir()
	sessionApp(t, appsRoot, "crowded")

	cfg := testConfig(appsRoot, []string{announcingScript(t)}, 5)
	cfg.Server.PortStart = occupied
	cfg.Server.PortWindow = 1

	sessions := newFakeSessions(store.Session{ID: "crowded", CreatedAt: time.Now()})
	o := NewOrchestrator(cfg, "", sessions)

	_, err = o.Start(context.Background(), "crowded", "")
	if !errors.Is(err, ErrPortExhausted) {
		t.Errorf("Start error = %v, want ErrPortExhausted", err)
	}
}
