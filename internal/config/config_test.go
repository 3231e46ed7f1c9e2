package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "crater.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleTOML = `
[demo-crates]
crates = ["serde", "tokio"]
github-repos = ["rust-lang/regex"]
local-crates = ["/srv/local-crate"]

[sandbox]
memory-limit = "2G"
build-log-max-size = "10M"
build-log-max-lines = 5000

[server.acl]
allowed-users = ["alice", "bob"]

[server.callback]
timeout-secs = 45
retry-count = 5

[platforms.github]
api-base-url = "https://api.github.com"
token = "ghp_xxx"
webhook-secret = "test-secret"
`

func TestLoadFileParsesAllSections(t *testing.T) {
	path := writeTOML(t, sampleTOML)
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(f.DemoCrates.Crates) != 2 || f.DemoCrates.Crates[0] != "serde" {
		t.Fatalf("unexpected demo crates: %+v", f.DemoCrates)
	}
	mem, err := f.Sandbox.MemoryLimit()
	if err != nil || mem.String() != "2G" {
		t.Fatalf("unexpected memory limit: %v %v", mem, err)
	}
	if !f.IsAllowedUser("alice") || f.IsAllowedUser("mallory") {
		t.Fatal("ACL allowed-users lookup wrong")
	}
	if f.CallbackTimeoutSecs() != 45 || f.CallbackRetryCount() != 5 {
		t.Fatalf("unexpected callback config: %+v", f.Server.Callback)
	}
	p, ok := f.Platform("github")
	if !ok || p.WebhookSecret != "test-secret" {
		t.Fatalf("unexpected github platform: %+v ok=%v", p, ok)
	}
}

func TestCallbackDefaultsWhenUnset(t *testing.T) {
	path := writeTOML(t, "[demo-crates]\ncrates = []\n")
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if f.CallbackTimeoutSecs() != 30 {
		t.Fatalf("expected default timeout 30, got %d", f.CallbackTimeoutSecs())
	}
	if f.CallbackRetryCount() != 3 {
		t.Fatalf("expected default retry count 3, got %d", f.CallbackRetryCount())
	}
}

func TestSandboxMemoryLimitDefaultsToZero(t *testing.T) {
	s := Sandbox{}
	mem, err := s.MemoryLimit()
	if err != nil {
		t.Fatalf("MemoryLimit: %v", err)
	}
	if mem != 0 {
		t.Fatalf("expected 0, got %v", mem)
	}
}

func TestWatcherLoadsInitialFile(t *testing.T) {
	path := writeTOML(t, "[server.acl]\nallowed-users = [\"alice\"]\n")
	w, err := NewWatcher(path, func(err error) { t.Logf("watcher error: %v", err) })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if !w.Current().IsAllowedUser("alice") {
		t.Fatal("expected alice to be allowed initially")
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	os.Unsetenv("RP_ADDR")
	os.Unsetenv("RP_DB_PATH")
	os.Unsetenv("CRATER_WORK_DIR")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.WorkDir != "work" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
