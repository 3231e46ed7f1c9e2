// Package config loads server configuration from the environment (addr,
// db path, work dir — sensible local defaults, no secrets required to
// start) and from a TOML file (demo-crates, sandbox, server.acl,
// server.callback, platforms.* per spec.md §6), with the TOML layer
// optionally hot-reloaded via fsnotify when platform secrets rotate.
//
// Grounded on the teacher's internal/config/config.go (env(key, def)
// helper, required-field validation at Load) for the env layer, and
// original_source/src/config.rs (toml::from_str, nested SandboxConfig/
// ServerConfig) for the TOML layer, translated field-for-field.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/LuuuXXX/crater-ohos/internal/util"
)

// Config is the env-sourced half of startup configuration.
type Config struct {
	Addr           string
	DatabasePath   string
	DatabaseDSN    string
	WorkDir        string
	TOMLConfigPath string
}

// Load reads the env-var layer. RP_ADDR/RP_DB_PATH default sensibly for
// local development; CRATER_WORK_DIR is the on-disk work directory
// spec.md §6 names, defaulting to "work".
func Load() (Config, error) {
	cfg := Config{
		Addr:           env("RP_ADDR", ":8080"),
		DatabasePath:   env("RP_DB_PATH", "data/crater.sqlite"),
		WorkDir:        env("CRATER_WORK_DIR", "work"),
		TOMLConfigPath: env("CRATER_CONFIG_PATH", "crater.toml"),
	}
	return cfg, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// DemoCrates is `demo-crates.*`: the fixed set crater-style demo runs
// exercise, mirroring original_source/src/config.rs's DemoCrates.
type DemoCrates struct {
	Crates      []string `toml:"crates"`
	GitHubRepos []string `toml:"github-repos"`
	LocalCrates []string `toml:"local-crates"`
}

// Sandbox is `sandbox.*`: resource limits the Runner Pool's sandboxed
// BuildStep applies per package.
type Sandbox struct {
	MemoryLimitRaw   string `toml:"memory-limit"`
	BuildLogMaxSize  string `toml:"build-log-max-size"`
	BuildLogMaxLines int    `toml:"build-log-max-lines"`
}

// MemoryLimit parses MemoryLimitRaw via util.Size, defaulting to 0
// (unlimited) if unset.
func (s Sandbox) MemoryLimit() (util.Size, error) {
	if strings.TrimSpace(s.MemoryLimitRaw) == "" {
		return util.Size(0), nil
	}
	return util.ParseSize(s.MemoryLimitRaw)
}

// BuildLogMaxSizeBytes parses BuildLogMaxSize via util.Size, defaulting
// to 0 (unlimited) if unset.
func (s Sandbox) BuildLogMaxSizeBytes() (util.Size, error) {
	if strings.TrimSpace(s.BuildLogMaxSize) == "" {
		return util.Size(0), nil
	}
	return util.ParseSize(s.BuildLogMaxSize)
}

// ACL is `server.acl.*`: which bearer-token names may mint new tokens or
// otherwise administer the server, independent of per-token permissions.
type ACL struct {
	AllowedUsers []string `toml:"allowed-users"`
}

// Callback is `server.callback.*`: the outward HTTP callback's retry
// policy (spec.md §6's callback contract).
type Callback struct {
	TimeoutSecs int `toml:"timeout-secs"`
	RetryCount  int `toml:"retry-count"`
}

// Server is `server.*`.
type Server struct {
	ACL      ACL      `toml:"acl"`
	Callback Callback `toml:"callback"`
}

// Platform is one `platforms.<tag>.*` block. The GitHubApp* fields are
// only meaningful for `platforms.github`: when AppID is non-zero the
// daemon attaches an installation-authenticated client able to post
// tracking comments, beyond the webhook-signature-only narrow contract.
type Platform struct {
	APIBaseURL            string `toml:"api-base-url"`
	Token                 string `toml:"token"`
	WebhookSecret         string `toml:"webhook-secret"`
	GitHubAppID           int64  `toml:"github-app-id"`
	GitHubInstallationID  int64  `toml:"github-installation-id"`
	GitHubPrivateKeyPEM   string `toml:"github-private-key-pem"`
}

// File is the full TOML document shape spec.md §6 names.
type File struct {
	DemoCrates DemoCrates          `toml:"demo-crates"`
	Sandbox    Sandbox             `toml:"sandbox"`
	Server     Server              `toml:"server"`
	Platforms  map[string]Platform `toml:"platforms"`
}

// LoadFile parses the TOML config file at path.
func LoadFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := toml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// Watcher holds the current TOML File behind a mutex and keeps it fresh
// via fsnotify, so Current returns the latest successfully parsed file.
// Values a caller copied out of an earlier File (such as the daemon's
// platform adapters) are not refreshed. Grounded on the hot-reload pattern kindling-sh-kindling's
// CLI config loader uses for its own fsnotify.Watcher wiring.
type Watcher struct {
	path string

	mu  sync.RWMutex
	cur File

	watcher *fsnotify.Watcher
	onError func(error)
}

// NewWatcher loads path once, starts watching it for writes, and calls
// onError (if non-nil) for any reload failure — the prior configuration
// is kept on a failed reload rather than zeroed out.
func NewWatcher(path string, onError func(error)) (*Watcher, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{path: path, cur: f, watcher: fw, onError: onError}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f, err := LoadFile(w.path)
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			w.mu.Lock()
			w.cur = f
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Current returns the most recently loaded File.
func (w *Watcher) Current() File {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Platform looks up a `platforms.<tag>` block. ok is false if the tag
// has no configured block.
func (f File) Platform(tag string) (Platform, bool) {
	p, ok := f.Platforms[tag]
	return p, ok
}

// IsAllowedUser reports whether name appears in server.acl.allowed-users.
func (f File) IsAllowedUser(name string) bool {
	for _, u := range f.Server.ACL.AllowedUsers {
		if u == name {
			return true
		}
	}
	return false
}

// CallbackTimeoutSecs returns server.callback.timeout-secs, defaulting to
// 30 (spec.md §6's τ default) when unset or non-positive.
func (f File) CallbackTimeoutSecs() int {
	if f.Server.Callback.TimeoutSecs > 0 {
		return f.Server.Callback.TimeoutSecs
	}
	return 30
}

// CallbackRetryCount returns server.callback.retry-count, defaulting to 3
// (spec.md §6's R default) when unset or non-positive.
func (f File) CallbackRetryCount() int {
	if f.Server.Callback.RetryCount > 0 {
		return f.Server.Callback.RetryCount
	}
	return 3
}
