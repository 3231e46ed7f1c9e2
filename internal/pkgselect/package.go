// Package pkgselect models the Package value type and the
// package-selection variant that an Experiment carries, resolving the
// latter to a concrete ordered slice of Package for the Runner Pool's
// next_package() operation.
//
// Grounded on original_source/src/crates/mod.rs (the Crate tagged enum and
// its id() method) and original_source/src/crates/sources/*.rs
// (RegistryCrate/GitHubRepo/GitCodeRepo shapes).
package pkgselect

import (
	"fmt"
	"strings"
)

// Kind tags which Package variant a value holds.
type Kind string

const (
	KindRegistry Kind = "registry"
	KindGitHub   Kind = "github"
	KindGitCode  Kind = "gitcode"
	KindLocal    Kind = "local"
	KindPath     Kind = "path"
	KindGit      Kind = "git"
)

// Package is the tagged variant spec.md §3 describes:
// Registry{name,version} | GitHubRepo{org,name,sha?} | GitCodeRepo{org,name,sha?}
// | Local{name} | Path{path} | Git{url,sha?}.
type Package struct {
	Kind    Kind
	Name    string // Registry, Local
	Version string // Registry
	Org     string // GitHub, GitCode
	SHA     string // GitHub, GitCode, Git (not part of ID)
	Path    string // Path
	URL     string // Git
}

// ID is the stable string key used by the Result Store, e.g.
// "reg:serde-1.0.0", "gh:org/name", "gc:org/name", "local:name",
// "path:some/path", "git:https://example.com/repo".
func (p Package) ID() string {
	switch p.Kind {
	case KindRegistry:
		return fmt.Sprintf("reg:%s-%s", p.Name, p.Version)
	case KindGitHub:
		return fmt.Sprintf("gh:%s/%s", p.Org, p.Name)
	case KindGitCode:
		return fmt.Sprintf("gc:%s/%s", p.Org, p.Name)
	case KindLocal:
		return fmt.Sprintf("local:%s", p.Name)
	case KindPath:
		return fmt.Sprintf("path:%s", p.Path)
	case KindGit:
		return fmt.Sprintf("git:%s", p.URL)
	default:
		return ""
	}
}

func (p Package) String() string { return p.ID() }

// Parse inverts ID for all six variants.
func Parse(s string) (Package, error) {
	switch {
	case strings.HasPrefix(s, "reg:"):
		rest := strings.TrimPrefix(s, "reg:")
		name, version, ok := splitNameVersion(rest)
		if !ok {
			return Package{}, fmt.Errorf("pkgselect: malformed registry id %q", s)
		}
		return Package{Kind: KindRegistry, Name: name, Version: version}, nil
	case strings.HasPrefix(s, "gh:"):
		org, name, err := splitSlug(strings.TrimPrefix(s, "gh:"))
		if err != nil {
			return Package{}, fmt.Errorf("pkgselect: %w", err)
		}
		return Package{Kind: KindGitHub, Org: org, Name: name}, nil
	case strings.HasPrefix(s, "gc:"):
		org, name, err := splitSlug(strings.TrimPrefix(s, "gc:"))
		if err != nil {
			return Package{}, fmt.Errorf("pkgselect: %w", err)
		}
		return Package{Kind: KindGitCode, Org: org, Name: name}, nil
	case strings.HasPrefix(s, "local:"):
		return Package{Kind: KindLocal, Name: strings.TrimPrefix(s, "local:")}, nil
	case strings.HasPrefix(s, "path:"):
		return Package{Kind: KindPath, Path: strings.TrimPrefix(s, "path:")}, nil
	case strings.HasPrefix(s, "git:"):
		return Package{Kind: KindGit, URL: strings.TrimPrefix(s, "git:")}, nil
	default:
		return Package{}, fmt.Errorf("pkgselect: unrecognized package id %q", s)
	}
}

// splitNameVersion finds the last "-" followed by a digit, treating
// everything after it as the version. Registry names themselves may
// contain dashes (e.g. "go-redis"), so we can't just split on the first
// or last dash unconditionally.
func splitNameVersion(s string) (name, version string, ok bool) {
	for i := len(s) - 1; i > 0; i-- {
		if s[i-1] == '-' && s[i] >= '0' && s[i] <= '9' {
			return s[:i-1], s[i:], true
		}
	}
	return "", "", false
}

func splitSlug(s string) (org, name string, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected org/name, got %q", s)
	}
	return parts[0], parts[1], nil
}

func Registry(name, version string) Package { return Package{Kind: KindRegistry, Name: name, Version: version} }
func GitHub(org, name string) Package       { return Package{Kind: KindGitHub, Org: org, Name: name} }
func GitCode(org, name string) Package      { return Package{Kind: KindGitCode, Org: org, Name: name} }
func Local(name string) Package             { return Package{Kind: KindLocal, Name: name} }
func Path(path string) Package              { return Package{Kind: KindPath, Path: path} }
func Git(url string) Package                { return Package{Kind: KindGit, URL: url} }
