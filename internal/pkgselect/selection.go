package pkgselect

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SelectionKind tags the package-selection variant spec.md §3 names:
// full | demo | top-N | local | dummy | random-N | explicit set.
type SelectionKind string

const (
	SelectionFull     SelectionKind = "full"
	SelectionDemo     SelectionKind = "demo"
	SelectionTopN     SelectionKind = "top-n"
	SelectionLocal    SelectionKind = "local"
	SelectionDummy    SelectionKind = "dummy"
	SelectionRandomN  SelectionKind = "random-n"
	SelectionExplicit SelectionKind = "explicit"
)

// Selection is the unresolved package-selection attached to an Experiment.
type Selection struct {
	Kind         SelectionKind
	N            int      // top-N, random-N
	ManifestPath string   // local: path to a YAML manifest of package ids
	Explicit     []string // explicit: package ids, parsed lazily on Resolve
}

// String renders a compact form suitable for storing in the experiment
// row (e.g. "top-100", "random-50", "local:/path/to/manifest.yaml").
func (s Selection) String() string {
	switch s.Kind {
	case SelectionTopN:
		return fmt.Sprintf("top-%d", s.N)
	case SelectionRandomN:
		return fmt.Sprintf("random-%d", s.N)
	case SelectionLocal:
		return "local:" + s.ManifestPath
	case SelectionExplicit:
		return "explicit:" + strings.Join(s.Explicit, ",")
	default:
		return string(s.Kind)
	}
}

// ParseSelection is the inverse of String.
func ParseSelection(s string) (Selection, error) {
	switch {
	case s == string(SelectionFull), s == string(SelectionDemo), s == string(SelectionDummy):
		return Selection{Kind: SelectionKind(s)}, nil
	case strings.HasPrefix(s, "top-"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "top-"))
		if err != nil || n <= 0 {
			return Selection{}, fmt.Errorf("pkgselect: invalid top-N selection %q", s)
		}
		return Selection{Kind: SelectionTopN, N: n}, nil
	case strings.HasPrefix(s, "random-"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "random-"))
		if err != nil || n <= 0 {
			return Selection{}, fmt.Errorf("pkgselect: invalid random-N selection %q", s)
		}
		return Selection{Kind: SelectionRandomN, N: n}, nil
	case strings.HasPrefix(s, "local:"):
		return Selection{Kind: SelectionLocal, ManifestPath: strings.TrimPrefix(s, "local:")}, nil
	case strings.HasPrefix(s, "explicit:"):
		ids := strings.Split(strings.TrimPrefix(s, "explicit:"), ",")
		return Selection{Kind: SelectionExplicit, Explicit: ids}, nil
	default:
		return Selection{}, fmt.Errorf("pkgselect: unrecognized selection %q", s)
	}
}

// manifest is the on-disk shape of a "local" selection's YAML file,
// mirroring the teacher's gopkg.in/yaml.v3 usage
// (internal/releaseparty/config.go) applied to a package-id list instead
// of a repo config.
type manifest struct {
	Packages []string `yaml:"packages"`
}

// Resolver resolves a Selection to a concrete ordered slice of Package.
// DemoPackages/DummyPackages/FullUniverse are the pools "demo", "dummy",
// "full", "top-N" and "random-N" draw from. NewResolver fills the demo and
// dummy pools with the same literal lists original_source/src/crates/lists.rs
// hard-codes for its own placeholders and leaves FullUniverse empty;
// nothing reads them from internal/config.
type Resolver struct {
	DemoPackages []Package
	DummyPackages []Package
	FullUniverse  []Package
	RandSource    *rand.Rand // nil ⇒ a source seeded with 1, so the draw is deterministic
}

// NewResolver returns a Resolver seeded with the original's demo/dummy
// package lists.
func NewResolver() *Resolver {
	return &Resolver{
		DemoPackages: []Package{
			Registry("serde", "1.0.0"),
			Registry("tokio", "1.0.0"),
			Registry("regex", "1.0.0"),
		},
		DummyPackages: []Package{
			Registry("dummy", "0.1.0"),
		},
	}
}

// Resolve returns the ordered slice of Package for a Selection.
func (r *Resolver) Resolve(sel Selection) ([]Package, error) {
	switch sel.Kind {
	case SelectionDemo:
		return r.DemoPackages, nil
	case SelectionDummy:
		return r.DummyPackages, nil
	case SelectionFull:
		if len(r.FullUniverse) == 0 {
			return nil, fmt.Errorf("pkgselect: full selection requires a configured package universe")
		}
		return r.FullUniverse, nil
	case SelectionTopN:
		if len(r.FullUniverse) == 0 {
			return nil, fmt.Errorf("pkgselect: top-N selection requires a configured package universe")
		}
		n := sel.N
		if n > len(r.FullUniverse) {
			n = len(r.FullUniverse)
		}
		return append([]Package(nil), r.FullUniverse[:n]...), nil
	case SelectionRandomN:
		if len(r.FullUniverse) == 0 {
			return nil, fmt.Errorf("pkgselect: random-N selection requires a configured package universe")
		}
		return r.randomN(sel.N), nil
	case SelectionLocal:
		return r.loadManifest(sel.ManifestPath)
	case SelectionExplicit:
		out := make([]Package, 0, len(sel.Explicit))
		for _, id := range sel.Explicit {
			p, err := Parse(id)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("pkgselect: unknown selection kind %q", sel.Kind)
	}
}

func (r *Resolver) randomN(n int) []Package {
	if n > len(r.FullUniverse) {
		n = len(r.FullUniverse)
	}
	src := r.RandSource
	if src == nil {
		src = rand.New(rand.NewSource(1))
	}
	shuffled := append([]Package(nil), r.FullUniverse...)
	src.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:n]
}

func (r *Resolver) loadManifest(path string) ([]Package, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pkgselect: reading local manifest %s: %w", path, err)
	}
	var m manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("pkgselect: parsing local manifest %s: %w", path, err)
	}
	out := make([]Package, 0, len(m.Packages))
	for _, id := range m.Packages {
		p, err := Parse(id)
		if err != nil {
			return nil, fmt.Errorf("pkgselect: local manifest %s: %w", path, err)
		}
		out = append(out, p)
	}
	return out, nil
}
