package pkgselect

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSelectionRoundTrip(t *testing.T) {
	cases := []Selection{
		{Kind: SelectionFull},
		{Kind: SelectionDemo},
		{Kind: SelectionDummy},
		{Kind: SelectionTopN, N: 100},
		{Kind: SelectionRandomN, N: 50},
		{Kind: SelectionLocal, ManifestPath: "/tmp/pkgs.yaml"},
	}
	for _, c := range cases {
		back, err := ParseSelection(c.String())
		if err != nil {
			t.Fatalf("parse %q: %v", c.String(), err)
		}
		if back != c {
			t.Fatalf("round trip mismatch for %q: got %+v want %+v", c.String(), back, c)
		}
	}
}

func TestResolveDemoAndDummy(t *testing.T) {
	r := NewResolver()
	demo, err := r.Resolve(Selection{Kind: SelectionDemo})
	if err != nil {
		t.Fatal(err)
	}
	if len(demo) != 3 {
		t.Fatalf("expected 3 demo packages, got %d", len(demo))
	}
	dummy, err := r.Resolve(Selection{Kind: SelectionDummy})
	if err != nil {
		t.Fatal(err)
	}
	if len(dummy) != 1 {
		t.Fatalf("expected 1 dummy package, got %d", len(dummy))
	}
}

func TestResolveFullRequiresUniverse(t *testing.T) {
	r := NewResolver()
	if _, err := r.Resolve(Selection{Kind: SelectionFull}); err == nil {
		t.Fatal("expected error when full universe is unconfigured")
	}
}

func TestResolveTopNAndRandomN(t *testing.T) {
	r := NewResolver()
	r.FullUniverse = []Package{Registry("a", "1"), Registry("b", "1"), Registry("c", "1")}
	top, err := r.Resolve(Selection{Kind: SelectionTopN, N: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0] != r.FullUniverse[0] {
		t.Fatalf("unexpected top-N result: %+v", top)
	}
	rnd, err := r.Resolve(Selection{Kind: SelectionRandomN, N: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(rnd) != 2 {
		t.Fatalf("expected 2 random packages, got %d", len(rnd))
	}
}

func TestResolveLocalManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkgs.yaml")
	content := "packages:\n  - reg:serde-1.0.0\n  - gh:rust-lang/rust\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewResolver()
	pkgs, err := r.Resolve(Selection{Kind: SelectionLocal, ManifestPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 2 || pkgs[0].ID() != "reg:serde-1.0.0" {
		t.Fatalf("unexpected manifest resolution: %+v", pkgs)
	}
}

func TestResolveExplicit(t *testing.T) {
	r := NewResolver()
	pkgs, err := r.Resolve(Selection{Kind: SelectionExplicit, Explicit: []string{"reg:serde-1.0.0"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected 1 package, got %d", len(pkgs))
	}
}
