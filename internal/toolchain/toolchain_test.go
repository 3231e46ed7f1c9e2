package toolchain

import "testing"

func TestSourceRoundTrip(t *testing.T) {
	cases := []string{"stable", "beta", "nightly", "master", "master#abc123", "try#def456", "ci#aaa", "ci-alt#bbb"}
	for _, c := range cases {
		src, err := ParseSource(c)
		if err != nil {
			t.Fatalf("parse %q: %v", c, err)
		}
		if got := src.String(); got != c {
			t.Fatalf("round trip mismatch for %q: got %q", c, got)
		}
	}
}

func TestParseSourceRequiresTrySha(t *testing.T) {
	if _, err := ParseSource("try#"); err == nil {
		t.Fatal("expected error for try without sha")
	}
}

func TestToolchainStringWithTarget(t *testing.T) {
	tc := Toolchain{Source: Source{Kind: SourceDist, Name: "stable"}, Target: "x86_64-unknown-linux-gnu"}
	if tc.String() != "stable+x86_64-unknown-linux-gnu" {
		t.Fatalf("unexpected string form: %q", tc.String())
	}
	back, err := Parse(tc.String())
	if err != nil {
		t.Fatal(err)
	}
	if back.Source != tc.Source || back.Target != tc.Target {
		t.Fatalf("round trip mismatch: %+v != %+v", back, tc)
	}
}

func TestEqualStructural(t *testing.T) {
	a := Toolchain{Source: Source{Kind: SourceDist, Name: "stable"}, Patches: []Patch{{Name: "foo", Repo: "https://example.com/foo", Branch: "main"}}}
	b := Toolchain{Source: Source{Kind: SourceDist, Name: "stable"}, Patches: []Patch{{Name: "foo", Repo: "https://example.com/foo", Branch: "main"}}}
	if !a.Equal(b) {
		t.Fatal("expected structural equality")
	}
	b.Patches[0].Branch = "other"
	if a.Equal(b) {
		t.Fatal("expected inequality after patch divergence")
	}
}
