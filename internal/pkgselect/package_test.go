package pkgselect

import "testing"

func TestPackageRoundTrip(t *testing.T) {
	cases := []Package{
		Registry("serde", "1.0.0"),
		Registry("go-redis", "1.2.3"),
		GitHub("rust-lang", "rust"),
		GitCode("openharmony", "rust"),
		Local("dummy"),
		Path("vendor/local-crate"),
		Git("https://example.com/org/repo.git"),
	}
	for _, p := range cases {
		id := p.ID()
		back, err := Parse(id)
		if err != nil {
			t.Fatalf("parse %q: %v", id, err)
		}
		if back != p {
			t.Fatalf("round trip mismatch for %q: got %+v want %+v", id, back, p)
		}
	}
}

func TestPackageIDFormat(t *testing.T) {
	if got := Registry("serde", "1.0.0").ID(); got != "reg:serde-1.0.0" {
		t.Fatalf("unexpected id: %q", got)
	}
	if got := GitHub("rust-lang", "rust").ID(); got != "gh:rust-lang/rust" {
		t.Fatalf("unexpected id: %q", got)
	}
}

func TestParseRejectsUnknownPrefix(t *testing.T) {
	if _, err := Parse("ftp:example"); err == nil {
		t.Fatal("expected error for unknown prefix")
	}
}
