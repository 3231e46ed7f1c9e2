package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LuuuXXX/crater-ohos/internal/apperr"
	"github.com/LuuuXXX/crater-ohos/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(store.SQLite, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRegistry(db)
}

func TestMintProducesPrefixedToken(t *testing.T) {
	reg := newTestRegistry(t)
	tok, err := reg.Mint(context.Background(), "ci", []Permission{ReadExperiments}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(tok.Value, "crt_") {
		t.Fatalf("expected crt_ prefix, got %q", tok.Value)
	}
	// 16 bytes hex-encoded = 32 hex chars, plus the 4-char prefix.
	if len(tok.Value) != len("crt_")+32 {
		t.Fatalf("unexpected token length: %q", tok.Value)
	}
}

func TestValidateRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	minted, err := reg.Mint(ctx, "ci", []Permission{WriteExperiments}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reg.Validate(ctx, minted.Value)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Allows(WriteExperiments) {
		t.Fatal("expected token to allow write-experiments")
	}
	if got.Allows(ManageWorkers) {
		t.Fatal("expected token to not allow manage-workers")
	}
}

func TestAdminPassesEveryPermission(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	minted, err := reg.Mint(ctx, "root", []Permission{Admin}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reg.Validate(ctx, minted.Value)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []Permission{ReadExperiments, WriteExperiments, ManageWorkers} {
		if !got.Allows(p) {
			t.Fatalf("expected admin token to allow %s", p)
		}
	}
}

func TestValidateUnknownToken(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Validate(context.Background(), "crt_doesnotexist")
	if apperr.CodeOf(err) != apperr.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	minted, err := reg.Mint(ctx, "ci", []Permission{ReadExperiments}, &past)
	if err != nil {
		t.Fatal(err)
	}
	_, err = reg.Validate(ctx, minted.Value)
	if apperr.CodeOf(err) != apperr.Unauthorized {
		t.Fatalf("expected Unauthorized for expired token, got %v", err)
	}
}

func TestRevokedTokenValidatesToUnauthorized(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	minted, err := reg.Mint(ctx, "ci", []Permission{ReadExperiments}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Revoke(ctx, minted.Value); err != nil {
		t.Fatal(err)
	}
	_, err = reg.Validate(ctx, minted.Value)
	if apperr.CodeOf(err) != apperr.Unauthorized {
		t.Fatalf("expected Unauthorized after revoke, got %v", err)
	}
}

func TestRequirePermissionForbidden(t *testing.T) {
	tok := Token{Name: "ci", Permissions: []Permission{ReadExperiments}}
	if err := RequirePermission(tok, WriteExperiments); apperr.CodeOf(err) != apperr.Forbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}
