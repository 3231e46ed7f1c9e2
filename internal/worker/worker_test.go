package worker

import (
	"context"
	"path/filepath"
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

func TestRegisterAndGet(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	w, err := reg.Register(ctx, "runner-1", []string{"linux", "x86_64"})
	if err != nil {
		t.Fatal(err)
	}
	if w.Status != StatusIdle {
		t.Fatalf("expected idle status, got %s", w.Status)
	}
	got, err := reg.Get(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Capabilities) != 2 {
		t.Fatalf("expected 2 capabilities, got %+v", got.Capabilities)
	}
}

func TestHeartbeatMissingFails(t *testing.T) {
	reg := newTestRegistry(t)
	err := reg.Heartbeat(context.Background(), "agt_nope")
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestAssignRequiresIdle(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	w, err := reg.Register(ctx, "runner-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Assign(ctx, w.ID, "exp1"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Assign(ctx, w.ID, "exp2"); apperr.CodeOf(err) != apperr.InvalidState {
		t.Fatalf("expected InvalidState assigning a busy worker, got %v", err)
	}
}

func TestCompleteTaskResetsToIdle(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	w, err := reg.Register(ctx, "runner-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Assign(ctx, w.ID, "exp1"); err != nil {
		t.Fatal(err)
	}
	if err := reg.CompleteTask(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	got, err := reg.Get(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusIdle || got.CurrentExperiment != "" {
		t.Fatalf("expected idle with no current experiment, got %+v", got)
	}
}

func TestSweepRemovesStaleWorkers(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	w, err := reg.Register(ctx, "runner-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	// Force the heartbeat far into the past directly via SQL, since
	// Heartbeat() always stamps "now".
	q := reg.db.Rebind(`UPDATE agents SET last_heartbeat = ? WHERE id = ?`)
	past := time.Now().UTC().Add(-1 * time.Hour).Format(time.RFC3339)
	if _, err := reg.db.ExecContext(ctx, q, past, w.ID); err != nil {
		t.Fatal(err)
	}
	n, err := reg.Sweep(ctx, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept worker, got %d", n)
	}
	if _, err := reg.Get(ctx, w.ID); apperr.CodeOf(err) != apperr.NotFound {
		t.Fatalf("expected worker to be gone after sweep, got %v", err)
	}
}

func TestIsOffline(t *testing.T) {
	w := Worker{LastHeartbeat: time.Now().Add(-20 * time.Minute)}
	if !w.IsOffline(time.Now(), 10*time.Minute) {
		t.Fatal("expected worker to be logically offline")
	}
}
