package experiment

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/LuuuXXX/crater-ohos/internal/apperr"
	"github.com/LuuuXXX/crater-ohos/internal/pkgselect"
	"github.com/LuuuXXX/crater-ohos/internal/store"
	"github.com/LuuuXXX/crater-ohos/internal/toolchain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(store.SQLite, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRegistry(db, nil, pkgselect.NewResolver())
}

func testRequest(name string) CreateRequest {
	return CreateRequest{
		Name:             name,
		ToolchainA:       toolchain.Toolchain{Source: toolchain.Source{Kind: toolchain.SourceDist, Name: "stable"}},
		ToolchainB:       toolchain.Toolchain{Source: toolchain.Source{Kind: toolchain.SourceDist, Name: "beta"}},
		Mode:             ModeBuildAndTest,
		CapLints:         CapForbid,
		PackageSelection: pkgselect.Selection{Kind: pkgselect.SelectionDemo},
	}
}

func TestCreateAndGet(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	exp, err := reg.Create(ctx, testRequest("exp1"))
	if err != nil {
		t.Fatal(err)
	}
	if exp.Status != StatusQueued {
		t.Fatalf("expected queued status, got %s", exp.Status)
	}
	if exp.StartedAt != nil || exp.CompletedAt != nil {
		t.Fatal("new experiment should have no started/completed timestamps")
	}

	got, err := reg.Get(ctx, "exp1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.ToolchainA.Equal(exp.ToolchainA) {
		t.Fatalf("toolchain mismatch after round trip: %+v vs %+v", got.ToolchainA, exp.ToolchainA)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Create(ctx, testRequest("exp1")); err != nil {
		t.Fatal(err)
	}
	_, err := reg.Create(ctx, testRequest("exp1"))
	if apperr.CodeOf(err) != apperr.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestGetMissingFails(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Get(context.Background(), "nope")
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestEditRequiresQueued(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Create(ctx, testRequest("exp1")); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Transition(ctx, "exp1", StatusRunning); err != nil {
		t.Fatal(err)
	}
	priority := 5
	_, err := reg.Edit(ctx, "exp1", EditPatch{Priority: &priority})
	if apperr.CodeOf(err) != apperr.InvalidState {
		t.Fatalf("expected InvalidState editing a running experiment, got %v", err)
	}
}

func TestEditEmptyPatchReturnsUnchanged(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	created, err := reg.Create(ctx, testRequest("exp1"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := reg.Edit(ctx, "exp1", EditPatch{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != created.Name || got.Priority != created.Priority {
		t.Fatalf("expected unchanged experiment, got %+v", got)
	}
}

func TestTransitionStateMachine(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Create(ctx, testRequest("exp1")); err != nil {
		t.Fatal(err)
	}

	// Illegal: queued -> completed directly.
	if _, err := reg.Transition(ctx, "exp1", StatusCompleted); apperr.CodeOf(err) != apperr.InvalidState {
		t.Fatalf("expected InvalidState, got %v", err)
	}

	running, err := reg.Transition(ctx, "exp1", StatusRunning)
	if err != nil {
		t.Fatal(err)
	}
	if running.StartedAt == nil {
		t.Fatal("expected started_at to be set on entry to running")
	}

	completed, err := reg.Transition(ctx, "exp1", StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if completed.CompletedAt == nil {
		t.Fatal("expected completed_at to be set on entry to completed")
	}
}

func TestDeleteRequiresQueued(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Create(ctx, testRequest("exp1")); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Transition(ctx, "exp1", StatusRunning); err != nil {
		t.Fatal(err)
	}
	if err := reg.Delete(ctx, "exp1"); apperr.CodeOf(err) != apperr.InvalidState {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestAssignRequiresRunning(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Create(ctx, testRequest("exp1")); err != nil {
		t.Fatal(err)
	}
	if err := reg.Assign(ctx, "exp1", "worker-1"); apperr.CodeOf(err) != apperr.InvalidState {
		t.Fatalf("expected InvalidState assigning to a queued experiment, got %v", err)
	}
	if _, err := reg.Transition(ctx, "exp1", StatusRunning); err != nil {
		t.Fatal(err)
	}
	if err := reg.Assign(ctx, "exp1", "worker-1"); err != nil {
		t.Fatal(err)
	}
	got, err := reg.Get(ctx, "exp1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Assignee != "worker-1" {
		t.Fatalf("expected assignee worker-1, got %q", got.Assignee)
	}
}

func TestListReturnsEveryExperiment(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Create(ctx, testRequest("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Create(ctx, testRequest("b")); err != nil {
		t.Fatal(err)
	}
	list, err := reg.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(list))
	}
}
