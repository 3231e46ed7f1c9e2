// Package worker implements the Worker Registry (C3): register/heartbeat/
// assign/complete_task/sweep over a *store.Store, plus an optional
// Redis-backed distributed next-task queue for the worker-pull model.
//
// Grounded on original_source/src/server/agents.rs (AgentManager trait,
// JSON capabilities column, RFC3339 heartbeat parsing).
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LuuuXXX/crater-ohos/internal/apperr"
	"github.com/LuuuXXX/crater-ohos/internal/store"
)

// Status is the worker's last-recorded state; spec.md §3 notes this may
// lag the derived offline rule.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Worker is the full record spec.md §3 describes.
type Worker struct {
	ID                string
	DisplayName       string
	Capabilities      []string
	LastHeartbeat     time.Time
	CurrentExperiment string
	Status            Status
}

// IsOffline applies the derived rule: a worker is logically offline once
// now - LastHeartbeat exceeds maxIdle, regardless of its stored Status.
func (w Worker) IsOffline(now time.Time, maxIdle time.Duration) bool {
	return now.Sub(w.LastHeartbeat) > maxIdle
}

// Registry is the Worker Registry (C3).
type Registry struct {
	db *store.Store
}

func NewRegistry(db *store.Store) *Registry { return &Registry{db: db} }

// Register allocates a fresh opaque id and inserts status=idle.
func (r *Registry) Register(ctx context.Context, displayName string, capabilities []string) (Worker, error) {
	id := "agt_" + uuid.NewString()
	capsJSON, err := json.Marshal(capabilities)
	if err != nil {
		return Worker{}, apperr.Wrap(apperr.Internal, err, "worker: marshal capabilities")
	}
	now := time.Now().UTC()
	q := r.db.Rebind(`
		INSERT INTO agents (id, name, capabilities, last_heartbeat, status)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, q, id, displayName, string(capsJSON), now.Format(time.RFC3339), string(StatusIdle)); err != nil {
		return Worker{}, apperr.Wrap(apperr.Internal, err, "worker: register %s", displayName)
	}
	return Worker{ID: id, DisplayName: displayName, Capabilities: capabilities, LastHeartbeat: now, Status: StatusIdle}, nil
}

// Heartbeat updates last_heartbeat=now without changing status.
func (r *Registry) Heartbeat(ctx context.Context, id string) error {
	q := r.db.Rebind(`UPDATE agents SET last_heartbeat = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "worker: heartbeat %s", id)
	}
	return requireRowsAffected(res, id)
}

// Assign sets status=busy and stores current-experiment. Fails with
// apperr.InvalidState if the worker is not idle.
func (r *Registry) Assign(ctx context.Context, id, experimentName string) error {
	w, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if w.Status != StatusIdle {
		return apperr.InvalidStatef("worker: %s is not idle, cannot assign", id)
	}
	q := r.db.Rebind(`UPDATE agents SET status = ?, current_experiment = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, string(StatusBusy), experimentName, id); err != nil {
		return apperr.Wrap(apperr.Internal, err, "worker: assign %s", id)
	}
	return nil
}

// CompleteTask resets current-experiment and sets status=idle.
func (r *Registry) CompleteTask(ctx context.Context, id string) error {
	q := r.db.Rebind(`UPDATE agents SET status = ?, current_experiment = NULL WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, string(StatusIdle), id)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "worker: complete task %s", id)
	}
	return requireRowsAffected(res, id)
}

// Get returns the worker by id, or apperr.NotFound.
func (r *Registry) Get(ctx context.Context, id string) (Worker, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, capabilities, last_heartbeat, current_experiment, status
		FROM agents WHERE id = ?
	`, id)
	w, err := scanWorker(row)
	if err == sql.ErrNoRows {
		return Worker{}, apperr.NotFoundf("worker: %s not found", id)
	}
	if err != nil {
		return Worker{}, apperr.Wrap(apperr.Internal, err, "worker: get %s", id)
	}
	return w, nil
}

// List returns every registered worker.
func (r *Registry) List(ctx context.Context) ([]Worker, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, capabilities, last_heartbeat, current_experiment, status FROM agents
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "worker: list")
	}
	defer rows.Close()
	var out []Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "worker: scan row")
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Sweep deletes rows whose last_heartbeat is older than maxIdle and
// returns the count removed. Reassigning any in-flight work belonging to
// a swept worker back to the queue is the caller's responsibility (a
// coordination rule, not a store mutation, per spec.md §4.3).
func (r *Registry) Sweep(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxIdle).Format(time.RFC3339)
	q := r.db.Rebind(`DELETE FROM agents WHERE last_heartbeat < ?`)
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "worker: sweep")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "worker: sweep rows affected")
	}
	return int(n), nil
}

func requireRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "worker: rows affected for %s", id)
	}
	if n == 0 {
		return apperr.NotFoundf("worker: %s not found", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorker(row scanner) (Worker, error) {
	var (
		id, name, capsJSON, lastHeartbeat, status string
		currentExperiment                         sql.NullString
	)
	if err := row.Scan(&id, &name, &capsJSON, &lastHeartbeat, &currentExperiment, &status); err != nil {
		return Worker{}, err
	}
	var caps []string
	if err := json.Unmarshal([]byte(capsJSON), &caps); err != nil {
		return Worker{}, fmt.Errorf("worker: unmarshal capabilities: %w", err)
	}
	hb, err := time.Parse(time.RFC3339, lastHeartbeat)
	if err != nil {
		return Worker{}, fmt.Errorf("worker: parse last_heartbeat: %w", err)
	}
	return Worker{
		ID:                id,
		DisplayName:       name,
		Capabilities:       caps,
		LastHeartbeat:     hb,
		CurrentExperiment: currentExperiment.String,
		Status:            Status(status),
	}, nil
}
