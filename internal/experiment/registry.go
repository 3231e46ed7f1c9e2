package experiment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LuuuXXX/crater-ohos/internal/apperr"
	"github.com/LuuuXXX/crater-ohos/internal/pkgselect"
	"github.com/LuuuXXX/crater-ohos/internal/store"
	"github.com/LuuuXXX/crater-ohos/internal/toolchain"
)

// Registry is the Experiment Registry (C2): CRUD, transitions, and
// assignee operations over a *store.Store.
type Registry struct {
	db       *store.Store
	events   *kafka.Writer // optional; nil disables event publishing
	resolver *pkgselect.Resolver
}

// NewRegistry builds a Registry. events may be nil to disable the
// best-effort transition-event publish.
func NewRegistry(db *store.Store, events *kafka.Writer, resolver *pkgselect.Resolver) *Registry {
	return &Registry{db: db, events: events, resolver: resolver}
}

// Create inserts a new experiment in status=queued. Fails with
// apperr.AlreadyExists if name is taken.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (Experiment, error) {
	if req.Name == "" {
		return Experiment{}, apperr.BadRequestf("experiment: name required")
	}
	now := time.Now().UTC()

	tcStartJSON, err := json.Marshal(req.ToolchainA)
	if err != nil {
		return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: marshal toolchain A")
	}
	tcEndJSON, err := json.Marshal(req.ToolchainB)
	if err != nil {
		return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: marshal toolchain B")
	}

	var issueTag, issueURL, issueIdent sql.NullString
	if req.PlatformIssue != nil {
		issueTag = sql.NullString{String: req.PlatformIssue.PlatformTag, Valid: true}
		issueURL = sql.NullString{String: req.PlatformIssue.APIURL, Valid: true}
		issueIdent = sql.NullString{String: req.PlatformIssue.Identifier, Valid: true}
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: begin tx")
	}
	defer tx.Rollback()

	insert := r.db.Rebind(`
		INSERT INTO experiments (
			name, mode, cap_lints, toolchain_start, toolchain_end,
			package_selection, priority, created_at, platform_issue,
			platform_issue_url, platform_issue_identifier, status,
			ignore_blacklist, requirement
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = tx.ExecContext(ctx, insert,
		req.Name, string(req.Mode), string(req.CapLints), string(tcStartJSON), string(tcEndJSON),
		req.PackageSelection.String(), req.Priority, now.Format(time.RFC3339), issueTag,
		issueURL, issueIdent, string(StatusQueued), req.IgnoreBlacklist, req.Requirement,
	)
	if err != nil {
		return Experiment{}, apperr.Wrap(apperr.AlreadyExists, err, "experiment: %s already exists", req.Name)
	}

	if req.CallbackURL != "" {
		insertMeta := r.db.Rebind(`
			INSERT INTO experiment_metadata (experiment, callback_url, created_at)
			VALUES (?, ?, ?)
		`)
		if _, err := tx.ExecContext(ctx, insertMeta, req.Name, req.CallbackURL, now.Format(time.RFC3339)); err != nil {
			return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: insert metadata")
		}
	}

	if err := tx.Commit(); err != nil {
		return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: commit create")
	}

	r.publish(ctx, req.Name, "created")
	return r.Get(ctx, req.Name)
}

// Get returns the experiment by name, or apperr.NotFound.
func (r *Registry) Get(ctx context.Context, name string) (Experiment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, mode, cap_lints, toolchain_start, toolchain_end,
			package_selection, priority, created_at, started_at, completed_at,
			platform_issue, platform_issue_url, platform_issue_identifier,
			status, assigned_to, report_url, ignore_blacklist, requirement
		FROM experiments WHERE name = ?
	`, name)
	exp, err := scanExperiment(row)
	if err == sql.ErrNoRows {
		return Experiment{}, apperr.NotFoundf("experiment: %s not found", name)
	}
	if err != nil {
		return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: get %s", name)
	}

	callback, err := r.getCallbackURL(ctx, exp.Name)
	if err != nil {
		return Experiment{}, err
	}
	exp.CallbackURL = callback
	return exp, nil
}

// List returns every experiment, newest-first by created_at.
func (r *Registry) List(ctx context.Context) ([]Experiment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, mode, cap_lints, toolchain_start, toolchain_end,
			package_selection, priority, created_at, started_at, completed_at,
			platform_issue, platform_issue_url, platform_issue_identifier,
			status, assigned_to, report_url, ignore_blacklist, requirement
		FROM experiments ORDER BY created_at DESC, name ASC
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "experiment: list")
	}
	defer rows.Close()

	var out []Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "experiment: scan row")
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

// Edit applies the non-null subset of patch. Fails with
// apperr.InvalidState unless the experiment is queued.
func (r *Registry) Edit(ctx context.Context, name string, patch EditPatch) (Experiment, error) {
	exp, err := r.Get(ctx, name)
	if err != nil {
		return Experiment{}, err
	}
	if exp.Status != StatusQueued {
		return Experiment{}, apperr.InvalidStatef("experiment: %s is not queued, cannot edit", name)
	}
	if patch.IsEmpty() {
		return exp, nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: begin tx")
	}
	defer tx.Rollback()

	newName := name
	if patch.Name != nil && *patch.Name != "" {
		newName = *patch.Name
		// ON UPDATE CASCADE on every child FK carries metadata/results/etc.
		// along automatically; see store.go's migrationsSQLite/Postgres.
		rename := r.db.Rebind(`UPDATE experiments SET name = ? WHERE name = ?`)
		if _, err := tx.ExecContext(ctx, rename, newName, name); err != nil {
			return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: rename %s -> %s", name, newName)
		}
	}
	if patch.Mode != nil {
		q := r.db.Rebind(`UPDATE experiments SET mode = ? WHERE name = ?`)
		if _, err := tx.ExecContext(ctx, q, string(*patch.Mode), newName); err != nil {
			return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: set mode")
		}
	}
	if patch.PackageSelection != nil {
		q := r.db.Rebind(`UPDATE experiments SET package_selection = ? WHERE name = ?`)
		if _, err := tx.ExecContext(ctx, q, patch.PackageSelection.String(), newName); err != nil {
			return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: set package selection")
		}
	}
	if patch.PlatformIssue != nil {
		issue := *patch.PlatformIssue
		var tag, url, ident sql.NullString
		if issue != nil {
			tag = sql.NullString{String: issue.PlatformTag, Valid: true}
			url = sql.NullString{String: issue.APIURL, Valid: true}
			ident = sql.NullString{String: issue.Identifier, Valid: true}
		}
		q := r.db.Rebind(`
			UPDATE experiments
			SET platform_issue = ?, platform_issue_url = ?, platform_issue_identifier = ?
			WHERE name = ?
		`)
		if _, err := tx.ExecContext(ctx, q, tag, url, ident, newName); err != nil {
			return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: set platform issue")
		}
	}
	if patch.Priority != nil {
		q := r.db.Rebind(`UPDATE experiments SET priority = ? WHERE name = ?`)
		if _, err := tx.ExecContext(ctx, q, *patch.Priority, newName); err != nil {
			return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: set priority")
		}
	}
	if patch.CallbackURL != nil {
		if err := r.setCallbackURLTx(ctx, tx, name, newName, *patch.CallbackURL); err != nil {
			return Experiment{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: commit edit")
	}
	r.publish(ctx, newName, "edited")
	return r.Get(ctx, newName)
}

// Delete removes the experiment and cascades to every child row. Same
// state gate as Edit.
func (r *Registry) Delete(ctx context.Context, name string) error {
	exp, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	if exp.Status != StatusQueued {
		return apperr.InvalidStatef("experiment: %s is not queued, cannot delete", name)
	}
	q := r.db.Rebind(`DELETE FROM experiments WHERE name = ?`)
	if _, err := r.db.ExecContext(ctx, q, name); err != nil {
		return apperr.Wrap(apperr.Internal, err, "experiment: delete %s", name)
	}
	r.publish(ctx, name, "deleted")
	return nil
}

// Transition moves the experiment to `to`, recording started_at/
// completed_at as implied by the state machine. Fails with
// apperr.InvalidState on an illegal transition.
func (r *Registry) Transition(ctx context.Context, name string, to Status) (Experiment, error) {
	exp, err := r.Get(ctx, name)
	if err != nil {
		return Experiment{}, err
	}
	if !CanTransition(exp.Status, to) {
		return Experiment{}, apperr.InvalidStatef("experiment: illegal transition %s -> %s", exp.Status, to)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	q := r.db.Rebind(`UPDATE experiments SET status = ? WHERE name = ?`)
	args := []any{string(to), name}

	switch to {
	case StatusRunning:
		if exp.StartedAt == nil {
			q = r.db.Rebind(`UPDATE experiments SET status = ?, started_at = ? WHERE name = ?`)
			args = []any{string(to), now, name}
		}
	case StatusCompleted, StatusReportFailed:
		q = r.db.Rebind(`UPDATE experiments SET status = ?, completed_at = ? WHERE name = ?`)
		args = []any{string(to), now, name}
	}

	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return Experiment{}, apperr.Wrap(apperr.Internal, err, "experiment: transition %s -> %s", name, to)
	}
	r.publish(ctx, name, "transitioned:"+string(to))
	return r.Get(ctx, name)
}

// Run moves a queued experiment to running. It only records the status
// change; it does not start a Runner Pool (C7).
func (r *Registry) Run(ctx context.Context, name string) (Experiment, error) {
	return r.Transition(ctx, name, StatusRunning)
}

// Complete moves a running experiment straight to completed (used when
// no separate report-generation stage applies).
func (r *Registry) Complete(ctx context.Context, name string) (Experiment, error) {
	return r.Transition(ctx, name, StatusCompleted)
}

// Abort moves a running (or generating-report) experiment to
// report-failed. Per the Open Question resolution recorded in
// DESIGN.md, abort folds into report-failed rather than a distinct
// status.
func (r *Registry) Abort(ctx context.Context, name string) (Experiment, error) {
	return r.Transition(ctx, name, StatusReportFailed)
}

// NeedsReport moves a running experiment into needs-report, the handoff
// point before report generation begins.
func (r *Registry) NeedsReport(ctx context.Context, name string) (Experiment, error) {
	return r.Transition(ctx, name, StatusNeedsReport)
}

// GenerateReport moves a needs-report experiment into generating-report.
func (r *Registry) GenerateReport(ctx context.Context, name string) (Experiment, error) {
	return r.Transition(ctx, name, StatusGeneratingReport)
}

// Assign sets the experiment's assignee. Constrained to running
// experiments per spec.md §4.2.
func (r *Registry) Assign(ctx context.Context, name, workerID string) error {
	exp, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	if exp.Status != StatusRunning {
		return apperr.InvalidStatef("experiment: %s is not running, cannot assign", name)
	}
	q := r.db.Rebind(`UPDATE experiments SET assigned_to = ? WHERE name = ?`)
	if _, err := r.db.ExecContext(ctx, q, workerID, name); err != nil {
		return apperr.Wrap(apperr.Internal, err, "experiment: assign %s", name)
	}
	return nil
}

// ClearAssignee unsets the experiment's assignee.
func (r *Registry) ClearAssignee(ctx context.Context, name string) error {
	q := r.db.Rebind(`UPDATE experiments SET assigned_to = NULL WHERE name = ?`)
	if _, err := r.db.ExecContext(ctx, q, name); err != nil {
		return apperr.Wrap(apperr.Internal, err, "experiment: clear assignee %s", name)
	}
	return nil
}

func (r *Registry) getCallbackURL(ctx context.Context, name string) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT callback_url FROM experiment_metadata WHERE experiment = ?`, name)
	var callback sql.NullString
	if err := row.Scan(&callback); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", apperr.Wrap(apperr.Internal, err, "experiment: read metadata for %s", name)
	}
	return callback.String, nil
}

func (r *Registry) setCallbackURLTx(ctx context.Context, tx *sql.Tx, oldName, newName, url string) error {
	upsert := r.db.Rebind(`
		INSERT INTO experiment_metadata (experiment, callback_url, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(experiment) DO UPDATE SET callback_url = excluded.callback_url
	`)
	_, err := tx.ExecContext(ctx, upsert, newName, url, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "experiment: set callback url for %s", oldName)
	}
	return nil
}

// publish is a best-effort transition-event emit: failures are swallowed
// so that event-bus unavailability never blocks a registry mutation.
func (r *Registry) publish(ctx context.Context, name, event string) {
	if r.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{"experiment": name, "event": event})
	if err != nil {
		return
	}
	_ = r.events.WriteMessages(ctx, kafka.Message{
		Key:   []byte(name),
		Value: payload,
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row scanner) (Experiment, error) {
	var (
		name, mode, capLints, tcStartJSON, tcEndJSON, pkgSel, status string
		priority                                                    int
		createdAt                                                   string
		startedAt, completedAt                                      sql.NullString
		issueTag, issueURL, issueIdent                               sql.NullString
		assignedTo, reportURL                                       sql.NullString
		ignoreBlacklist                                              bool
		requirement                                                 sql.NullString
	)
	if err := row.Scan(
		&name, &mode, &capLints, &tcStartJSON, &tcEndJSON, &pkgSel, &priority, &createdAt,
		&startedAt, &completedAt, &issueTag, &issueURL, &issueIdent, &status, &assignedTo,
		&reportURL, &ignoreBlacklist, &requirement,
	); err != nil {
		return Experiment{}, err
	}

	var tcA, tcB toolchain.Toolchain
	if err := json.Unmarshal([]byte(tcStartJSON), &tcA); err != nil {
		return Experiment{}, fmt.Errorf("experiment: unmarshal toolchain_start: %w", err)
	}
	if err := json.Unmarshal([]byte(tcEndJSON), &tcB); err != nil {
		return Experiment{}, fmt.Errorf("experiment: unmarshal toolchain_end: %w", err)
	}
	sel, err := pkgselect.ParseSelection(pkgSel)
	if err != nil {
		return Experiment{}, fmt.Errorf("experiment: parse package_selection: %w", err)
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Experiment{}, fmt.Errorf("experiment: parse created_at: %w", err)
	}

	exp := Experiment{
		Name:             name,
		ToolchainA:       tcA,
		ToolchainB:       tcB,
		Mode:             Mode(mode),
		CapLints:         CapLints(capLints),
		Priority:         priority,
		PackageSelection: sel,
		Status:           Status(status),
		CreatedAt:        created,
		Assignee:         assignedTo.String,
		ReportURL:        reportURL.String,
		IgnoreBlacklist:  ignoreBlacklist,
		Requirement:      requirement.String,
	}
	if issueTag.Valid {
		exp.PlatformIssue = &PlatformIssue{
			PlatformTag: issueTag.String,
			APIURL:      issueURL.String,
			Identifier:  issueIdent.String,
		}
	}
	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339, startedAt.String)
		if err == nil {
			exp.StartedAt = &t
		}
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err == nil {
			exp.CompletedAt = &t
		}
	}
	return exp, nil
}
