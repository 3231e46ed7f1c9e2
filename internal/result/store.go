package result

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/LuuuXXX/crater-ohos/internal/store"
)

// Record is a single (package, toolchain) result row: the decoded Outcome
// plus its optional build log, as returned to callers. Grounded on
// original_source/src/results/mod.rs's TestResult/EncodedLog pairing.
type Record struct {
	Experiment string
	Package    string // Package.ID()
	Toolchain  string // Toolchain.String()
	Outcome    Outcome
	Log        *EncodedLog
}

// Store wraps a *store.Store with the Result Store (C4) operations named
// in spec.md §4.4: put, get, count/progress, delete_all.
type Store struct {
	db *store.Store
}

func NewStore(db *store.Store) *Store { return &Store{db: db} }

// Put upserts a result row for (experiment, pkg, toolchain). Re-running a
// package against a toolchain (e.g. after a retry) replaces its prior
// outcome and log, matching original_source's overwrite-on-rerun semantics
// rather than accumulating history rows.
func (s *Store) Put(ctx context.Context, experiment, pkg, toolchain string, outcome Outcome, log *EncodedLog) error {
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("result: marshal outcome: %w", err)
	}
	var logBlob []byte
	var logEncoding sql.NullString
	if log != nil {
		logBlob = log.Bytes
		logEncoding = sql.NullString{String: string(log.Encoding), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (experiment, crate, toolchain, result_json, log_blob, log_encoding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(experiment, crate, toolchain) DO UPDATE SET
			result_json=excluded.result_json,
			log_blob=excluded.log_blob,
			log_encoding=excluded.log_encoding
	`, experiment, pkg, toolchain, string(outcomeJSON), logBlob, logEncoding)
	if err != nil {
		return fmt.Errorf("result: put %s/%s/%s: %w", experiment, pkg, toolchain, err)
	}
	return nil
}

// Get returns the recorded result for (experiment, pkg, toolchain). If no
// such row exists it returns sql.ErrNoRows unwrapped; mapping that to
// apperr.NotFound is left to callers.
func (s *Store) Get(ctx context.Context, experiment, pkg, toolchain string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT result_json, log_blob, log_encoding
		FROM results
		WHERE experiment = ? AND crate = ? AND toolchain = ?
	`, experiment, pkg, toolchain)

	var outcomeJSON string
	var logBlob []byte
	var logEncoding sql.NullString
	if err := row.Scan(&outcomeJSON, &logBlob, &logEncoding); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("result: get %s/%s/%s: %w", experiment, pkg, toolchain, err)
	}

	var outcome Outcome
	if err := json.Unmarshal([]byte(outcomeJSON), &outcome); err != nil {
		return Record{}, fmt.Errorf("result: unmarshal outcome: %w", err)
	}

	rec := Record{Experiment: experiment, Package: pkg, Toolchain: toolchain, Outcome: outcome}
	if logEncoding.Valid {
		rec.Log = &EncodedLog{Encoding: LogEncoding(logEncoding.String), Bytes: logBlob}
	}
	return rec, nil
}

// ListForPackage returns every toolchain result recorded for pkg within
// experiment, one Record per toolchain.
func (s *Store) ListForPackage(ctx context.Context, experiment, pkg string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT toolchain, result_json, log_blob, log_encoding
		FROM results
		WHERE experiment = ? AND crate = ?
	`, experiment, pkg)
	if err != nil {
		return nil, fmt.Errorf("result: list for package %s/%s: %w", experiment, pkg, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var toolchain, outcomeJSON string
		var logBlob []byte
		var logEncoding sql.NullString
		if err := rows.Scan(&toolchain, &outcomeJSON, &logBlob, &logEncoding); err != nil {
			return nil, err
		}
		var outcome Outcome
		if err := json.Unmarshal([]byte(outcomeJSON), &outcome); err != nil {
			return nil, fmt.Errorf("result: unmarshal outcome: %w", err)
		}
		rec := Record{Experiment: experiment, Package: pkg, Toolchain: toolchain, Outcome: outcome}
		if logEncoding.Valid {
			rec.Log = &EncodedLog{Encoding: LogEncoding(logEncoding.String), Bytes: logBlob}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of distinct packages with at least one
// recorded result for experiment — the "completed" half of the Progress
// component's (completed, total) pair.
func (s *Store) Count(ctx context.Context, experiment string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT crate) FROM results WHERE experiment = ?
	`, experiment)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("result: count %s: %w", experiment, err)
	}
	return n, nil
}

// DeleteAll removes every result row for experiment. Foreign keys declare
// ON DELETE CASCADE from results to experiments, so deleting the
// experiment row alone would suffice; DeleteAll clears the results while
// keeping the experiment row.
func (s *Store) DeleteAll(ctx context.Context, experiment string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE experiment = ?`, experiment)
	if err != nil {
		return fmt.Errorf("result: delete all %s: %w", experiment, err)
	}
	return nil
}
