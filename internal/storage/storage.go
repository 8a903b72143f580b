// Package storage keeps a SQLite history of sweep runs and their per-point
// summary rows, so results of earlier parameter studies can be listed and
// compared after the CSV artifacts have been overwritten.
//
// Old runs are rotated out once the configured maximum is exceeded.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/rulesweep/internal/models"
)

var (
	// ErrRunNotFound is returned when no run matches an id or id prefix.
	ErrRunNotFound = eris.New("run not found")
	// ErrAmbiguousRunID is returned when an id prefix matches more than one run.
	ErrAmbiguousRunID = eris.New("run id prefix is ambiguous")
)

// Storage records runs in a SQLite database
type Storage struct {
	db *sql.DB
}

// New opens the SQLite database at path and configures WAL mode.
func New(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "storage: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "storage: exec %s", pragma)
		}
	}
	return &Storage{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	dataset    TEXT NOT NULL DEFAULT '',
	parameters TEXT NOT NULL,
	points     INTEGER NOT NULL DEFAULT 0,
	degraded   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_points (
	run_id               TEXT NOT NULL REFERENCES runs(id),
	seq                  INTEGER NOT NULL,
	point                TEXT NOT NULL,
	min_support          REAL NOT NULL,
	min_confidence       REAL NOT NULL,
	min_lift             REAL NOT NULL,
	frequent_itemsets    INTEGER NOT NULL,
	rules_after_filter   INTEGER NOT NULL,
	num_clusters         INTEGER NOT NULL DEFAULT 0,
	largest_cluster_size INTEGER NOT NULL DEFAULT 0,
	degraded             INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode);
`

// Migrate creates the schema if it does not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "storage: migrate")
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// CreateRun inserts a running run and returns it with a fresh id.
func (s *Storage) CreateRun(ctx context.Context, mode, dataset string, params map[string]interface{}) (*models.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "storage: marshal parameters")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, status, dataset, parameters, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, mode, string(models.RunStatusRunning), dataset, string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "storage: insert run")
	}

	return &models.Run{
		ID:         id,
		Mode:       mode,
		Status:     models.RunStatusRunning,
		Dataset:    dataset,
		Parameters: params,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AddPoints stores the summary rows of a run in one transaction. Seq is
// assigned from the slice order.
func (s *Storage) AddPoints(ctx context.Context, runID string, points []models.RunPoint) error {
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return eris.Wrapf(err, "storage: invalid point %d", i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "storage: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_points
		(run_id, seq, point, min_support, min_confidence, min_lift, frequent_itemsets,
		 rules_after_filter, num_clusters, largest_cluster_size, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "storage: prepare insert point")
	}
	defer stmt.Close()

	for i, p := range points {
		_, err := stmt.ExecContext(ctx,
			runID, i, p.Point, p.MinSupport, p.MinConfidence, p.MinLift, p.FrequentItemsets,
			p.RulesAfterFilter, p.NumClusters, p.LargestClusterSize, boolToInt(p.Degraded),
		)
		if err != nil {
			return eris.Wrapf(err, "storage: insert point %s for run %s", p.Point, runID)
		}
	}
	return eris.Wrap(tx.Commit(), "storage: commit points")
}

// CompleteRun sets the final status and counts of a run.
func (s *Storage) CompleteRun(ctx context.Context, runID string, status models.RunStatus, points, degraded int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, points = ?, degraded = ?, updated_at = ? WHERE id = ?`,
		string(status), points, degraded, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "storage: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// ListRuns returns the most recent runs first. limit <= 0 means 100.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, dataset, parameters, points, degraded, created_at, updated_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list runs")
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var r models.Run
		var status, paramsJSON string
		if err := rows.Scan(&r.ID, &r.Mode, &status, &r.Dataset, &paramsJSON, &r.Points, &r.Degraded, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "storage: scan run")
		}
		r.Status = models.RunStatus(status)
		if err := json.Unmarshal([]byte(paramsJSON), &r.Parameters); err != nil {
			return nil, eris.Wrapf(err, "storage: unmarshal parameters of run %s", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "storage: list runs iterate")
}

// ResolveRunID expands a run id or id prefix, as printed by run listings, to
// the full id. The prefix must match exactly one run.
func (s *Storage) ResolveRunID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", eris.Wrap(ErrRunNotFound, "storage: empty run id")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE substr(id, 1, ?) = ? ORDER BY id LIMIT 2`,
		len(prefix), prefix,
	)
	if err != nil {
		return "", eris.Wrapf(err, "storage: resolve run %s", prefix)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", eris.Wrap(err, "storage: scan run id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", eris.Wrap(err, "storage: resolve run iterate")
	}

	switch len(ids) {
	case 0:
		return "", eris.Wrapf(ErrRunNotFound, "storage: %s", prefix)
	case 1:
		return ids[0], nil
	default:
		return "", eris.Wrapf(ErrAmbiguousRunID, "storage: %s matches %s and others", prefix, ids[0])
	}
}

// GetPoints returns the summary rows of a run in their original order.
func (s *Storage) GetPoints(ctx context.Context, runID string) ([]models.RunPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, point, min_support, min_confidence, min_lift, frequent_itemsets,
		        rules_after_filter, num_clusters, largest_cluster_size, degraded
		 FROM run_points WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: get points of run %s", runID)
	}
	defer rows.Close()

	var points []models.RunPoint
	for rows.Next() {
		var p models.RunPoint
		err := rows.Scan(&p.RunID, &p.Seq, &p.Point, &p.MinSupport, &p.MinConfidence, &p.MinLift,
			&p.FrequentItemsets, &p.RulesAfterFilter, &p.NumClusters, &p.LargestClusterSize, &p.Degraded)
		if err != nil {
			return nil, eris.Wrap(err, "storage: scan point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "storage: get points iterate")
}

// RotateRuns deletes the oldest runs and their points so that at most
// maxRuns remain. maxRuns <= 0 keeps everything.
func (s *Storage) RotateRuns(ctx context.Context, maxRuns int) (int, error) {
	if maxRuns <= 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "storage: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	const stale = `SELECT id FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?
	)`
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_points WHERE run_id IN (`+stale+`)`, maxRuns); err != nil {
		return 0, eris.Wrap(err, "storage: rotate points")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, maxRuns)
	if err != nil {
		return 0, eris.Wrap(err, "storage: rotate runs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "storage: rows affected")
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "storage: commit rotation")
	}
	return int(n), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
