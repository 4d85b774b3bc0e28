// Package runstore persists comparison runs in SQLite: one row of
// aggregates per run plus a detail row per compared track pair.
package runstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/scenario.report/internal/metrics"
)

// Run is a persisted comparison run. Aggregates cover every compared
// pair; FailIndex is the failing sample of the first failing pair, -1
// when the run passed or failed on a whole-curve measure.
type Run struct {
	ID            string  `json:"run_id"`
	CreatedAt     int64   `json:"created_at"`
	Name          string  `json:"name"`
	ReferencePath string  `json:"reference_path"`
	CandidatePath string  `json:"candidate_path"`
	ScenarioPath  string  `json:"scenario_path,omitempty"`
	Profile       string  `json:"profile,omitempty"`
	PosTolerance  float64 `json:"pos_tolerance"`
	AngTolerance  float64 `json:"ang_tolerance"`
	MaxPosDev     float64 `json:"max_pos_dev"`
	MeanPosDev    float64 `json:"mean_pos_dev"`
	MaxAngDev     float64 `json:"max_ang_dev"`
	Pass          bool    `json:"pass"`
	FailIndex     int     `json:"fail_index"`
	Notes         string  `json:"notes,omitempty"`
}

// PairDetail is the per-track-pair breakdown of a run.
type PairDetail struct {
	RunID       string  `json:"run_id"`
	ObjectID    uint64  `json:"object_id"`
	Samples     int     `json:"samples"`
	MaxPosDev   float64 `json:"max_pos_dev"`
	MeanPosDev  float64 `json:"mean_pos_dev"`
	MaxAngDev   float64 `json:"max_ang_dev"`
	Area        float64 `json:"area"`
	CurveLength float64 `json:"curve_length"`
	MAE         float64 `json:"mae"`
	Pass        bool    `json:"pass"`
	FailMetric  string  `json:"fail_metric,omitempty"`
	FailIndex   int     `json:"fail_index"`
	FailValue   float64 `json:"fail_value"`
}

// Summarize folds pair results into the run's aggregate fields and
// returns the matching detail rows. Caller-set fields of run (name,
// paths, profile, notes) are preserved; tolerances are taken from the
// results, which share them by construction. The run-level mean is
// weighted by sample count so long tracks count for more.
func Summarize(run *Run, results []*metrics.Result) []*PairDetail {
	run.Pass = true
	run.FailIndex = -1

	details := make([]*PairDetail, 0, len(results))
	var weighted float64
	var samples int
	for _, res := range results {
		details = append(details, &PairDetail{
			RunID:       run.ID,
			ObjectID:    res.ObjectID,
			Samples:     res.Samples,
			MaxPosDev:   res.MaxPosDev,
			MeanPosDev:  res.MeanPosDev,
			MaxAngDev:   res.MaxYawDev,
			Area:        res.Area,
			CurveLength: res.CurveLength,
			MAE:         res.MAE,
			Pass:        res.Pass,
			FailMetric:  res.FailMetric,
			FailIndex:   res.FailIndex,
			FailValue:   res.FailValue,
		})

		run.PosTolerance = res.Tolerances.Position
		run.AngTolerance = res.Tolerances.Angle
		if res.MaxPosDev > run.MaxPosDev {
			run.MaxPosDev = res.MaxPosDev
		}
		if res.MaxYawDev > run.MaxAngDev {
			run.MaxAngDev = res.MaxYawDev
		}
		weighted += res.MeanPosDev * float64(res.Samples)
		samples += res.Samples
		if !res.Pass && run.Pass {
			run.Pass = false
			run.FailIndex = res.FailIndex
		}
	}
	if samples > 0 {
		run.MeanPosDev = weighted / float64(samples)
	}
	return details
}

// Store wraps the runs database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the runs database at path, applies
// the connection pragmas and brings the schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for the admin surface.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

const runColumns = `run_id, created_at, name, reference_path, candidate_path,
	scenario_path, profile, pos_tolerance, ang_tolerance,
	max_pos_dev, mean_pos_dev, max_ang_dev, pass, fail_index, notes`

// Insert persists a run and its pair details in one transaction. An
// empty ID gets a fresh UUID; a zero CreatedAt gets the current time.
func (s *Store) Insert(run *Run, details []*PairDetail) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO runs (`+runColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.CreatedAt, run.Name, run.ReferencePath, run.CandidatePath,
			run.ScenarioPath, run.Profile, run.PosTolerance, run.AngTolerance,
			run.MaxPosDev, run.MeanPosDev, run.MaxAngDev, run.Pass, run.FailIndex, run.Notes,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, d := range details {
			d.RunID = run.ID
			_, err = tx.Exec(`
				INSERT INTO run_pairs (
					run_id, object_id, samples,
					max_pos_dev, mean_pos_dev, max_ang_dev,
					area, curve_length, mae,
					pass, fail_metric, fail_index, fail_value
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				d.RunID, int64(d.ObjectID), d.Samples,
				d.MaxPosDev, d.MeanPosDev, d.MaxAngDev,
				d.Area, d.CurveLength, d.MAE,
				d.Pass, d.FailMetric, d.FailIndex, d.FailValue,
			)
			if err != nil {
				return fmt.Errorf("insert pair %d: %w", d.ObjectID, err)
			}
		}
		return tx.Commit()
	})
}

// Get returns a run and its pair details by ID.
func (s *Store) Get(runID string) (*Run, []*PairDetail, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, nil, fmt.Errorf("scan run: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT run_id, object_id, samples,
		       max_pos_dev, mean_pos_dev, max_ang_dev,
		       area, curve_length, mae,
		       pass, fail_metric, fail_index, fail_value
		FROM run_pairs
		WHERE run_id = ?
		ORDER BY object_id`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("query pairs: %w", err)
	}
	defer rows.Close()

	var details []*PairDetail
	for rows.Next() {
		var d PairDetail
		var objectID int64
		err := rows.Scan(
			&d.RunID, &objectID, &d.Samples,
			&d.MaxPosDev, &d.MeanPosDev, &d.MaxAngDev,
			&d.Area, &d.CurveLength, &d.MAE,
			&d.Pass, &d.FailMetric, &d.FailIndex, &d.FailValue,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("scan pair row: %w", err)
		}
		d.ObjectID = uint64(objectID)
		details = append(details, &d)
	}
	return run, details, rows.Err()
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]*Run, error) {
	return s.list(`SELECT `+runColumns+` FROM runs
		ORDER BY created_at DESC LIMIT ?`, clampLimit(limit))
}

// ListByName returns the most recent runs with the given name, newest
// first. Suite cases log under their case name, so this is the history
// of one scenario over time.
func (s *Store) ListByName(name string, limit int) ([]*Run, error) {
	return s.list(`SELECT `+runColumns+` FROM runs
		WHERE name = ? ORDER BY created_at DESC LIMIT ?`, name, clampLimit(limit))
}

func (s *Store) list(query string, args ...any) ([]*Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run and, through the schema's cascade, its pair
// details.
func (s *Store) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	err := row.Scan(
		&r.ID, &r.CreatedAt, &r.Name, &r.ReferencePath, &r.CandidatePath,
		&r.ScenarioPath, &r.Profile, &r.PosTolerance, &r.AngTolerance,
		&r.MaxPosDev, &r.MeanPosDev, &r.MaxAngDev, &r.Pass, &r.FailIndex, &r.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

const busyRetries = 5

// retryOnBusy retries a write that lost the race for the database
// lock, with exponential backoff. Non-busy errors fail immediately.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(10<<(attempt-1)) * time.Millisecond)
		}
		err = fn()
		if !isSQLiteBusy(err) {
			return err
		}
	}
	return fmt.Errorf("database still busy after %d attempts: %w", busyRetries, err)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
