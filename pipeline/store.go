package pipeline

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	hrrcore "github.com/lucasjlepore/hrr-monitor"
	"github.com/lucasjlepore/hrr-monitor/trend"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS baselines (
	metric     TEXT NOT NULL,
	stratum    TEXT NOT NULL DEFAULT '',
	baseline   REAL NOT NULL,
	sdd        REAL NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (metric, stratum)
);
CREATE TABLE IF NOT EXISTS alerts (
	id         TEXT PRIMARY KEY,
	metric     TEXT NOT NULL,
	stratum    TEXT NOT NULL DEFAULT '',
	ts         TEXT NOT NULL,
	value      REAL NOT NULL,
	level      TEXT NOT NULL,
	detector   TEXT NOT NULL,
	statistic  REAL NOT NULL,
	threshold  REAL NOT NULL,
	baseline   REAL NOT NULL,
	sdd        REAL NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS observations (
	metric         TEXT NOT NULL,
	stratum        TEXT NOT NULL DEFAULT '',
	session_id     TEXT NOT NULL,
	ts             TEXT NOT NULL,
	raw_value      REAL NOT NULL,
	weight         REAL NOT NULL,
	weighted_value REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_metric_ts ON observations(metric, stratum, ts);
`

// Store is the SQLite-backed history for baselines, emitted alerts, and
// weighted observations.
type Store struct {
	db *sql.DB
}

// BaselineRow is one stored baseline with its identity.
type BaselineRow struct {
	Metric   string         `json:"metric"`
	Stratum  string         `json:"stratum,omitempty"`
	Baseline trend.Baseline `json:"baseline"`
}

// OpenStore opens or creates the store at path and ensures the schema.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertBaseline writes or replaces the baseline for one metric/stratum.
func (s *Store) UpsertBaseline(metric, stratum string, base trend.Baseline) error {
	_, err := s.db.Exec(`
		INSERT INTO baselines (metric, stratum, baseline, sdd, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(metric, stratum) DO UPDATE SET
			baseline = excluded.baseline,
			sdd = excluded.sdd,
			updated_at = excluded.updated_at`,
		metric, stratum, base.Value, base.SDD, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert baseline %s/%s: %w", metric, stratum, err)
	}
	return nil
}

// GetBaseline looks up the baseline for one metric/stratum. ok is false when
// none is stored.
func (s *Store) GetBaseline(metric, stratum string) (trend.Baseline, bool, error) {
	var base trend.Baseline
	err := s.db.QueryRow(
		`SELECT baseline, sdd FROM baselines WHERE metric = ? AND stratum = ?`,
		metric, stratum).Scan(&base.Value, &base.SDD)
	if err == sql.ErrNoRows {
		return trend.Baseline{}, false, nil
	}
	if err != nil {
		return trend.Baseline{}, false, fmt.Errorf("get baseline %s/%s: %w", metric, stratum, err)
	}
	return base, true, nil
}

// ListBaselines returns every stored baseline.
func (s *Store) ListBaselines() ([]BaselineRow, error) {
	rows, err := s.db.Query(`SELECT metric, stratum, baseline, sdd FROM baselines ORDER BY metric, stratum`)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	var out []BaselineRow
	for rows.Next() {
		var r BaselineRow
		if err := rows.Scan(&r.Metric, &r.Stratum, &r.Baseline.Value, &r.Baseline.SDD); err != nil {
			return nil, fmt.Errorf("scan baseline row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertAlerts appends emitted alerts in one transaction.
func (s *Store) InsertAlerts(metric, stratum string, alerts []trend.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin alert insert: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range alerts {
		_, err := tx.Exec(`
			INSERT INTO alerts (id, metric, stratum, ts, value, level, detector, statistic, threshold, baseline, sdd, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, metric, stratum, a.Timestamp.UTC().Format(time.RFC3339),
			a.Value, a.Level, a.Detector, a.Statistic, a.Threshold, a.Baseline, a.SDD, now)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert alert %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert insert: %w", err)
	}
	return nil
}

// InsertObservations appends weighted observations in one transaction.
func (s *Store) InsertObservations(metric, stratum string, observations []hrrcore.WeightedObservation) error {
	if len(observations) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin observation insert: %w", err)
	}
	for _, o := range observations {
		_, err := tx.Exec(`
			INSERT INTO observations (metric, stratum, session_id, ts, raw_value, weight, weighted_value)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			metric, stratum, o.SessionID, o.Timestamp.UTC().Format(time.RFC3339),
			o.RawValue, o.Weight, o.WeightedValue)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observation insert: %w", err)
	}
	return nil
}
