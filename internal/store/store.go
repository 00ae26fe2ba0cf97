// Package store persists readings and evaluation results in SQLite.
// The readings table doubles as an offline data source for evaluation
// runs, keyed so replayed telemetry inserts are idempotent.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// ErrNotFound is returned when a lookup matches no stored rows.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database holding readings and reports.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			return err
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		point_uri TEXT NOT NULL,
		ts INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (point_uri, ts)
	) WITHOUT ROWID;
	CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		generated_at DATETIME NOT NULL,
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS building_reports (
		run_id TEXT NOT NULL,
		building_id TEXT NOT NULL,
		building_name TEXT NOT NULL,
		point_count INTEGER NOT NULL,
		points_used INTEGER NOT NULL,
		computed_at DATETIME NOT NULL,
		indices_json TEXT NOT NULL,
		PRIMARY KEY (run_id, building_id)
	);
	CREATE INDEX IF NOT EXISTS idx_building_reports_building ON building_reports(building_id);

	CREATE TABLE IF NOT EXISTS run_failures (
		run_id TEXT NOT NULL,
		building_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		PRIMARY KEY (run_id, building_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertReadings stores a batch of readings inside one transaction.
// Rows that collide on (point, timestamp) are ignored, so replays and
// overlapping fetches are safe. Returns the number of new rows.
func (s *Store) InsertReadings(ctx context.Context, readings []domain.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert readings: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO readings (point_uri, ts, value) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare insert readings: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, r := range readings {
		res, err := stmt.ExecContext(ctx, r.PointURI, r.Time.UTC().Unix(), r.Value)
		if err != nil {
			return 0, fmt.Errorf("insert reading %s@%s: %w", r.PointURI, r.Time.UTC().Format(time.RFC3339), err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert readings: %w", err)
	}
	return int(inserted), nil
}

// Series returns the stored readings for a point inside the window,
// sorted by time with both bounds included. Implements
// domain.SeriesFetcher so the store can serve as an offline source.
func (s *Store) Series(ctx context.Context, pointURI string, w domain.Window) (domain.Series, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, value FROM readings WHERE point_uri = ? AND ts >= ? AND ts <= ? ORDER BY ts",
		pointURI, w.Start.UTC().Unix(), w.End.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var series domain.Series
	for rows.Next() {
		var (
			ts    int64
			value float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		series = append(series, domain.Reading{
			PointURI: pointURI,
			Time:     time.Unix(ts, 0).UTC(),
			Value:    value,
		})
	}
	return series, rows.Err()
}

// Points lists the archived sensor points of a site, relying on the
// convention that point URIs extend the site URI with a fragment.
// Implements domain.PointResolver so archived data can be re-evaluated
// without testbed access.
func (s *Store) Points(ctx context.Context, siteURI string) ([]domain.Point, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT point_uri FROM readings WHERE point_uri LIKE ? || '#%' ORDER BY point_uri",
		siteURI)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var points []domain.Point
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		points = append(points, domain.Point{URI: uri, Site: siteURI})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("site %s: %w", siteURI, ErrNotFound)
	}
	return points, nil
}

// ReadingCount reports the number of stored readings for a point.
func (s *Store) ReadingCount(ctx context.Context, pointURI string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM readings WHERE point_uri = ?", pointURI).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// SaveRun persists a portfolio report with its building rows and
// failures in one transaction.
func (s *Store) SaveRun(ctx context.Context, report domain.PortfolioReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, generated_at, window_start, window_end) VALUES (?, ?, ?, ?)",
		report.RunID,
		report.GeneratedAt.UTC().Format(time.RFC3339),
		report.Window.Start.UTC().Format(time.RFC3339),
		report.Window.End.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}

	for _, br := range report.Buildings {
		indices, err := json.Marshal(br.Indices)
		if err != nil {
			return fmt.Errorf("marshal indices for %s: %w", br.BuildingID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO building_reports
			 (run_id, building_id, building_name, point_count, points_used, computed_at, indices_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, br.BuildingID, br.BuildingName,
			br.PointCount, br.PointsUsed,
			br.ComputedAt.UTC().Format(time.RFC3339), string(indices))
		if err != nil {
			return fmt.Errorf("insert building report %s: %w", br.BuildingID, err)
		}
	}

	for _, f := range report.Failures {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO run_failures (run_id, building_id, reason) VALUES (?, ?, ?)",
			report.RunID, f.BuildingID, f.Reason)
		if err != nil {
			return fmt.Errorf("insert failure %s: %w", f.BuildingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

// LatestRun loads the most recently generated portfolio report, or
// ErrNotFound when no run has been saved.
func (s *Store) LatestRun(ctx context.Context) (domain.PortfolioReport, error) {
	var (
		report domain.PortfolioReport
		gen    string
		start  string
		end    string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT run_id, generated_at, window_start, window_end FROM runs ORDER BY generated_at DESC LIMIT 1").
		Scan(&report.RunID, &gen, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PortfolioReport{}, ErrNotFound
	}
	if err != nil {
		return domain.PortfolioReport{}, fmt.Errorf("query latest run: %w", err)
	}

	if report.GeneratedAt, err = time.Parse(time.RFC3339, gen); err != nil {
		return domain.PortfolioReport{}, fmt.Errorf("parse generated_at: %w", err)
	}
	if report.Window.Start, err = time.Parse(time.RFC3339, start); err != nil {
		return domain.PortfolioReport{}, fmt.Errorf("parse window_start: %w", err)
	}
	if report.Window.End, err = time.Parse(time.RFC3339, end); err != nil {
		return domain.PortfolioReport{}, fmt.Errorf("parse window_end: %w", err)
	}

	if report.Buildings, err = s.buildingReports(ctx, report.RunID); err != nil {
		return domain.PortfolioReport{}, err
	}
	if report.Failures, err = s.runFailures(ctx, report.RunID); err != nil {
		return domain.PortfolioReport{}, err
	}
	return report, nil
}

func (s *Store) buildingReports(ctx context.Context, runID string) ([]domain.BuildingReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT building_id, building_name, point_count, points_used, computed_at, indices_json
		 FROM building_reports WHERE run_id = ? ORDER BY building_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query building reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.BuildingReport
	for rows.Next() {
		var (
			br       domain.BuildingReport
			computed string
			indices  string
		)
		if err := rows.Scan(&br.BuildingID, &br.BuildingName, &br.PointCount, &br.PointsUsed, &computed, &indices); err != nil {
			return nil, fmt.Errorf("scan building report: %w", err)
		}
		if br.ComputedAt, err = time.Parse(time.RFC3339, computed); err != nil {
			return nil, fmt.Errorf("parse computed_at: %w", err)
		}
		if err := json.Unmarshal([]byte(indices), &br.Indices); err != nil {
			return nil, fmt.Errorf("unmarshal indices for %s: %w", br.BuildingID, err)
		}
		br.RunID = runID
		reports = append(reports, br)
	}
	return reports, rows.Err()
}

func (s *Store) runFailures(ctx context.Context, runID string) ([]domain.BuildingFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT building_id, reason FROM run_failures WHERE run_id = ? ORDER BY building_id", runID)
	if err != nil {
		return nil, fmt.Errorf("query run failures: %w", err)
	}
	defer rows.Close()

	var failures []domain.BuildingFailure
	for rows.Next() {
		var f domain.BuildingFailure
		if err := rows.Scan(&f.BuildingID, &f.Reason); err != nil {
			return nil, fmt.Errorf("scan run failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// BuildingHistory returns the stored reports for one building, newest
// first, capped at limit.
func (s *Store) BuildingHistory(ctx context.Context, buildingID string, limit int) ([]domain.BuildingReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, building_name, point_count, points_used, computed_at, indices_json
		 FROM building_reports WHERE building_id = ? ORDER BY computed_at DESC LIMIT ?`,
		buildingID, limit)
	if err != nil {
		return nil, fmt.Errorf("query building history: %w", err)
	}
	defer rows.Close()

	var reports []domain.BuildingReport
	for rows.Next() {
		var (
			br       domain.BuildingReport
			computed string
			indices  string
		)
		if err := rows.Scan(&br.RunID, &br.BuildingName, &br.PointCount, &br.PointsUsed, &computed, &indices); err != nil {
			return nil, fmt.Errorf("scan building history: %w", err)
		}
		if br.ComputedAt, err = time.Parse(time.RFC3339, computed); err != nil {
			return nil, fmt.Errorf("parse computed_at: %w", err)
		}
		if err := json.Unmarshal([]byte(indices), &br.Indices); err != nil {
			return nil, fmt.Errorf("unmarshal indices for %s: %w", br.BuildingID, err)
		}
		br.BuildingID = buildingID
		reports = append(reports, br)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNotFound
	}
	return reports, nil
}
