package tracking

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/siminhale/siminhale/pkg/migrate"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationProvider returns the embedded schema migrations of the SQLite
// store.
func MigrationProvider() migrate.MigrationProvider {
	return migrate.NewFSProvider(migrations, "migrations", "")
}

// SQLiteStore keeps runs in a local SQLite database.
type SQLiteStore struct {
	db           *sql.DB
	artifactRoot string
	logger       *zap.SugaredLogger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies pending migrations.
func NewSQLiteStore(path, artifactRoot string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator := migrate.NewMigrator(db, MigrationProvider(), logger)
	if err := migrator.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate tracking database: %w", err)
	}

	return &SQLiteStore{db: db, artifactRoot: artifactRoot, logger: logger}, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, experiment, name string) (*Run, error) {
	run := &Run{
		ID:         newRunID(),
		Experiment: experiment,
		Name:       name,
		Status:     StatusRunning,
		StartTime:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, experiment, name, status, start_time) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Experiment, run.Name, run.Status, run.StartTime)
	if err != nil {
		return nil, fmt.Errorf("error creating run: %w", err)
	}

	s.logger.Debugw("created run", "run_id", run.ID, "experiment", experiment, "name", name)
	return run, nil
}

func (s *SQLiteStore) exists(ctx context.Context, runID string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (s *SQLiteStore) LogParam(ctx context.Context, runID, key, value string) error {
	return s.LogParams(ctx, runID, map[string]string{key: value})
}

func (s *SQLiteStore) LogParams(ctx context.Context, runID string, params map[string]string) error {
	if err := s.exists(ctx, runID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range params {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO run_params (run_id, key, value) VALUES (?, ?, ?)`,
			runID, key, value)
		if err != nil {
			return fmt.Errorf("error logging param %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LogMetric(ctx context.Context, runID, key string, value float64) error {
	if err := s.exists(ctx, runID); err != nil {
		return err
	}

	var step int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM run_metrics WHERE run_id = ? AND key = ?`, runID, key).Scan(&step)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_metrics (run_id, key, value, step, logged_at) VALUES (?, ?, ?, ?, ?)`,
		runID, key, value, step, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error logging metric %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) SetTag(ctx context.Context, runID, key, value string) error {
	if err := s.exists(ctx, runID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_tags (run_id, key, value) VALUES (?, ?, ?)`,
		runID, key, value)
	if err != nil {
		return fmt.Errorf("error setting tag %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) LogArtifact(ctx context.Context, runID, localPath, artifactPath string) error {
	if err := s.exists(ctx, runID); err != nil {
		return err
	}

	a, err := copyArtifact(s.artifactRoot, runID, localPath, artifactPath)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_artifacts (run_id, artifact_path, stored_path, size_bytes, logged_at)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, a.Path, a.StoredPath, a.Size, a.Timestamp)
	if err != nil {
		return fmt.Errorf("error recording artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EndRun(ctx context.Context, runID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, end_time = ? WHERE id = ?`,
		status, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("error ending run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run Run
		end sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, experiment, name, status, start_time, end_time FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.Experiment, &run.Name, &run.Status, &run.StartTime, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying run: %w", err)
	}
	if end.Valid {
		run.EndTime = &end.Time
	}

	if run.Params, err = s.keyValues(ctx, "run_params", runID); err != nil {
		return nil, err
	}
	if run.Tags, err = s.keyValues(ctx, "run_tags", runID); err != nil {
		return nil, err
	}

	if run.Metrics, err = s.metrics(ctx, runID); err != nil {
		return nil, err
	}
	if run.Artifacts, err = s.artifacts(ctx, runID); err != nil {
		return nil, err
	}

	return &run, nil
}

func (s *SQLiteStore) metrics(ctx context.Context, runID string) ([]Metric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, step, logged_at FROM run_metrics WHERE run_id = ? ORDER BY key, step`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying metrics: %w", err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.Key, &m.Value, &m.Step, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) artifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact_path, stored_path, size_bytes, logged_at FROM run_artifacts WHERE run_id = ? ORDER BY stored_path`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Path, &a.StoredPath, &a.Size, &a.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// keyValues reads a run_params or run_tags table.
func (s *SQLiteStore) keyValues(ctx context.Context, table, runID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM `+table+` WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListRuns(ctx context.Context, experiment string) ([]Run, error) {
	query := `SELECT id, experiment, name, status, start_time, end_time FROM runs`
	var args []interface{}
	if experiment != "" {
		query += ` WHERE experiment = ?`
		args = append(args, experiment)
	}
	query += ` ORDER BY start_time DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run Run
			end sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.Experiment, &run.Name, &run.Status, &run.StartTime, &end); err != nil {
			return nil, err
		}
		if end.Valid {
			run.EndTime = &end.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
