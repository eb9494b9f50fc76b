package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/siminhale/siminhale/internal/log"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type runModel struct {
	ID         string `gorm:"primaryKey"`
	Experiment string `gorm:"index:idx_runs_experiment;not null"`
	Name       string `gorm:"not null"`
	Status     string `gorm:"not null"`
	StartTime  time.Time
	EndTime    *time.Time
}

func (runModel) TableName() string { return "runs" }

type paramModel struct {
	RunID string `gorm:"primaryKey"`
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (paramModel) TableName() string { return "run_params" }

type tagModel struct {
	RunID string `gorm:"primaryKey"`
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (tagModel) TableName() string { return "run_tags" }

type metricModel struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"index:idx_run_metrics_run"`
	Key      string `gorm:"index:idx_run_metrics_run"`
	Value    float64
	Step     int64
	LoggedAt time.Time
}

func (metricModel) TableName() string { return "run_metrics" }

type artifactModel struct {
	RunID        string `gorm:"primaryKey"`
	StoredPath   string `gorm:"primaryKey"`
	ArtifactPath string
	SizeBytes    int64
	LoggedAt     time.Time
}

func (artifactModel) TableName() string { return "run_artifacts" }

// PostgresStore keeps runs in PostgreSQL through gorm.
type PostgresStore struct {
	db           *gorm.DB
	artifactRoot string
	logger       *zap.SugaredLogger
}

// NewPostgresStore connects to dsn and creates or updates the schema.
func NewPostgresStore(dsn, artifactRoot string, sugar *zap.SugaredLogger) (*PostgresStore, error) {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}

	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	sugar.Info("connecting to PostgreSQL tracking store...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to tracking database: %w", err)
	}

	if err := db.AutoMigrate(&runModel{}, &paramModel{}, &tagModel{}, &metricModel{}, &artifactModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tracking database: %w", err)
	}

	return &PostgresStore{db: db, artifactRoot: artifactRoot, logger: sugar}, nil
}

func (s *PostgresStore) exists(ctx context.Context, runID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", runID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, experiment, name string) (*Run, error) {
	m := runModel{
		ID:         newRunID(),
		Experiment: experiment,
		Name:       name,
		Status:     StatusRunning,
		StartTime:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("error creating run: %w", err)
	}
	s.logger.Debugw("created run", "run_id", m.ID, "experiment", experiment, "name", name)
	return m.toRun(), nil
}

func (s *PostgresStore) LogParam(ctx context.Context, runID, key, value string) error {
	return s.LogParams(ctx, runID, map[string]string{key: value})
}

func (s *PostgresStore) LogParams(ctx context.Context, runID string, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}
	if err := s.exists(ctx, runID); err != nil {
		return err
	}

	rows := make([]paramModel, 0, len(params))
	for k, v := range params {
		rows = append(rows, paramModel{RunID: runID, Key: k, Value: v})
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("error logging params: %w", err)
	}
	return nil
}

func (s *PostgresStore) LogMetric(ctx context.Context, runID, key string, value float64) error {
	if err := s.exists(ctx, runID); err != nil {
		return err
	}

	var step int64
	if err := s.db.WithContext(ctx).Model(&metricModel{}).
		Where("run_id = ? AND key = ?", runID, key).Count(&step).Error; err != nil {
		return err
	}

	m := metricModel{RunID: runID, Key: key, Value: value, Step: step, LoggedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("error logging metric %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) SetTag(ctx context.Context, runID, key, value string) error {
	if err := s.exists(ctx, runID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&tagModel{RunID: runID, Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("error setting tag %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) LogArtifact(ctx context.Context, runID, localPath, artifactPath string) error {
	if err := s.exists(ctx, runID); err != nil {
		return err
	}

	a, err := copyArtifact(s.artifactRoot, runID, localPath, artifactPath)
	if err != nil {
		return err
	}

	m := artifactModel{
		RunID:        runID,
		StoredPath:   a.StoredPath,
		ArtifactPath: a.Path,
		SizeBytes:    a.Size,
		LoggedAt:     a.Timestamp,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		return fmt.Errorf("error recording artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) EndRun(ctx context.Context, runID, status string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", runID).
		Updates(map[string]interface{}{"status": status, "end_time": now})
	if res.Error != nil {
		return fmt.Errorf("error ending run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	db := s.db.WithContext(ctx)

	var m runModel
	if err := db.First(&m, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("error querying run: %w", err)
	}
	run := m.toRun()

	var params []paramModel
	if err := db.Where("run_id = ?", runID).Find(&params).Error; err != nil {
		return nil, err
	}
	run.Params = make(map[string]string, len(params))
	for _, p := range params {
		run.Params[p.Key] = p.Value
	}

	var tags []tagModel
	if err := db.Where("run_id = ?", runID).Find(&tags).Error; err != nil {
		return nil, err
	}
	run.Tags = make(map[string]string, len(tags))
	for _, t := range tags {
		run.Tags[t.Key] = t.Value
	}

	var metrics []metricModel
	if err := db.Where("run_id = ?", runID).Order("key, step").Find(&metrics).Error; err != nil {
		return nil, err
	}
	for _, mm := range metrics {
		run.Metrics = append(run.Metrics, Metric{Key: mm.Key, Value: mm.Value, Step: mm.Step, Timestamp: mm.LoggedAt})
	}

	var artifacts []artifactModel
	if err := db.Where("run_id = ?", runID).Order("stored_path").Find(&artifacts).Error; err != nil {
		return nil, err
	}
	for _, am := range artifacts {
		run.Artifacts = append(run.Artifacts, Artifact{Path: am.ArtifactPath, StoredPath: am.StoredPath, Size: am.SizeBytes, Timestamp: am.LoggedAt})
	}

	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, experiment string) ([]Run, error) {
	q := s.db.WithContext(ctx).Order("start_time DESC")
	if experiment != "" {
		q = q.Where("experiment = ?", experiment)
	}

	var models []runModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}

	runs := make([]Run, len(models))
	for i, m := range models {
		runs[i] = *m.toRun()
	}
	return runs, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m runModel) toRun() *Run {
	return &Run{
		ID:         m.ID,
		Experiment: m.Experiment,
		Name:       m.Name,
		Status:     m.Status,
		StartTime:  m.StartTime,
		EndTime:    m.EndTime,
	}
}
