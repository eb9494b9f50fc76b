// Package tracking records simulation runs: their parameters, metrics,
// tags and artifacts.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siminhale/siminhale/pkg/config"
	"go.uber.org/zap"
)

// Run states.
const (
	StatusRunning  = "RUNNING"
	StatusFinished = "FINISHED"
	StatusFailed   = "FAILED"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded simulation.
type Run struct {
	ID         string            `json:"id"`
	Experiment string            `json:"experiment"`
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    *time.Time        `json:"end_time,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Metrics    []Metric          `json:"metrics,omitempty"`
	Artifacts  []Artifact        `json:"artifacts,omitempty"`
}

// Metric is one logged numeric value.
type Metric struct {
	Key       string    `json:"key"`
	Value     float64   `json:"value"`
	Step      int64     `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// Artifact is a file copied into the artifact store.
type Artifact struct {
	Path       string    `json:"path"` // logical directory, e.g. "Output/Plots"
	StoredPath string    `json:"stored_path"`
	Size       int64     `json:"size"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store persists runs.
type Store interface {
	CreateRun(ctx context.Context, experiment, name string) (*Run, error)
	LogParam(ctx context.Context, runID, key, value string) error
	LogParams(ctx context.Context, runID string, params map[string]string) error
	LogMetric(ctx context.Context, runID, key string, value float64) error
	SetTag(ctx context.Context, runID, key, value string) error
	LogArtifact(ctx context.Context, runID, localPath, artifactPath string) error
	EndRun(ctx context.Context, runID, status string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, experiment string) ([]Run, error)
	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg config.TrackingData, logger *zap.SugaredLogger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = config.DefaultSQLitePath
		}
		return NewSQLiteStore(path, cfg.ArtifactRoot, logger)
	case "postgres", "postgresql", "timescaledb":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres tracking backend requires postgres_dsn")
		}
		return NewPostgresStore(cfg.PostgresDSN, cfg.ArtifactRoot, logger)
	default:
		return nil, fmt.Errorf("unknown tracking backend %q", cfg.Backend)
	}
}

func newRunID() string {
	return uuid.NewString()
}

// copyArtifact copies localPath to <root>/<runID>/<artifactPath>/<basename>.
func copyArtifact(root, runID, localPath, artifactPath string) (Artifact, error) {
	if root == "" {
		root = config.DefaultArtifactRoot
	}

	clean := filepath.Clean(filepath.FromSlash(artifactPath))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return Artifact{}, fmt.Errorf("artifact path %q escapes the artifact root", artifactPath)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("error opening artifact: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return Artifact{}, err
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("artifact %s is a directory", localPath)
	}

	destDir := filepath.Join(root, runID, clean)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("error creating artifact directory: %w", err)
	}

	destPath := filepath.Join(destDir, filepath.Base(localPath))
	dst, err := os.Create(destPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("error creating artifact: %w", err)
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return Artifact{}, fmt.Errorf("error copying artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		return Artifact{}, err
	}

	return Artifact{
		Path:       filepath.ToSlash(clean),
		StoredPath: destPath,
		Size:       n,
		Timestamp:  time.Now().UTC(),
	}, nil
}
