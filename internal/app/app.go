// Package app wires the HTTP API server together and runs it until shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/siminhale/siminhale/internal/restserver"
	"github.com/siminhale/siminhale/internal/tracking"
	"github.com/siminhale/siminhale/pkg/config"
	"github.com/siminhale/siminhale/pkg/geometry"
	"go.uber.org/zap"
)

// App represents the server application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger

	// WithoutTracking serves the API without the run endpoints.
	WithoutTracking bool
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the server and blocks until a shutdown signal arrives or ctx
// is cancelled
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	table, err := geometry.Resolve(a.cfg.Geometry.Version, a.cfg.Geometry.File)
	if err != nil {
		return fmt.Errorf("error loading geometry: %w", err)
	}
	a.logger.Infof("Using geometry %s (%d segments)", table.Version, len(table.Regions))

	var store tracking.Store
	if !a.WithoutTracking {
		store, err = tracking.Open(a.cfg.Tracking, a.logger.Named("tracking"))
		if err != nil {
			return fmt.Errorf("error opening run tracking store: %w", err)
		}
		defer store.Close()
	}

	ctrl, err := restserver.NewController(ctx, &wg, a.cfg, table, store, a.logger.Named("rest"))
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	a.logger.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
