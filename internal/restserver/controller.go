// Package restserver serves deposition analysis and run history over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/siminhale/siminhale/internal/log"
	"github.com/siminhale/siminhale/internal/tracking"
	"github.com/siminhale/siminhale/pkg/config"
	"github.com/siminhale/siminhale/pkg/deposition"
	"github.com/siminhale/siminhale/pkg/geometry"
	"go.uber.org/zap"
)

// MaxUploadBytes bounds particle CSV uploads.
const MaxUploadBytes = 256 << 20

// Controller represents the REST server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	Server   http.Server
	geometry *geometry.Table
	stagnant deposition.StagnantRule
	store    tracking.Store // nil when run tracking is not configured
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new REST server controller. store may be nil.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, table *geometry.Table, store tracking.Store, logger *zap.SugaredLogger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if table == nil {
		table = geometry.Canonical()
	}

	rule, err := deposition.ParseStagnantRule(cfg.Analysis.StagnantRule)
	if err != nil {
		return nil, err
	}

	ctrl := &Controller{
		ctx:      ctx,
		wg:       wg,
		geometry: table,
		stagnant: rule,
		store:    store,
		logger:   logger,
	}

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		listenAddr = config.DefaultListenAddr
	}
	port := cfg.Server.Port
	if port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", config.DefaultPort)
		port = config.DefaultPort
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", listenAddr, port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server. It shuts down when the
// controller's context is cancelled.
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the routed HTTP handler.
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(log.HTTPMiddleware(c.logger)))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/summary", c.handlers.PostSummary).Methods(http.MethodPost)
	api.HandleFunc("/classify", c.handlers.PostClassify).Methods(http.MethodPost)
	api.HandleFunc("/geometry", c.handlers.GetGeometry).Methods(http.MethodGet)
	api.HandleFunc("/references", c.handlers.GetReferences).Methods(http.MethodGet)
	api.HandleFunc("/runs", c.handlers.GetRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", c.handlers.GetRun).Methods(http.MethodGet)

	return router
}
