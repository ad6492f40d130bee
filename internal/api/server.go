// Package api provides the read-only diagnostics HTTP API for Spectra Core.
//
// It exposes unit topology, cached parameter state and persisted history to
// operators and monitoring tools. All mutation goes through MQTT commands;
// the API never writes to hardware.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hollis-lab/spectra-core/internal/bridge"
	"github.com/hollis-lab/spectra-core/internal/history"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/config"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/logging"
	"github.com/hollis-lab/spectra-core/internal/spectro"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// UnitDirectory provides read access to attached units.
// Satisfied by *bridge.Bridge.
type UnitDirectory interface {
	UnitIDs() []string
	Describe(unitID string) (bridge.UnitDescription, bool)
	Snapshot(unitID string) ([]spectro.Param, bool)
	WriteReport(unitID string, out io.Writer) bool
}

// HistoryStore provides read access to persisted history.
// Satisfied by *history.Repository. Optional; nil disables history routes.
type HistoryStore interface {
	Parameters(ctx context.Context, unitID string, limit int) ([]history.ParameterChange, error)
	Commands(ctx context.Context, unitID string, limit int) ([]history.CommandRecord, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Units   UnitDirectory
	History HistoryStore // optional
	Version string
}

// Server is the diagnostics HTTP server.
//
// It manages the HTTP listener, routes, and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	units   UnitDirectory
	history HistoryStore
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, unit directory)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Units == nil {
		return nil, fmt.Errorf("unit directory is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		units:   deps.Units,
		history: deps.History,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
