// Package api provides the HTTP REST API and WebSocket server for helios-core.
//
// It exposes the variable catalog, cached values, write operations, and value
// history over REST, and pushes state changes to WebSocket clients in real time.
//
// The server follows the same lifecycle pattern as the other infrastructure
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
	"net/http"
	"sync"
	"time"

	"github.com/openvent/helios-core/internal/coordinator"
	"github.com/openvent/helios-core/internal/history"
	"github.com/openvent/helios-core/internal/infrastructure/config"
	"github.com/openvent/helios-core/internal/infrastructure/logging"
	"github.com/openvent/helios-core/internal/variable"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Coordinator is the slice of the device coordinator the API server needs.
type Coordinator interface {
	Set(ctx context.Context, id string, value any) error
	AddListener(id string, fn coordinator.ListenerFunc) (coordinator.Handle, error)
	RemoveListener(id string, handle coordinator.Handle)
	GetValue(id string) (coordinator.CachedValue, bool)
	Registry() *variable.Registry
	Identity() coordinator.Identity
	LastSeen() time.Time
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Coordinator Coordinator

	// History is optional. When nil, the history endpoint responds
	// with 503 Service Unavailable.
	History history.Repository

	Version string
}

// Server is the HTTP API server for helios-core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	coord   Coordinator
	history history.Repository
	version string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc

	// handles tracks the coordinator listeners feeding the WebSocket hub,
	// keyed by variable ID, so Close can detach them.
	handlesMu sync.Mutex
	handles   map[string]coordinator.Handle
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		coord:   deps.Coordinator,
		history: deps.History,
		version: deps.Version,
		handles: make(map[string]coordinator.Handle),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, attaches a coordinator listener per catalog
// variable to feed real-time broadcasts, and launches the HTTP listener in a
// background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop the hub independently of the
	// parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	if err := s.attachListeners(); err != nil {
		return fmt.Errorf("attaching state listeners: %w", err)
	}

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

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// attachListeners registers one coordinator listener per catalog variable.
// Each cache change is broadcast to WebSocket clients subscribed to the
// variable state channel. Registering listeners here also keeps every
// variable on the poll schedule while the API is running.
func (s *Server) attachListeners() error {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()

	for _, id := range s.coord.Registry().IDs() {
		handle, err := s.coord.AddListener(id, func(value coordinator.CachedValue) {
			s.hub.Broadcast(ChannelStateChanged, value)
		})
		if err != nil {
			return err
		}
		s.handles[id] = handle
	}
	return nil
}

// detachListeners removes the coordinator listeners added by attachListeners.
func (s *Server) detachListeners() {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()

	for id, handle := range s.handles {
		s.coord.RemoveListener(id, handle)
		delete(s.handles, id)
	}
}

// Close gracefully shuts down the API server.
//
// It detaches coordinator listeners, disconnects WebSocket clients, and waits
// up to gracefulShutdownTimeout for in-flight requests to complete.
func (s *Server) Close() error {
	s.detachListeners()

	if s.cancel != nil {
		s.cancel()
	}

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
	if s.server == nil {
		return fmt.Errorf("API server not started")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
