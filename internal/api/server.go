package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/cuebridge/internal/dispatch"
	"github.com/nerrad567/cuebridge/internal/infrastructure/config"
	"github.com/nerrad567/cuebridge/internal/infrastructure/logging"
	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// TriggerService is the trigger registry surface used by the API.
type TriggerService interface {
	List() []trigger.Doc
	Get(id string) (*trigger.Definition, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Count() int
}

// ModuleService is the module registry surface used by the API.
type ModuleService interface {
	Instances() []module.Info
	Get(id string) (module.Info, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// Dispatcher is the dispatch engine surface used by the API.
type Dispatcher interface {
	Process(ctx context.Context, text string, host trigger.HostContext, signals ...string) dispatch.Result
	Signal(ctx context.Context, name string, host trigger.HostContext) bool
	SetAllow(allow bool)
	Allowed() bool
}

// ConnectionChecker reports broker connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Triggers TriggerService
	Modules  ModuleService
	Engine   Dispatcher
	// MQTT is optional; nil when the broker connection is disabled.
	MQTT ConnectionChecker
	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	triggers    TriggerService
	modules     ModuleService
	engine      Dispatcher
	mqtt        ConnectionChecker
	metrics     http.Handler
	metricsPath string
	version     string
	startTime   time.Time

	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies. The server is
// not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Triggers == nil || deps.Modules == nil || deps.Engine == nil {
		return nil, fmt.Errorf("trigger registry, module registry and engine are required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		triggers:    deps.Triggers,
		modules:     deps.Modules,
		engine:      deps.Engine,
		mqtt:        deps.MQTT,
		metrics:     deps.Metrics,
		metricsPath: deps.MetricsPath,
		version:     deps.Version,
		startTime:   time.Now(),
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}

	// The engine broadcasts through the same hub, so it is usually injected.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}
	s.registerSnapshots()
	return s, nil
}

// registerSnapshots gives new subscribers the current allow flag and module
// status without waiting for the next change or sample.
func (s *Server) registerSnapshots() {
	hub := s.Hub()
	hub.SetSnapshot(ChannelAllow, func() any {
		return map[string]bool{"allow": s.engine.Allowed()}
	})
	hub.SetSnapshot(ChannelModuleStatus, func() any {
		return s.modules.Instances()
	})
}

// Hub returns the WebSocket hub, creating it on first use.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// Start binds the listener and serves in the background. Bind errors are
// returned here rather than logged from the goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	hub := s.Hub()
	if !s.externalHub {
		go hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
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
