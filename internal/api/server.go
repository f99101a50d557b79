// Package api exposes the record store and running providers over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/rules"
	"github.com/jmurray2011/spindle/internal/source"
	"github.com/jmurray2011/spindle/internal/store"
)

// DefaultAddr is used when no address is configured.
const DefaultAddr = "127.0.0.1:7080"

// Instance is a running provider addressed by its instance id.
type Instance struct {
	ID       uuid.UUID
	URI      string
	Kind     string
	Provider source.Provider
}

// Config configures a Server.
type Config struct {
	Addr     string
	Store    *store.Store
	Pipeline *rules.Pipeline
	// Instances are listed in order by /api/providers.
	Instances []Instance
	Logger    logging.Logger
}

// Server provides the HTTP API over one store.
type Server struct {
	addr      string
	store     *store.Store
	pipeline  *rules.Pipeline
	instances []Instance
	logger    logging.Logger

	// viewMu serialises pipeline runs; classifiers mutate the clones they
	// are given but the rule sets themselves are shared.
	viewMu sync.Mutex

	engine    *gin.Engine
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a server; routes are ready for Handler immediately.
func NewServer(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:      addr,
		store:     cfg.Store,
		pipeline:  cfg.Pipeline,
		instances: cfg.Instances,
		logger:    logging.OrDefault(cfg.Logger).WithField("component", "api"),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/entries", s.handleEntries)
	api.GET("/entries/new", s.handleNewEntries)
	api.DELETE("/entries", s.handleClear)
	api.GET("/enabled", s.handleGetEnabled)
	api.PUT("/enabled", s.handleSetEnabled)
	api.GET("/providers", s.handleProviders)
	api.POST("/providers/:id/pause", s.handlePause)
	api.POST("/providers/:id/start", s.handleStart)
	api.GET("/stream", s.handleStream)
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Handler:           s.engine,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped: %v", err)
		}
	}()
	s.logger.Info("api listening on %s", listener.Addr())
	return nil
}

// Addr returns the listening address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server. Open streams end when the
// server context is cancelled.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) instance(id string) (Instance, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Instance{}, false
	}
	for _, in := range s.instances {
		if in.ID == parsed {
			return in, true
		}
	}
	return Instance{}, false
}
