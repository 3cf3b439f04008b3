// Package api serves the read-only status HTTP interface: health, metrics,
// balance, trades, signals and recent events. It never mutates trading
// state.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptopump-bot/internal/database"
	"cryptopump-bot/internal/events"
	"cryptopump-bot/internal/logging"
	"cryptopump-bot/internal/trading"
)

// ServerConfig holds API server configuration.
type ServerConfig struct {
	Port           int
	ProductionMode bool
	AllowOrigins   []string
}

// Server is the HTTP status API.
type Server struct {
	router  *gin.Engine
	repo    *database.Repository
	tracker *trading.BalanceTracker
	bus     *events.EventBus
	cfg     ServerConfig
	log     *logging.Logger

	httpServer *http.Server
}

// NewServer creates the API server. repo and bus may be nil in dry runs.
func NewServer(cfg ServerConfig, repo *database.Repository, tracker *trading.BalanceTracker, bus *events.EventBus) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173"}
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:  router,
		repo:    repo,
		tracker: tracker,
		bus:     bus,
		cfg:     cfg,
		log:     logging.WithComponent("api"),
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/balance", s.handleBalance)
		api.GET("/trades/open", s.handleOpenTrades)
		api.GET("/trades/closed", s.handleClosedTrades)
		api.GET("/signals/pumps", s.handlePumpSignals)
		api.GET("/signals/movers", s.handleMoverSignals)
		api.GET("/events", s.handleEvents)
	}
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API server listening on :%d", s.cfg.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
