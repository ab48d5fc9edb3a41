package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"colorgame/broadcast"
	"colorgame/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Services are the application services the HTTP layer delegates to
type Services struct {
	Users   service.UserService
	Betting service.BettingService
	Wallet  service.WalletService
	Rounds  service.RoundService
}

// Options configures the HTTP boundary
type Options struct {
	Addr string
	// AdminToken guards the operator endpoints. Empty disables them.
	AdminToken string
	// ObserverBufferSize is the per-connection outbound queue length
	ObserverBufferSize int
}

// Server serves the REST API and the real-time feed
type Server struct {
	services Services
	hub      *broadcast.Hub
	options  Options
	engine   *gin.Engine
	http     *http.Server
}

// New builds the gin engine and registers every route
func New(services Services, hub *broadcast.Hub, options Options) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLogger())

	s := &Server{
		services: services,
		hub:      hub,
		options:  options,
		engine:   engine,
	}
	s.routes()

	s.http = &http.Server{
		Addr:              options.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/ws", func(c *gin.Context) {
		broadcast.ServeWS(s.hub, s.options.ObserverBufferSize, c.Writer, c.Request)
	})

	api := s.engine.Group("/api")
	{
		api.GET("/periods/current", s.getCurrentPeriod)
		api.GET("/periods/history", s.getPeriodHistory)
	}

	player := api.Group("", s.requireUser())
	{
		player.GET("/user", s.getUser)
		player.POST("/bets", s.placeBet)
		player.GET("/bets/history", s.getBetHistory)
		player.POST("/transactions", s.createTransaction)
		player.GET("/transactions/history", s.getTransactionHistory)
	}

	admin := api.Group("/admin", s.requireAdmin())
	{
		admin.POST("/periods/open", s.openPeriod)
		admin.POST("/periods/:id/settle", s.settlePeriod)
	}
}

// Handler exposes the engine, mainly for httptest
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.options.Addr).Info("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and closes every observer connection
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"observers": s.hub.Count(),
	})
}
