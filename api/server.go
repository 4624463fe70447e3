// Package api exposes the ledger operations over HTTP for the front-end
// service that owns the user-facing command interface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bankroll/config"
	"bankroll/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Server hosts the HTTP surface over the ledger services
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	accounts    service.AccountService
	wagers      service.WagerService
	jackpots    service.JackpotService
	withdrawals service.WithdrawalService
}

// NewServer creates the HTTP server and registers all routes
func NewServer(
	accounts service.AccountService,
	wagers service.WagerService,
	jackpots service.JackpotService,
	withdrawals service.WithdrawalService,
) *Server {
	if config.Get().Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:      gin.New(),
		accounts:    accounts,
		wagers:      wagers,
		jackpots:    jackpots,
		withdrawals: withdrawals,
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/accounts", s.handleRegister)
	v1.GET("/accounts/:userID", s.handleGetAccount)
	v1.POST("/accounts/:userID/logins", s.handleRecordLogin)
	v1.POST("/accounts/:userID/wagers", s.handlePlaceWager)
	v1.POST("/accounts/:userID/jackpot", s.handlePlayJackpot)
	v1.POST("/accounts/:userID/withdrawals", s.handleWithdraw)
}

// Router returns the underlying gin engine, used by tests
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Run serves HTTP until the context is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// requestLogger logs one line per request through logrus
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Info("Handled request")
	}
}
