// Package web exposes the candle resolution service over HTTP using gin.
package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"candleCache/internal/app"
	"candleCache/internal/localstore"
	"candleCache/internal/ports"
)

// Config holds the server's dependencies.
type Config struct {
	Port    int
	Logger  ports.Logger
	Service *app.CandleService
	// Local is optional; the cache admin endpoints return 503 without it.
	Local *localstore.Store
}

// Server wraps the gin engine and route registration.
type Server struct {
	engine *gin.Engine
	port   int
}

// NewServer builds the router with all routes registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil || cfg.Service == nil {
		return nil, fmt.Errorf("missing required dependencies for web server")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := newCandleHandler(cfg.Service, cfg.Local, cfg.Logger)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	{
		api.GET("/candles", handler.GetCandles)
		api.GET("/cache/info", handler.CacheInfo)
		api.GET("/cache/size", handler.CacheSize)
		api.DELETE("/cache", handler.CacheClear)
	}

	return &Server{engine: engine, port: cfg.Port}, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	return s.engine.Run(fmt.Sprintf(":%d", s.port))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
