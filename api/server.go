package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scraperfleet/browserfarm/api/handlers"
	"github.com/scraperfleet/browserfarm/api/middleware"
	"github.com/scraperfleet/browserfarm/api/websocket"
	"github.com/scraperfleet/browserfarm/internal/events"
	"github.com/scraperfleet/browserfarm/internal/farm"
	"github.com/scraperfleet/browserfarm/pkg/config"
)

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.APIConfig
	manager    *farm.Manager
	wsHub      *websocket.Hub
	wsBridge   *websocket.EventBridge
}

func NewServer(cfg config.APIConfig, wsCfg config.WebSocketConfig, mode string, manager *farm.Manager, bus *events.EventBus) *Server {
	if mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	wsHub := websocket.NewHub(&wsCfg)

	s := &Server{
		router:  router,
		config:  cfg,
		manager: manager,
		wsHub:   wsHub,
	}

	s.setupMiddleware()
	s.setupRoutes()

	go wsHub.Run()

	if bus != nil {
		s.wsBridge = websocket.NewEventBridge(wsHub, bus.SubscribeAll())
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger())
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.manager)
	farmHandler := handlers.NewFarmHandler(s.manager)
	sessionHandler := handlers.NewSessionHandler(s.manager)

	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)

	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub))

	s.router.GET("/farm/metrics", farmHandler.Snapshot)
	s.router.GET("/farm/instances", farmHandler.Instances)
	s.router.GET("/farm/decisions", farmHandler.Decisions)

	s.router.POST("/farm/sessions", sessionHandler.Acquire)
	s.router.DELETE("/farm/sessions/:id", sessionHandler.Release)
	s.router.POST("/farm/sessions/:id/fetch", sessionHandler.Fetch)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
