package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/monitor"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/trader"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/db"
)

// Server wires HTTP endpoints around the trading core.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Trader    *trader.Trader
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to the operator.
type SystemMeta struct {
	Instrument string
	DryRun     bool
	FeedMode   string
	Version    string
}

// OperatorAuth holds the single-operator credential.
type OperatorAuth struct {
	PasswordHash string // bcrypt; empty disables login
}

func NewServer(bus *events.Bus, database *db.Database, tr *trader.Trader, metrics *monitor.SystemMetrics, meta SystemMeta, jwtSecret string, auth OperatorAuth) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Trader:    tr,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes(auth)
	return s
}

func (s *Server) routes(auth OperatorAuth) {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/session", s.getSession)
		api.GET("/signals", s.getSignals)
		api.GET("/orders", s.getOrders)

		api.POST("/auth/login", s.loginOperator(auth))

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/position/close", s.closePosition)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}

// requestLogger logs method, path, status and latency for each request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
