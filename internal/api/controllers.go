package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func logRequest(method, path string, status int, latency time.Duration) {
	log.Printf("%s %s -> %d (%s)", method, path, status, latency)
}

// getSystemStatus returns runtime metadata and the current session snapshot.
func (s *Server) getSystemStatus(c *gin.Context) {
	resp := gin.H{
		"instrument": s.Meta.Instrument,
		"dry_run":    s.Meta.DryRun,
		"feed_mode":  s.Meta.FeedMode,
		"version":    s.Meta.Version,
	}
	if s.Trader != nil {
		resp["session"] = s.Trader.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// getMetrics returns pipeline counters and latency stats.
func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "METRICS_UNAVAILABLE",
			"error": "metrics not initialized",
		})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// getSession returns the live session snapshot.
func (s *Server) getSession(c *gin.Context) {
	if s.Trader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "TRADER_UNAVAILABLE",
			"error": "trader not running",
		})
		return
	}
	c.JSON(http.StatusOK, s.Trader.Snapshot())
}

// getSignals returns recent journaled entry signals.
func (s *Server) getSignals(c *gin.Context) {
	limit := queryLimit(c, 50)
	signals, err := s.DB.ListSignals(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

// getOrders returns recent journaled orders.
func (s *Server) getOrders(c *gin.Context) {
	limit := queryLimit(c, 50)
	orders, err := s.DB.ListOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// closePosition force-closes any open position. Operator-only.
func (s *Server) closePosition(c *gin.Context) {
	if s.Trader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "TRADER_UNAVAILABLE",
			"error": "trader not running",
		})
		return
	}
	if err := s.Trader.ForceClose(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "CLOSE_FAILED",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func queryLimit(c *gin.Context, def int) int {
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return def
}
