package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if s.repo != nil {
		if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{"running": true}
	if s.tracker != nil {
		progress := s.tracker.DailyProgress()
		status["balance"] = progress.CurrentBalance
		status["daily_pnl"] = progress.DailyPnL
		status["trades_today"] = progress.TradesToday
	}
	if s.repo != nil {
		if open, err := s.repo.OpenTradeCount(c.Request.Context()); err == nil {
			status["open_trades"] = open
		}
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleBalance(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "balance tracking disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":   s.tracker.State(),
		"summary": s.tracker.Summary(),
	})
}

func (s *Server) handleOpenTrades(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage disabled"})
		return
	}
	trades, err := s.repo.OpenTrades(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("failed to load open trades")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleClosedTrades(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage disabled"})
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	trades, err := s.repo.ClosedTrades(c.Request.Context(), limit, offset)
	if err != nil {
		s.log.WithError(err).Error("failed to load closed trades")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handlePumpSignals(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage disabled"})
		return
	}
	signals, err := s.repo.RecentPumpSignals(c.Request.Context(), intQuery(c, "limit", 50))
	if err != nil {
		s.log.WithError(err).Error("failed to load pump signals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (s *Server) handleMoverSignals(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage disabled"})
		return
	}
	analyses, err := s.repo.RecentMoverAnalyses(c.Request.Context(), intQuery(c, "limit", 50))
	if err != nil {
		s.log.WithError(err).Error("failed to load mover analyses")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": analyses, "count": len(analyses)})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusOK, gin.H{"events": []struct{}{}})
		return
	}
	recent := s.bus.Recent(intQuery(c, "limit", 50))
	c.JSON(http.StatusOK, gin.H{"events": recent, "count": len(recent)})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
