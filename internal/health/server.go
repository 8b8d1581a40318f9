// Package health expone el endpoint HTTP de salud del bot.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// Un loop de escaneo sin ciclos completados en esta ventana está degradado.
const staleAfter = 30 * time.Minute

// Status es lo que el scheduler expone al endpoint.
type Status interface {
	LastScan() time.Time
	Mode() string
}

// StatsProvider es el subconjunto del storage que el endpoint consulta.
type StatsProvider interface {
	StatsForDate(ctx context.Context, date string) (domain.DailyStats, error)
}

// Server sirve GET /health con el estado operativo y las métricas del día.
type Server struct {
	store     StatsProvider
	status    Status
	log       *slog.Logger
	startedAt time.Time
	now       func() time.Time

	srv *http.Server
}

// NewServer crea el servidor sin arrancarlo.
func NewServer(addr string, store StatsProvider, status Status, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:     store,
		status:    status,
		log:       log,
		startedAt: time.Now(),
		now:       time.Now,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", s.health)

	s.srv = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run arranca el servidor; bloquea hasta que se cierra.
func (s *Server) Run() error {
	s.log.Info("health endpoint listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown cierra el servidor ordenadamente.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	now := s.now()

	stats, err := s.store.StatsForDate(c.Request.Context(), now.UTC().Format("2006-01-02"))
	if err != nil {
		s.log.Error("health stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	last := s.status.LastScan()
	status := "healthy"
	var lastScan, minutesSince any
	switch {
	case last.IsZero():
		status = "initializing"
	case now.Sub(last) > staleAfter:
		status = "degraded"
		lastScan = last.UTC().Format(time.RFC3339)
		minutesSince = int(now.Sub(last).Minutes())
	default:
		lastScan = last.UTC().Format(time.RFC3339)
		minutesSince = int(now.Sub(last).Minutes())
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             status,
		"mode":               s.status.Mode(),
		"uptime_seconds":     int(now.Sub(s.startedAt).Seconds()),
		"last_scan":          lastScan,
		"minutes_since_scan": minutesSince,
		"open_trades":        stats.OpenTrades,
		"trades_executed":    stats.TradesExecuted,
		"trades_resolved":    stats.TradesResolved,
		"skips":              stats.Skips,
		"realized_pnl_usd":   stats.RealizedPnL,
		"open_exposure_usd":  stats.OpenExposure,
		"bankroll_usd":       stats.Bankroll,
		"api_cost_usd":       stats.APICostUSD,
		"parse_failures":     stats.ParseFailures,
	})
}
