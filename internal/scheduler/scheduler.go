package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alejandrodnm/predictor/config"
	"github.com/alejandrodnm/predictor/internal/engine"
	"github.com/alejandrodnm/predictor/internal/ports"
)

const (
	resolutionPollInterval = 5 * time.Minute
	adverseSweepInterval   = 10 * time.Minute
	staleCheckInterval     = 15 * time.Minute
	staleThreshold         = 30 * time.Minute

	// Duración de la ventana tier-2; cada ciclo cualificante la renueva.
	burstWindow = 30 * time.Minute
)

// Scheduler es el dueño de los jobs periódicos: escaneos, resolución,
// barrido adverso, resumen diario y la ventana dinámica de tier-2.
type Scheduler struct {
	cfg      *config.Config
	scanner  *Scanner
	resolver *engine.Resolver
	store    ports.Storage
	notifier ports.Notifier
	log      *slog.Logger
	now      func() time.Time

	cron *cron.Cron

	mu         sync.Mutex
	tier2Entry cron.EntryID
	tier2Until time.Time
}

// New crea el scheduler sin arrancar los jobs.
func New(cfg *config.Config, scanner *Scanner, resolver *engine.Resolver, store ports.Storage, notifier ports.Notifier, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		scanner:  scanner,
		resolver: resolver,
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		// Un ciclo lento nunca se solapa consigo mismo.
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registra los jobs y arranca el cron. El contexto se captura para
// los jobs; cancelarlo los corta en el siguiente tick.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		fn   func()
	}{
		{fmt.Sprintf("@every %dm", s.cfg.Tier1.ScanIntervalMinutes), "tier1 scan", func() { s.runTier1(ctx) }},
		{fmt.Sprintf("@every %s", resolutionPollInterval), "resolution poll", func() {
			if err := s.resolver.Poll(ctx); err != nil {
				s.log.Error("resolution poll failed", "error", err)
			}
		}},
		{fmt.Sprintf("@every %s", adverseSweepInterval), "adverse sweep", func() {
			if err := s.resolver.SweepAdverse(ctx); err != nil {
				s.log.Error("adverse sweep failed", "error", err)
			}
		}},
		{fmt.Sprintf("0 %d * * *", s.cfg.Risk.DailySummaryHourUTC), "daily summary", func() { s.runDailySummary(ctx) }},
		{fmt.Sprintf("@every %s", staleCheckInterval), "stale check", func() { s.checkStale() }},
	}

	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("scheduler.Start: %s: %w", j.name, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		"tier1_interval_min", s.cfg.Tier1.ScanIntervalMinutes,
		"summary_hour_utc", s.cfg.Risk.DailySummaryHourUTC,
	)
	return nil
}

// Stop detiene el cron y espera a que terminen los jobs en curso.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// LastScan expone el último ciclo completado (lo consume el health endpoint).
func (s *Scheduler) LastScan() time.Time { return s.scanner.LastScan() }

// Mode expone el modo operativo actual.
func (s *Scheduler) Mode() string { return s.scanner.Mode() }

func (s *Scheduler) runTier1(ctx context.Context) {
	cands, err := s.scanner.Scan(ctx, 1)
	if err != nil {
		s.log.Error("tier1 scan failed", "error", err)
		return
	}
	if QualifiesBurst(cands) {
		s.extendBurst(ctx)
	}
}

func (s *Scheduler) runTier2(ctx context.Context) {
	s.mu.Lock()
	expired := s.now().After(s.tier2Until)
	s.mu.Unlock()
	if expired {
		s.closeBurst()
		return
	}

	cands, err := s.scanner.Scan(ctx, 2)
	if err != nil {
		s.log.Error("tier2 scan failed", "error", err)
		return
	}
	if QualifiesBurst(cands) {
		s.extendBurst(ctx)
	}
}

// extendBurst abre la ventana tier-2 o la renueva si ya está abierta.
func (s *Scheduler) extendBurst(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tier2Until = s.now().Add(burstWindow)
	if s.tier2Entry != 0 {
		s.log.Debug("tier2 window extended", "until", s.tier2Until)
		return
	}

	entry, err := s.cron.AddFunc(
		fmt.Sprintf("@every %dm", s.cfg.Tier2.ScanIntervalMinutes),
		func() { s.runTier2(ctx) },
	)
	if err != nil {
		s.log.Error("tier2 window not opened", "error", err)
		return
	}
	s.tier2Entry = entry
	s.log.Info("tier2 window opened",
		"until", s.tier2Until,
		"interval_min", s.cfg.Tier2.ScanIntervalMinutes,
	)
}

func (s *Scheduler) closeBurst() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tier2Entry == 0 {
		return
	}
	s.cron.Remove(s.tier2Entry)
	s.tier2Entry = 0
	s.log.Info("tier2 window closed")
}

func (s *Scheduler) runDailySummary(ctx context.Context) {
	date := s.now().UTC().Format("2006-01-02")
	stats, err := s.store.StatsForDate(ctx, date)
	if err != nil {
		s.log.Error("daily summary failed", "error", err)
		return
	}
	s.notifier.DailySummary(stats)
}

func (s *Scheduler) checkStale() {
	last := s.scanner.LastScan()
	if last.IsZero() {
		return
	}
	if age := s.now().Sub(last); age > staleThreshold {
		s.log.Warn("scan loop stale", "last_scan", last, "age", age)
	}
}
