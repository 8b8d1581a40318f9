// Package scheduler orquesta los ciclos de escaneo, la resolución periódica
// y la ventana dinámica de tier-2.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/predictor/config"
	"github.com/alejandrodnm/predictor/internal/domain"
	"github.com/alejandrodnm/predictor/internal/engine"
	"github.com/alejandrodnm/predictor/internal/learning"
	"github.com/alejandrodnm/predictor/internal/pipeline"
	"github.com/alejandrodnm/predictor/internal/ports"
)

// Coste fijo por llamada a la API de búsqueda social.
const socialSearchCostUSD = 0.0075

// MarketFilter selecciona los mercados elegibles de un tier. Se inyecta
// desde cmd/ para no acoplar el scheduler al adapter del exchange.
type MarketFilter func([]domain.Market) []domain.Market

// ScannerDeps agrupa las dependencias del scanner.
type ScannerDeps struct {
	Cfg       *config.Config
	Store     ports.Storage
	Markets   ports.MarketSource
	Books     ports.BookProvider
	News      ports.NewsSource
	Social    ports.SocialSearcher
	Completer ports.Completer
	Executor  ports.OrderExecutor
	Notifier  ports.Notifier
	Learning  *learning.State
	Keywords  *pipeline.KeywordExtractor
	Tier1     MarketFilter
	Tier2     MarketFilter
	Log       *slog.Logger
}

// Scanner ejecuta un ciclo completo de escaneo para un tier: descubre
// mercados, recolecta señales, estima, ajusta, rankea, pasa el gate de
// riesgo y ejecuta o registra el skip.
type Scanner struct {
	deps    ScannerDeps
	log     *slog.Logger
	now     func() time.Time
	workers int

	mu       sync.Mutex
	lastScan time.Time
	mode     string
	modeDate string
}

// NewScanner crea el scanner. workers <= 0 usa NumCPU() × 2.
func NewScanner(deps ScannerDeps) *Scanner {
	return &Scanner{
		deps:    deps,
		log:     deps.Log,
		now:     time.Now,
		workers: runtime.NumCPU() * 2,
		mode:    "initializing",
	}
}

// LastScan devuelve el instante del último ciclo completado.
func (s *Scanner) LastScan() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}

// Mode devuelve el modo operativo actual.
func (s *Scanner) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Scan ejecuta un ciclo para el tier dado y devuelve todos los candidatos
// evaluados, ejecutados y skips incluidos.
func (s *Scanner) Scan(ctx context.Context, tier int) ([]domain.TradeCandidate, error) {
	now := s.now()
	date := now.UTC().Format("2006-01-02")
	tierLabel := fmt.Sprintf("tier%d", tier)

	run, ok, err := s.deps.Store.ActiveExperiment(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler.Scan: active experiment: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("scheduler.Scan: no active experiment run")
	}

	in, pf, err := s.gateInput(ctx, tier, date, now)
	if err != nil {
		return nil, fmt.Errorf("scheduler.Scan: %w", err)
	}

	// El gate decide el modo del ciclo antes de gastar una sola llamada.
	observeOnly := false
	reason, allowed := engine.EvaluateGate(in)
	switch {
	case allowed:
		s.setMode(ctx, date, "active", "")
	case reason == engine.GateTierDailyCap:
		// Cap diario: se siguen recolectando señales para el análisis
		// contrafactual, pero sin llamadas al LM ni ejecución.
		observeOnly = true
		s.setMode(ctx, date, "observe_only", reason)
	case reason == engine.GateAPIBudget:
		// Sin presupuesto de API no hay estimaciones: ciclo en seco.
		s.setMode(ctx, date, "observe_only", reason)
		s.log.Warn("scan skipped, api budget exhausted",
			"tier", tierLabel, "spent_usd", in.APISpendUSD, "budget_usd", in.APIBudgetUSD)
		s.markScanned(now)
		return nil, nil
	default:
		// Límites de pérdida, cooldown o exposición: el ciclo sigue para
		// no perder los registros contrafactuales. El gate por candidato
		// convierte la selección en SKIPs con la razón del bloqueo.
		s.setMode(ctx, date, "halted", reason)
		s.log.Warn("execution gated for this cycle", "tier", tierLabel, "reason", reason)
	}

	markets, err := s.deps.Markets.FetchActiveMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler.Scan: fetch markets: %w", err)
	}
	filter := s.deps.Tier1
	if tier == 2 {
		filter = s.deps.Tier2
	}
	eligible := filter(markets)
	s.log.Info("scan cycle started",
		"tier", tierLabel, "markets", len(eligible), "observe_only", observeOnly)

	cands := s.evaluateConcurrent(ctx, eligible, tier, pf, now, date, observeOnly)
	engine.AssignClusters(cands)

	if !observeOnly {
		selected := engine.RankAndSelect(cands,
			s.remainingSlots(tier, in.ExecutedToday),
			s.deps.Cfg.Risk.MaxClusterExposurePct*in.Bankroll,
			clusterExposure(pf),
		)
		s.executeSelected(ctx, selected, tier, in)
	}

	out := make([]domain.TradeCandidate, 0, len(cands))
	for _, c := range cands {
		// Una orden maker sin fill no deja registro de auditoría.
		if c.SkipReason != domain.SkipOrderNotFilled {
			s.persistRecord(ctx, c, run.RunID, now)
		}
		out = append(out, *c)
	}

	s.deps.Notifier.ScanSummary(tierLabel, out)
	s.markScanned(now)
	return out, nil
}

// evaluateConcurrent corre el pipeline por mercado en un worker pool.
func (s *Scanner) evaluateConcurrent(ctx context.Context, markets []domain.Market, tier int, pf domain.Portfolio, now time.Time, date string, observeOnly bool) []*domain.TradeCandidate {
	workers := s.workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	workCh := make(chan domain.Market, len(markets))
	resultCh := make(chan *domain.TradeCandidate, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range workCh {
				if cand := s.evaluateMarket(ctx, m, tier, pf, now, date, observeOnly); cand != nil {
					resultCh <- cand
				}
			}
		}()
	}

	for _, m := range markets {
		workCh <- m
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var cands []*domain.TradeCandidate
	for cand := range resultCh {
		cands = append(cands, cand)
	}
	return cands
}

// evaluateMarket corre el pipeline de un mercado: keywords, señales, prompt,
// estimación, ajuste y decisión. En modo observe-only se detiene antes del
// LM y marca el mercado como SKIP. Devuelve nil solo en fallos de transporte
// del LM; los fallos de parseo producen un SKIP auditable.
func (s *Scanner) evaluateMarket(ctx context.Context, m domain.Market, tier int, pf domain.Portfolio, now time.Time, date string, observeOnly bool) *domain.TradeCandidate {
	tierCfg := s.tierConfig(tier)
	cand := &domain.TradeCandidate{
		Market:          m,
		Tier:            tier,
		FeeRate:         tierCfg.FeeRate,
		ResolutionHours: m.HoursToResolution,
	}

	if s.deps.Learning.MarketTypeDisabled(m.MarketType) {
		cand.Side = domain.SideSkip
		cand.SkipReason = domain.SkipMarketTypeDisabled
		return cand
	}

	cand.Market.Keywords = s.deps.Keywords.Extract(ctx, m)

	book, err := s.deps.Books.FetchOrderBook(ctx, m.YesTokenID)
	if err != nil {
		s.log.Warn("order book fetch failed", "market_id", m.MarketID, "error", err)
	}
	cand.OrderBookDepth = book.Depth()

	signals := s.gatherSignals(ctx, cand.Market, book, now, date)
	cand.Signals = signals
	cand.HeadlineOnly = headlineOnly(signals)

	if observeOnly {
		cand.Side = domain.SideSkip
		cand.SkipReason = domain.SkipObserveOnly
		return cand
	}

	prompt := pipeline.BuildPrompt(cand.Market, book, signals, now)
	est, err := s.deps.Completer.EstimateMarket(ctx, prompt)
	if err != nil {
		var parseErr *domain.ParseError
		if errors.As(err, &parseErr) {
			if saveErr := s.deps.Store.SaveParseFailure(ctx, m.MarketID, parseErr.Raw, now); saveErr != nil {
				s.log.Warn("parse failure not persisted", "market_id", m.MarketID, "error", saveErr)
			}
			cand.Side = domain.SideSkip
			cand.SkipReason = domain.SkipLLMParseFailed
			return cand
		}
		s.log.Warn("estimate failed", "market_id", m.MarketID, "error", err)
		return nil
	}
	s.addCost(ctx, date, "llm", est.CostUSD)

	cand.RawProbability = est.Probability
	cand.RawConfidence = est.Confidence
	cand.Reasoning = est.Reasoning
	cand.SignalTags = est.Tags

	adj := s.deps.Learning.Adjust(est, m.MarketType, signals, now)
	cand.AdjustedProbability = adj.Probability
	cand.AdjustedConfidence = adj.Confidence
	cand.CalibrationAdjustment = adj.CalibrationDelta
	cand.SignalWeightAdjustment = adj.SignalWeightDelta
	cand.MarketTypeAdjustment = adj.ExtraEdge

	engine.Decide(cand, engine.SizingParams{
		MinEdge:        tierCfg.MinEdge,
		Bankroll:       s.bankroll(pf),
		KellyFraction:  s.deps.Cfg.Risk.KellyFraction,
		MaxPositionPct: s.deps.Cfg.Risk.MaxPositionPct,
	})
	return cand
}

// gatherSignals recolecta señales de noticias, social y microestructura.
// Un colector caído no tumba el ciclo.
func (s *Scanner) gatherSignals(ctx context.Context, m domain.Market, book domain.OrderBook, now time.Time, date string) []domain.Signal {
	var signals []domain.Signal

	headlines, err := s.deps.News.FetchHeadlines(ctx, m.Keywords)
	if err != nil {
		s.log.Warn("news fetch failed", "market_id", m.MarketID, "error", err)
	}
	signals = append(signals, headlines...)

	social, err := s.deps.Social.Search(ctx, m.Keywords)
	if err != nil {
		s.log.Warn("social search failed", "market_id", m.MarketID, "error", err)
	}
	s.addCost(ctx, date, "social", socialSearchCostUSD)
	signals = append(signals, social...)

	signals = append(signals, marketDataSignal(m, book, now))
	return signals
}

// marketDataSignal deriva una señal S5/I6 de la microestructura del mercado.
func marketDataSignal(m domain.Market, book domain.OrderBook, now time.Time) domain.Signal {
	content := fmt.Sprintf(
		"Market microstructure: YES at %.3f, 24h volume $%.0f, book depth $%.0f, order flow skew %+.2f",
		m.YesPrice, m.Volume24h, book.Depth(), book.Skew())
	return domain.Signal{
		SourceKind:  domain.SourceMarketData,
		SourceTier:  domain.TierS5,
		InfoType:    domain.InfoI6,
		Content:     content,
		Credibility: domain.TierS5.Credibility(),
		Timestamp:   now,
	}
}

// executeSelected re-evalúa el gate por candidato, acumulando el tamaño que
// el propio ciclo va comprometiendo; un candidato bloqueado se degrada a
// SKIP con la razón del gate.
func (s *Scanner) executeSelected(ctx context.Context, selected []*domain.TradeCandidate, tier int, in engine.GateInput) {
	var committed float64
	executed := 0
	for _, c := range selected {
		check := in
		check.ExecutedToday += executed
		check.TotalExposure += committed
		check.CandidateSize = c.PositionSize

		if reason, ok := engine.EvaluateGate(check); !ok {
			c.Side = domain.SideSkip
			c.SkipReason = reason
			c.PositionSize = 0
			continue
		}

		s.executeOne(ctx, c, tier)
		if c.Side != domain.SideSkip {
			committed += c.PositionSize
			executed++
		}
	}
}

// executeOne manda la orden del candidato seleccionado y actualiza la
// cartera con el fill. Tier-1 postea maker; tier-2 cruza el libro.
func (s *Scanner) executeOne(ctx context.Context, c *domain.TradeCandidate, tier int) {
	tokenID := c.Market.YesTokenID
	if c.Side == domain.SideBuyNo {
		tokenID = c.Market.NoTokenID
	}

	fill, err := s.deps.Executor.Execute(ctx, domain.OrderRequest{
		MarketID: c.Market.MarketID,
		TokenID:  tokenID,
		Side:     c.Side,
		Price:    c.MarketPrice,
		SizeUSD:  c.PositionSize,
		Depth:    c.OrderBookDepth,
		Maker:    tier == 1,
	})
	if err != nil {
		s.log.Warn("order failed", "market_id", c.Market.MarketID, "error", err)
	}
	if err != nil || !fill.Filled {
		c.Side = domain.SideSkip
		c.SkipReason = domain.SkipOrderNotFilled
		c.PositionSize = 0
		return
	}

	if err := s.openPosition(ctx, c, fill); err != nil {
		s.log.Error("portfolio update failed", "market_id", c.Market.MarketID, "error", err)
	}
	s.log.Info("trade executed",
		"market_id", c.Market.MarketID,
		"side", c.Side,
		"size_usd", fill.SizeUSD,
		"fill_price", fill.FillPrice,
		"slippage", fill.Slippage,
		"maker", fill.Maker,
	)
}

func (s *Scanner) openPosition(ctx context.Context, c *domain.TradeCandidate, fill domain.OrderFill) error {
	pf, ok, err := s.deps.Store.LoadPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	if !ok {
		pf = domain.NewPortfolio(s.deps.Cfg.Bankroll)
	}

	pf.Cash -= fill.SizeUSD
	pf.OpenPositions = append(pf.OpenPositions, domain.Position{
		MarketID:        c.Market.MarketID,
		Side:            c.Side,
		EntryPrice:      fill.FillPrice,
		SizeUSD:         fill.SizeUSD,
		CurrentValue:    fill.SizeUSD,
		MarketClusterID: c.MarketClusterID,
	})
	var openValue float64
	for _, pos := range pf.OpenPositions {
		openValue += pos.CurrentValue
	}
	pf.TotalEquity = pf.Cash + openValue

	if err := s.deps.Store.SavePortfolio(ctx, pf); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

// persistRecord escribe el registro de auditoría del candidato.
func (s *Scanner) persistRecord(ctx context.Context, c *domain.TradeCandidate, runID string, now time.Time) {
	rec := domain.TradeRecord{
		RecordID:      uuid.NewString(),
		ExperimentRun: runID,
		Timestamp:     now,
		ModelUsed:     s.deps.Completer.Model(),

		MarketID:              c.Market.MarketID,
		MarketQuestion:        c.Market.Question,
		MarketType:            c.Market.MarketType,
		ResolutionWindowHours: c.ResolutionHours,
		ResolutionTime:        c.Market.ResolutionTime,
		Tier:                  c.Tier,

		RawProbability: c.RawProbability,
		RawConfidence:  c.RawConfidence,
		Reasoning:      c.Reasoning,
		SignalTags:     c.SignalTags,
		HeadlineOnly:   c.HeadlineOnly,

		CalibrationAdjustment:  c.CalibrationAdjustment,
		MarketTypeAdjustment:   c.MarketTypeAdjustment,
		SignalWeightAdjustment: c.SignalWeightAdjustment,
		AdjustedProbability:    c.AdjustedProbability,
		AdjustedConfidence:     c.AdjustedConfidence,

		MarketPriceAtDecision: c.MarketPrice,
		OrderBookDepthUSD:     c.OrderBookDepth,
		FeeRate:               c.FeeRate,
		CalculatedEdge:        c.CalculatedEdge,
		TradeScore:            c.Score,

		Action:            c.Side,
		SkipReason:        c.SkipReason,
		PositionSizeUSD:   c.PositionSize,
		KellyFractionUsed: c.KellyFractionUsed,
		MarketClusterID:   c.MarketClusterID,
	}
	if err := s.deps.Store.SaveTradeRecord(ctx, rec); err != nil {
		s.log.Error("trade record not persisted", "market_id", c.Market.MarketID, "error", err)
	}
}

// gateInput ensambla el estado agregado que evalúa el gate de riesgo.
func (s *Scanner) gateInput(ctx context.Context, tier int, date string, now time.Time) (engine.GateInput, domain.Portfolio, error) {
	executed, err := s.deps.Store.CountExecutedForDate(ctx, tier, date)
	if err != nil {
		return engine.GateInput{}, domain.Portfolio{}, err
	}

	dayStart := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	weekStart := now.AddDate(0, 0, -7)

	resolvedWeek, err := s.deps.Store.ResolvedBetween(ctx, weekStart, now)
	if err != nil {
		return engine.GateInput{}, domain.Portfolio{}, err
	}
	var dailyPnL, weeklyPnL float64
	for _, r := range resolvedWeek {
		if !r.IsExecuted() {
			continue
		}
		weeklyPnL += r.PnL
		if r.ResolvedAt != nil && !r.ResolvedAt.Before(dayStart) {
			dailyPnL += r.PnL
		}
	}

	open, err := s.deps.Store.UnresolvedExecuted(ctx)
	if err != nil {
		return engine.GateInput{}, domain.Portfolio{}, err
	}
	cooldownStart := now.Add(-time.Duration(s.deps.Cfg.Risk.CooldownHours * float64(time.Hour)))
	streak := engine.ConsecutiveAdverse(resolvedWeek, open, cooldownStart)

	pf, ok, err := s.deps.Store.LoadPortfolio(ctx)
	if err != nil {
		return engine.GateInput{}, domain.Portfolio{}, err
	}
	if !ok {
		pf = domain.NewPortfolio(s.deps.Cfg.Bankroll)
	}

	spend, err := s.deps.Store.APICostForDate(ctx, date)
	if err != nil {
		return engine.GateInput{}, domain.Portfolio{}, err
	}

	return engine.GateInput{
		ExecutedToday:      executed,
		TierDailyCap:       s.tierConfig(tier).DailyCap,
		DailyPnL:           dailyPnL,
		WeeklyPnL:          weeklyPnL,
		Bankroll:           s.bankroll(pf),
		DailyLossLimitPct:  s.deps.Cfg.Risk.DailyLossLimitPct,
		WeeklyLossLimitPct: s.deps.Cfg.Risk.WeeklyLossLimitPct,
		ConsecutiveAdverse: streak,
		AdverseThreshold:   s.deps.Cfg.Risk.ConsecutiveAdverse,
		TotalExposure:      pf.TotalExposure(),
		MaxExposurePct:     s.deps.Cfg.Risk.MaxTotalExposurePct,
		APISpendUSD:        spend,
		APIBudgetUSD:       s.deps.Cfg.Risk.DailyAPIBudgetUSD,
	}, pf, nil
}

func (s *Scanner) tierConfig(tier int) config.TierConfig {
	if tier == 2 {
		return s.deps.Cfg.Tier2
	}
	return s.deps.Cfg.Tier1
}

func (s *Scanner) remainingSlots(tier, executedToday int) int {
	slots := s.tierConfig(tier).DailyCap - executedToday
	if slots < 0 {
		return 0
	}
	return slots
}

func (s *Scanner) bankroll(pf domain.Portfolio) float64 {
	if pf.TotalEquity > 0 {
		return pf.TotalEquity
	}
	return s.deps.Cfg.Bankroll
}

func (s *Scanner) addCost(ctx context.Context, date, service string, amount float64) {
	if amount <= 0 {
		return
	}
	if err := s.deps.Store.AddAPICost(ctx, date, service, amount); err != nil {
		s.log.Warn("api cost not recorded", "service", service, "error", err)
	}
}

// setMode registra el modo operativo cuando cambia (o cambia el día).
func (s *Scanner) setMode(ctx context.Context, date, mode, reason string) {
	s.mu.Lock()
	changed := s.mode != mode || s.modeDate != date
	s.mode = mode
	s.modeDate = date
	s.mu.Unlock()

	if !changed {
		return
	}
	if err := s.deps.Store.LogDailyMode(ctx, date, mode, reason); err != nil {
		s.log.Warn("mode change not recorded", "mode", mode, "error", err)
	}
	s.log.Info("operating mode changed", "mode", mode, "reason", reason)
}

func (s *Scanner) markScanned(now time.Time) {
	s.mu.Lock()
	s.lastScan = now
	s.mu.Unlock()
}

func clusterExposure(pf domain.Portfolio) map[string]float64 {
	out := make(map[string]float64)
	for _, pos := range pf.OpenPositions {
		if pos.MarketClusterID != "" {
			out[pos.MarketClusterID] += pos.SizeUSD
		}
	}
	return out
}

// headlineOnly indica si toda la evidencia externa son titulares sin cuerpo.
func headlineOnly(signals []domain.Signal) bool {
	external := 0
	for _, sig := range signals {
		if sig.SourceKind == domain.SourceMarketData {
			continue
		}
		external++
		if !sig.HeadlineOnly {
			return false
		}
	}
	return external > 0
}
