package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
	"github.com/alejandrodnm/predictor/internal/learning"
	"github.com/alejandrodnm/predictor/internal/ports"
)

// Resolver detecta mercados resueltos, liquida posiciones y alimenta el
// feedback de aprendizaje. También mantiene el movimiento adverso no
// realizado de las posiciones abiertas.
type Resolver struct {
	store    ports.Storage
	markets  ports.MarketSource
	learning *learning.State
	log      *slog.Logger
	now      func() time.Time
}

// NewResolver crea el resolver.
func NewResolver(store ports.Storage, markets ports.MarketSource, state *learning.State, log *slog.Logger) *Resolver {
	return &Resolver{store: store, markets: markets, learning: state, log: log, now: time.Now}
}

// Poll revisa todos los registros sin resolver, ejecutados y observados.
// Un fallo en un mercado no interrumpe el resto.
func (r *Resolver) Poll(ctx context.Context) error {
	executed, err := r.store.UnresolvedExecuted(ctx)
	if err != nil {
		return fmt.Errorf("engine.Poll: load executed: %w", err)
	}
	observed, err := r.store.UnresolvedObserved(ctx)
	if err != nil {
		return fmt.Errorf("engine.Poll: load observed: %w", err)
	}

	for _, rec := range append(executed, observed...) {
		if err := r.resolveOne(ctx, rec); err != nil {
			r.log.Warn("resolution check failed", "record_id", rec.RecordID, "market_id", rec.MarketID, "error", err)
		}
	}
	return nil
}

func (r *Resolver) resolveOne(ctx context.Context, rec domain.TradeRecord) error {
	m, err := r.markets.FetchMarket(ctx, rec.MarketID)
	if err != nil {
		return fmt.Errorf("fetch market: %w", err)
	}

	outcome, resolved := r.outcomeFor(rec, m)
	if !resolved {
		return nil
	}

	now := r.now()
	brierRaw, brierAdj := rec.BrierScores(outcome)
	rec.ActualOutcome = &outcome
	rec.BrierRaw = &brierRaw
	rec.BrierAdjusted = &brierAdj
	rec.ResolvedAt = &now
	rec.PnL = r.pnlFor(rec, outcome)

	if err := r.learning.OnResolved(ctx, rec, now); err != nil {
		return err
	}

	if rec.IsExecuted() {
		if err := r.settlePosition(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// outcomeFor determina el outcome binario. Un crypto_15m pasado su momento
// de resolución se resuelve por el precio actual (YES si > 0.5) aunque la
// API todavía no lo marque como resuelto.
func (r *Resolver) outcomeFor(rec domain.TradeRecord, m domain.Market) (outcome, resolved bool) {
	if m.Resolved {
		return m.ResolvedYes(), true
	}
	if rec.MarketType == domain.TypeCrypto15m && r.now().After(rec.ResolutionTime) {
		return m.YesPrice > 0.5, true
	}
	return false, false
}

// pnlFor calcula el PnL realizado (o contrafactual para skips): un contrato
// binario paga $1, así que ganar size USD a precio p devuelve size/p - size.
func (r *Resolver) pnlFor(rec domain.TradeRecord, outcome bool) float64 {
	size := rec.PositionSizeUSD
	price := rec.MarketPriceAtDecision
	if size <= 0 || price <= 0 {
		return 0
	}

	var won bool
	if rec.IsExecuted() {
		won = (rec.Action == domain.SideBuyYes) == outcome
	} else {
		// Dirección hipotética del skip observado.
		won = (rec.AdjustedProbability > 0.5) == outcome
	}
	if won {
		return size/price - size
	}
	return -size
}

func (r *Resolver) settlePosition(ctx context.Context, rec domain.TradeRecord) error {
	pf, ok, err := r.store.LoadPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	if !ok {
		return fmt.Errorf("portfolio row missing")
	}
	pf.ApplyResolution(rec.MarketID, rec.PositionSizeUSD, rec.PnL)
	if err := r.store.SavePortfolio(ctx, pf); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	r.log.Info("position settled",
		"market_id", rec.MarketID,
		"action", rec.Action,
		"pnl", rec.PnL,
		"equity", pf.TotalEquity,
	)
	return nil
}

// SweepAdverse refresca el movimiento adverso no realizado de cada posición
// abierta. Se persiste siempre el valor actual, incluido cero: un retroceso
// favorable corta la racha de cooldown.
func (r *Resolver) SweepAdverse(ctx context.Context) error {
	open, err := r.store.UnresolvedExecuted(ctx)
	if err != nil {
		return fmt.Errorf("engine.SweepAdverse: %w", err)
	}

	for _, rec := range open {
		m, err := r.markets.FetchMarket(ctx, rec.MarketID)
		if err != nil {
			r.log.Warn("adverse sweep fetch failed", "market_id", rec.MarketID, "error", err)
			continue
		}
		current := m.YesPrice
		if rec.Action == domain.SideBuyNo {
			current = m.NoPrice
		}
		entry := rec.MarketPriceAtDecision
		move := 0.0
		if entry > 0 && current < entry {
			move = (entry - current) / entry
		}
		if err := r.store.UpdateAdverseMove(ctx, rec.RecordID, move); err != nil {
			r.log.Warn("adverse sweep persist failed", "record_id", rec.RecordID, "error", err)
		}
	}
	return nil
}
