package learning

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
	"github.com/alejandrodnm/predictor/internal/ports"
)

// State es el dueño del snapshot de aprendizaje en memoria. Todas las
// lecturas y mutaciones pasan por aquí; la persistencia es write-through
// contra el storage.
type State struct {
	store ports.Storage
	log   *slog.Logger

	mu   sync.RWMutex
	snap *domain.LearningSnapshot
}

// NewState crea el manager sin estado cargado; llamar a Load antes de usar.
func NewState(store ports.Storage, log *slog.Logger) *State {
	return &State{store: store, log: log, snap: domain.NewLearningSnapshot()}
}

// Load carga el snapshot persistido. Un storage vacío deja los priors.
func (s *State) Load(ctx context.Context) error {
	snap, err := s.store.LoadLearningSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("learning.Load: %w", err)
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Adjust ejecuta el pipeline de ajuste sobre un estimate crudo.
func (s *State) Adjust(est domain.Estimate, mt domain.MarketType, signals []domain.Signal, now time.Time) Adjustment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Adjust(s.snap, est, mt, signals, now)
}

// MarketTypeDisabled indica si el tipo está deshabilitado por rendimiento.
func (s *State) MarketTypeDisabled(mt domain.MarketType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.snap.Perfs[mt]
	return ok && p.ShouldDisable()
}

// OnResolved incorpora un registro ya resuelto (ActualOutcome no nil) a las
// tres capas y persiste registro y snapshot en una transacción.
func (s *State) OnResolved(ctx context.Context, rec domain.TradeRecord, now time.Time) error {
	if !rec.IsResolved() {
		return fmt.Errorf("learning.OnResolved: record %s has no outcome", rec.RecordID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ApplyResolved(s.snap, rec, *rec.ActualOutcome, now)
	if err := s.store.ApplyResolutionFeedback(ctx, rec, s.snap); err != nil {
		return fmt.Errorf("learning.OnResolved: persist: %w", err)
	}
	s.log.Info("resolution feedback applied",
		"record_id", rec.RecordID,
		"market_id", rec.MarketID,
		"outcome", *rec.ActualOutcome,
		"pnl", rec.PnL,
	)
	return nil
}
