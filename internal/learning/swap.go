package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// Brier scores retenidos por tipo tras un model swap.
const swapBrierRetention = 15

// Swap cierra el run activo, abre el nuevo y amortigua el aprendizaje:
// la calibración vuelve a priors (mide al modelo, no al sistema), el
// historial de Brier por tipo se trunca y los trackers se conservan porque
// miden la informatividad de las fuentes, no al modelo.
func (s *State) Swap(ctx context.Context, oldRunID string, newRun domain.ExperimentRun, ev domain.ModelSwapEvent) error {
	if oldRunID != "" {
		if err := s.store.EndExperiment(ctx, oldRunID, ev.Timestamp); err != nil {
			return fmt.Errorf("learning.Swap: end run %s: %w", oldRunID, err)
		}
	}
	if err := s.store.StartExperiment(ctx, newRun); err != nil {
		return fmt.Errorf("learning.Swap: start run %s: %w", newRun.RunID, err)
	}
	if err := s.store.SaveModelSwap(ctx, ev); err != nil {
		return fmt.Errorf("learning.Swap: save swap event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snap.Buckets {
		r := domain.CalibrationRanges[i]
		s.snap.Buckets[i] = domain.NewCalibrationBucket(r[0], r[1])
	}
	for _, p := range s.snap.Perfs {
		p.TruncateBriers(swapBrierRetention)
	}

	if err := s.store.SaveLearningSnapshot(ctx, s.snap); err != nil {
		return fmt.Errorf("learning.Swap: persist snapshot: %w", err)
	}
	s.log.Info("model swap applied", "old_model", ev.OldModel, "new_model", ev.NewModel, "run_id", newRun.RunID)
	return nil
}

// Void anula un registro y reconstruye las tres capas desde cero con los
// registros resueltos no anulados, en orden ascendente de decisión.
func (s *State) Void(ctx context.Context, recordID, reason string, now time.Time) error {
	if err := s.store.MarkVoided(ctx, recordID, reason); err != nil {
		return fmt.Errorf("learning.Void: mark %s: %w", recordID, err)
	}
	if err := s.Rebuild(ctx, now); err != nil {
		return fmt.Errorf("learning.Void: %w", err)
	}
	s.log.Info("trade voided", "record_id", recordID, "reason", reason)
	return nil
}

// Rebuild reconstruye el snapshot completo desde los registros persistidos.
func (s *State) Rebuild(ctx context.Context, now time.Time) error {
	recs, err := s.store.ResolvedForRebuild(ctx)
	if err != nil {
		return fmt.Errorf("learning.Rebuild: load records: %w", err)
	}

	snap := domain.NewLearningSnapshot()
	for _, rec := range recs {
		ApplyResolved(snap, rec, *rec.ActualOutcome, now)
	}

	s.mu.Lock()
	s.snap = snap
	err = s.store.SaveLearningSnapshot(ctx, snap)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("learning.Rebuild: persist: %w", err)
	}
	s.log.Info("learning state rebuilt", "records", len(recs))
	return nil
}
