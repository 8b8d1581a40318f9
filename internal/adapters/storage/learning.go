package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// LoadLearningSnapshot reconstruye el snapshot completo desde las tres
// tablas. Tablas vacías devuelven priors.
func (s *SQLiteStorage) LoadLearningSnapshot(ctx context.Context) (*domain.LearningSnapshot, error) {
	snap := domain.NewLearningSnapshot()

	rows, err := s.db.QueryContext(ctx, `SELECT bucket_lo, bucket_hi, alpha, beta FROM calibration_state`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadLearningSnapshot: calibration: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lo, hi, alpha, beta float64
		if err := rows.Scan(&lo, &hi, &alpha, &beta); err != nil {
			return nil, fmt.Errorf("storage.LoadLearningSnapshot: calibration scan: %w", err)
		}
		for i := range snap.Buckets {
			if snap.Buckets[i].Lo == lo && snap.Buckets[i].Hi == hi {
				snap.Buckets[i].Alpha = alpha
				snap.Buckets[i].Beta = beta
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.LoadLearningSnapshot: calibration rows: %w", err)
	}

	perfRows, err := s.db.QueryContext(ctx, `
		SELECT market_type, total_trades, total_pnl, brier_scores, observed_skips, counterfactual_pnl
		FROM market_type_performance`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadLearningSnapshot: performance: %w", err)
	}
	defer perfRows.Close()
	for perfRows.Next() {
		var mtype, briers string
		p := &domain.MarketTypePerformance{}
		if err := perfRows.Scan(&mtype, &p.TotalTrades, &p.TotalPnL, &briers, &p.TotalObservedSkips, &p.CounterfactualPnL); err != nil {
			return nil, fmt.Errorf("storage.LoadLearningSnapshot: performance scan: %w", err)
		}
		if err := json.Unmarshal([]byte(briers), &p.BrierScores); err != nil {
			return nil, fmt.Errorf("storage.LoadLearningSnapshot: brier_scores: %w", err)
		}
		p.MarketType = domain.MarketType(mtype)
		snap.Perfs[p.MarketType] = p
	}
	if err := perfRows.Err(); err != nil {
		return nil, fmt.Errorf("storage.LoadLearningSnapshot: performance rows: %w", err)
	}

	trackRows, err := s.db.QueryContext(ctx, `
		SELECT source_tier, info_type, market_type, present_winning, present_losing, absent_winning, absent_losing
		FROM signal_trackers`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadLearningSnapshot: trackers: %w", err)
	}
	defer trackRows.Close()
	for trackRows.Next() {
		var tier, info, mtype string
		t := &domain.SignalTracker{}
		if err := trackRows.Scan(&tier, &info, &mtype, &t.PresentWinning, &t.PresentLosing, &t.AbsentWinning, &t.AbsentLosing); err != nil {
			return nil, fmt.Errorf("storage.LoadLearningSnapshot: tracker scan: %w", err)
		}
		t.SourceTier = domain.SourceTier(tier)
		t.InfoType = domain.InfoType(info)
		t.MarketType = domain.MarketType(mtype)
		snap.Trackers[domain.TrackerKey{SourceTier: t.SourceTier, InfoType: t.InfoType, MarketType: t.MarketType}] = t
	}
	if err := trackRows.Err(); err != nil {
		return nil, fmt.Errorf("storage.LoadLearningSnapshot: tracker rows: %w", err)
	}

	return snap, nil
}

// SaveLearningSnapshot persiste el snapshot completo en una transacción.
func (s *SQLiteStorage) SaveLearningSnapshot(ctx context.Context, snap *domain.LearningSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveLearningSnapshot: begin: %w", err)
	}
	defer tx.Rollback()

	if err := saveSnapshotTx(ctx, tx, snap); err != nil {
		return fmt.Errorf("storage.SaveLearningSnapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveLearningSnapshot: commit: %w", err)
	}
	return nil
}

// saveSnapshotTx escribe las tres capas dentro de la transacción dada.
// Borra y reescribe: el snapshot siempre es el estado completo.
func saveSnapshotTx(ctx context.Context, tx *sql.Tx, snap *domain.LearningSnapshot) error {
	for _, table := range []string{"calibration_state", "market_type_performance", "signal_trackers"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, b := range snap.Buckets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO calibration_state (bucket_lo, bucket_hi, alpha, beta) VALUES (?, ?, ?, ?)`,
			b.Lo, b.Hi, b.Alpha, b.Beta); err != nil {
			return fmt.Errorf("insert calibration: %w", err)
		}
	}

	for _, p := range snap.Perfs {
		briers, err := json.Marshal(p.BrierScores)
		if err != nil {
			return fmt.Errorf("marshal brier_scores: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO market_type_performance
				(market_type, total_trades, total_pnl, brier_scores, observed_skips, counterfactual_pnl)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(p.MarketType), p.TotalTrades, p.TotalPnL, string(briers), p.TotalObservedSkips, p.CounterfactualPnL); err != nil {
			return fmt.Errorf("insert performance: %w", err)
		}
	}

	for _, t := range snap.Trackers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signal_trackers
				(source_tier, info_type, market_type, present_winning, present_losing, absent_winning, absent_losing)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(t.SourceTier), string(t.InfoType), string(t.MarketType),
			t.PresentWinning, t.PresentLosing, t.AbsentWinning, t.AbsentLosing); err != nil {
			return fmt.Errorf("insert tracker: %w", err)
		}
	}
	return nil
}
