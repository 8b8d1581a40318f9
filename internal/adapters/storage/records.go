package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const tradeColumns = `
	record_id, experiment_run, timestamp, model_used,
	market_id, market_question, market_type, resolution_window_hours, resolution_time, tier,
	raw_probability, raw_confidence, reasoning, signal_tags, headline_only,
	calibration_adjustment, market_type_adjustment, signal_weight_adjustment,
	adjusted_probability, adjusted_confidence,
	market_price, order_book_depth, fee_rate, calculated_edge, trade_score,
	action, skip_reason, position_size, kelly_fraction, market_cluster_id,
	actual_outcome, pnl, brier_raw, brier_adjusted, resolved_at,
	unrealized_adverse_move, voided, void_reason`

// tradeColumnsT es tradeColumns calificado con el alias t, para consultas con JOIN.
var tradeColumnsT = "t." + strings.ReplaceAll(strings.Join(strings.Fields(tradeColumns), " "), ", ", ", t.")

// SaveTradeRecord inserta el registro de auditoría de una decisión.
func (s *SQLiteStorage) SaveTradeRecord(ctx context.Context, rec domain.TradeRecord) error {
	tags, err := json.Marshal(rec.SignalTags)
	if err != nil {
		return fmt.Errorf("storage.SaveTradeRecord: marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trade_records (`+tradeColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RecordID, rec.ExperimentRun, rec.Timestamp.UTC(), rec.ModelUsed,
		rec.MarketID, rec.MarketQuestion, string(rec.MarketType), rec.ResolutionWindowHours, nullTime(rec.ResolutionTime), rec.Tier,
		rec.RawProbability, rec.RawConfidence, rec.Reasoning, string(tags), boolToInt(rec.HeadlineOnly),
		rec.CalibrationAdjustment, rec.MarketTypeAdjustment, rec.SignalWeightAdjustment,
		rec.AdjustedProbability, rec.AdjustedConfidence,
		rec.MarketPriceAtDecision, rec.OrderBookDepthUSD, rec.FeeRate, rec.CalculatedEdge, rec.TradeScore,
		string(rec.Action), rec.SkipReason, rec.PositionSizeUSD, rec.KellyFractionUsed, rec.MarketClusterID,
		nullBool(rec.ActualOutcome), rec.PnL, rec.BrierRaw, rec.BrierAdjusted, rec.ResolvedAt,
		rec.UnrealizedAdverseMove, boolToInt(rec.Voided), rec.VoidReason,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTradeRecord: %s: %w", rec.RecordID, err)
	}
	return nil
}

// GetTradeRecord devuelve un registro por ID.
func (s *SQLiteStorage) GetTradeRecord(ctx context.Context, tradeID string) (domain.TradeRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trade_records WHERE record_id = ?`, tradeID)
	rec, err := scanTradeRecord(row)
	if err == sql.ErrNoRows {
		return domain.TradeRecord{}, false, nil
	}
	if err != nil {
		return domain.TradeRecord{}, false, fmt.Errorf("storage.GetTradeRecord: %s: %w", tradeID, err)
	}
	return rec, true, nil
}

// UnresolvedExecuted devuelve los trades ejecutados sin resolver.
func (s *SQLiteStorage) UnresolvedExecuted(ctx context.Context) ([]domain.TradeRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+tradeColumns+` FROM trade_records
		WHERE actual_outcome IS NULL AND action != 'SKIP' AND voided = 0
		ORDER BY timestamp ASC`)
}

// UnresolvedObserved devuelve los skips observados sin resolver.
func (s *SQLiteStorage) UnresolvedObserved(ctx context.Context) ([]domain.TradeRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+tradeColumns+` FROM trade_records
		WHERE actual_outcome IS NULL AND action = 'SKIP' AND voided = 0
		ORDER BY timestamp ASC`)
}

// ResolvedBetween devuelve los registros resueltos en el intervalo.
func (s *SQLiteStorage) ResolvedBetween(ctx context.Context, from, to time.Time) ([]domain.TradeRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+tradeColumns+` FROM trade_records
		WHERE resolved_at IS NOT NULL AND resolved_at >= ? AND resolved_at <= ? AND voided = 0
		ORDER BY resolved_at ASC`, from.UTC(), to.UTC())
}

// CountExecutedForDate cuenta los trades ejecutados del tier en la fecha.
func (s *SQLiteStorage) CountExecutedForDate(ctx context.Context, tier int, date string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trade_records
		WHERE action != 'SKIP' AND tier = ? AND date(timestamp) = ?`, tier, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage.CountExecutedForDate: %w", err)
	}
	return n, nil
}

// UpdateAdverseMove persiste la fracción adversa actual de una posición.
func (s *SQLiteStorage) UpdateAdverseMove(ctx context.Context, tradeID string, move float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE trade_records SET unrealized_adverse_move = ? WHERE record_id = ?`, move, tradeID)
	if err != nil {
		return fmt.Errorf("storage.UpdateAdverseMove: %s: %w", tradeID, err)
	}
	return nil
}

// MarkVoided anula un registro. Falla si no existe.
func (s *SQLiteStorage) MarkVoided(ctx context.Context, tradeID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trade_records SET voided = 1, void_reason = ? WHERE record_id = ?`, reason, tradeID)
	if err != nil {
		return fmt.Errorf("storage.MarkVoided: %s: %w", tradeID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("storage.MarkVoided: %s: record not found", tradeID)
	}
	return nil
}

// ApplyResolutionFeedback actualiza el registro resuelto y el snapshot de
// aprendizaje en una sola transacción.
func (s *SQLiteStorage) ApplyResolutionFeedback(ctx context.Context, rec domain.TradeRecord, snap *domain.LearningSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.ApplyResolutionFeedback: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE trade_records SET
			actual_outcome = ?, pnl = ?, brier_raw = ?, brier_adjusted = ?,
			resolved_at = ?, unrealized_adverse_move = NULL
		WHERE record_id = ?`,
		nullBool(rec.ActualOutcome), rec.PnL, rec.BrierRaw, rec.BrierAdjusted,
		rec.ResolvedAt, rec.RecordID,
	)
	if err != nil {
		return fmt.Errorf("storage.ApplyResolutionFeedback: update record: %w", err)
	}

	if err := saveSnapshotTx(ctx, tx, snap); err != nil {
		return fmt.Errorf("storage.ApplyResolutionFeedback: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.ApplyResolutionFeedback: commit: %w", err)
	}
	return nil
}

// ResolvedForRebuild devuelve los registros resueltos no anulados de runs
// incluidos en aprendizaje, en orden ascendente de decisión.
func (s *SQLiteStorage) ResolvedForRebuild(ctx context.Context) ([]domain.TradeRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+tradeColumnsT+` FROM trade_records t
		JOIN experiment_runs r ON r.run_id = t.experiment_run
		WHERE t.actual_outcome IS NOT NULL AND t.voided = 0 AND r.include_in_learning = 1
		ORDER BY t.timestamp ASC`)
}

func (s *SQLiteStorage) queryRecords(ctx context.Context, query string, args ...any) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.queryRecords: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		rec, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.queryRecords: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTradeRecord(row rowScanner) (domain.TradeRecord, error) {
	var rec domain.TradeRecord
	var mtype, action, tags string
	var headline, voided int
	var outcome sql.NullBool
	var resTime, resolvedAt sql.NullTime
	var brierRaw, brierAdj, adverse sql.NullFloat64

	err := row.Scan(
		&rec.RecordID, &rec.ExperimentRun, &rec.Timestamp, &rec.ModelUsed,
		&rec.MarketID, &rec.MarketQuestion, &mtype, &rec.ResolutionWindowHours, &resTime, &rec.Tier,
		&rec.RawProbability, &rec.RawConfidence, &rec.Reasoning, &tags, &headline,
		&rec.CalibrationAdjustment, &rec.MarketTypeAdjustment, &rec.SignalWeightAdjustment,
		&rec.AdjustedProbability, &rec.AdjustedConfidence,
		&rec.MarketPriceAtDecision, &rec.OrderBookDepthUSD, &rec.FeeRate, &rec.CalculatedEdge, &rec.TradeScore,
		&action, &rec.SkipReason, &rec.PositionSizeUSD, &rec.KellyFractionUsed, &rec.MarketClusterID,
		&outcome, &rec.PnL, &brierRaw, &brierAdj, &resolvedAt,
		&adverse, &voided, &rec.VoidReason,
	)
	if err != nil {
		return domain.TradeRecord{}, err
	}

	rec.MarketType = domain.MarketType(mtype)
	rec.Action = domain.Side(action)
	rec.HeadlineOnly = headline == 1
	rec.Voided = voided == 1
	if err := json.Unmarshal([]byte(tags), &rec.SignalTags); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("unmarshal signal_tags: %w", err)
	}
	if outcome.Valid {
		v := outcome.Bool
		rec.ActualOutcome = &v
	}
	if resTime.Valid {
		rec.ResolutionTime = resTime.Time
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		rec.ResolvedAt = &t
	}
	if brierRaw.Valid {
		v := brierRaw.Float64
		rec.BrierRaw = &v
	}
	if brierAdj.Valid {
		v := brierAdj.Float64
		rec.BrierAdjusted = &v
	}
	if adverse.Valid {
		v := adverse.Float64
		rec.UnrealizedAdverseMove = &v
	}
	return rec, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}
