package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// SavePortfolio persiste la cartera en su fila única.
func (s *SQLiteStorage) SavePortfolio(ctx context.Context, p domain.Portfolio) error {
	positions, err := json.Marshal(p.OpenPositions)
	if err != nil {
		return fmt.Errorf("storage.SavePortfolio: marshal positions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO portfolio (id, cash, total_equity, total_pnl, peak_equity, max_drawdown, open_positions)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cash = excluded.cash,
			total_equity = excluded.total_equity,
			total_pnl = excluded.total_pnl,
			peak_equity = excluded.peak_equity,
			max_drawdown = excluded.max_drawdown,
			open_positions = excluded.open_positions`,
		p.Cash, p.TotalEquity, p.TotalPnL, p.PeakEquity, p.MaxDrawdown, string(positions),
	)
	if err != nil {
		return fmt.Errorf("storage.SavePortfolio: %w", err)
	}
	return nil
}

// LoadPortfolio devuelve la cartera persistida, si existe.
func (s *SQLiteStorage) LoadPortfolio(ctx context.Context) (domain.Portfolio, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cash, total_equity, total_pnl, peak_equity, max_drawdown, open_positions
		FROM portfolio WHERE id = 1`)

	var p domain.Portfolio
	var positions string
	err := row.Scan(&p.Cash, &p.TotalEquity, &p.TotalPnL, &p.PeakEquity, &p.MaxDrawdown, &positions)
	if err == sql.ErrNoRows {
		return domain.Portfolio{}, false, nil
	}
	if err != nil {
		return domain.Portfolio{}, false, fmt.Errorf("storage.LoadPortfolio: %w", err)
	}
	if err := json.Unmarshal([]byte(positions), &p.OpenPositions); err != nil {
		return domain.Portfolio{}, false, fmt.Errorf("storage.LoadPortfolio: positions: %w", err)
	}
	return p, true, nil
}

// AddAPICost acumula el gasto del servicio en la fecha dada.
func (s *SQLiteStorage) AddAPICost(ctx context.Context, date, service string, amountUSD float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_costs (date, service, amount_usd) VALUES (?, ?, ?)
		ON CONFLICT(date, service) DO UPDATE SET amount_usd = amount_usd + excluded.amount_usd`,
		date, service, amountUSD,
	)
	if err != nil {
		return fmt.Errorf("storage.AddAPICost: %s/%s: %w", date, service, err)
	}
	return nil
}

// APICostForDate devuelve el gasto total del día en todos los servicios.
func (s *SQLiteStorage) APICostForDate(ctx context.Context, date string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_usd), 0) FROM api_costs WHERE date = ?`, date).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("storage.APICostForDate: %s: %w", date, err)
	}
	return total, nil
}

// SaveParseFailure guarda la respuesta cruda que no se pudo parsear.
func (s *SQLiteStorage) SaveParseFailure(ctx context.Context, marketID, raw string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parse_failures (market_id, raw_response, occurred_at) VALUES (?, ?, ?)`,
		marketID, raw, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveParseFailure: %s: %w", marketID, err)
	}
	return nil
}

// LogDailyMode registra el modo operativo del día y su motivo.
func (s *SQLiteStorage) LogDailyMode(ctx context.Context, date, mode, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_mode_log (date, mode, reason, logged_at) VALUES (?, ?, ?, ?)`,
		date, mode, reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.LogDailyMode: %s: %w", date, err)
	}
	return nil
}

// StatsForDate agrega la actividad del día para el resumen diario.
func (s *SQLiteStorage) StatsForDate(ctx context.Context, date string) (domain.DailyStats, error) {
	stats := domain.DailyStats{Date: date, Mode: "active"}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN action != 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END)
		FROM trade_records WHERE date(timestamp) = ? AND voided = 0`, date).
		Scan(&stats.TradesExecuted, &stats.Skips)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("storage.StatsForDate: decisions: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(pnl), 0)
		FROM trade_records
		WHERE date(resolved_at) = ? AND action != 'SKIP' AND voided = 0`, date).
		Scan(&stats.TradesResolved, &stats.RealizedPnL)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("storage.StatsForDate: resolutions: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trade_records
		WHERE action != 'SKIP' AND resolved_at IS NULL AND voided = 0`).
		Scan(&stats.OpenTrades)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("storage.StatsForDate: open trades: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parse_failures WHERE date(occurred_at) = ?`, date).
		Scan(&stats.ParseFailures)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("storage.StatsForDate: parse failures: %w", err)
	}

	cost, err := s.APICostForDate(ctx, date)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("storage.StatsForDate: %w", err)
	}
	stats.APICostUSD = cost

	var mode string
	err = s.db.QueryRowContext(ctx, `
		SELECT mode FROM daily_mode_log WHERE date = ?
		ORDER BY logged_at DESC LIMIT 1`, date).Scan(&mode)
	if err != nil && err != sql.ErrNoRows {
		return domain.DailyStats{}, fmt.Errorf("storage.StatsForDate: mode: %w", err)
	}
	if err == nil {
		stats.Mode = mode
	}

	if p, ok, err := s.LoadPortfolio(ctx); err != nil {
		return domain.DailyStats{}, fmt.Errorf("storage.StatsForDate: %w", err)
	} else if ok {
		stats.Bankroll = p.TotalEquity
		stats.OpenExposure = p.TotalExposure()
	}
	return stats, nil
}
