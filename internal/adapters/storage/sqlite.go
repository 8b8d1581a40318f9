// Package storage implementa ports.Storage sobre SQLite (pure Go, sin CGo).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS experiment_runs (
    run_id              TEXT PRIMARY KEY,
    started_at          DATETIME NOT NULL,
    ended_at            DATETIME,
    config_snapshot     TEXT NOT NULL DEFAULT '{}',
    description         TEXT NOT NULL DEFAULT '',
    model_used          TEXT NOT NULL,
    include_in_learning INTEGER NOT NULL DEFAULT 1,
    total_trades        INTEGER NOT NULL DEFAULT 0,
    total_pnl           REAL NOT NULL DEFAULT 0,
    avg_brier           REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS model_swaps (
    id                     INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp              DATETIME NOT NULL,
    old_model              TEXT NOT NULL,
    new_model              TEXT NOT NULL,
    reason                 TEXT NOT NULL DEFAULT '',
    experiment_run_started TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_records (
    record_id                TEXT PRIMARY KEY,
    experiment_run           TEXT NOT NULL REFERENCES experiment_runs(run_id),
    timestamp                DATETIME NOT NULL,
    model_used               TEXT NOT NULL DEFAULT '',
    market_id                TEXT NOT NULL,
    market_question          TEXT NOT NULL DEFAULT '',
    market_type              TEXT NOT NULL,
    resolution_window_hours  REAL NOT NULL DEFAULT 0,
    resolution_time          DATETIME,
    tier                     INTEGER NOT NULL DEFAULT 1,
    raw_probability          REAL NOT NULL DEFAULT 0,
    raw_confidence           REAL NOT NULL DEFAULT 0,
    reasoning                TEXT NOT NULL DEFAULT '',
    signal_tags              TEXT NOT NULL DEFAULT '[]',
    headline_only            INTEGER NOT NULL DEFAULT 0,
    calibration_adjustment   REAL NOT NULL DEFAULT 0,
    market_type_adjustment   REAL NOT NULL DEFAULT 0,
    signal_weight_adjustment REAL NOT NULL DEFAULT 0,
    adjusted_probability     REAL NOT NULL DEFAULT 0,
    adjusted_confidence      REAL NOT NULL DEFAULT 0,
    market_price             REAL NOT NULL DEFAULT 0,
    order_book_depth         REAL NOT NULL DEFAULT 0,
    fee_rate                 REAL NOT NULL DEFAULT 0,
    calculated_edge          REAL NOT NULL DEFAULT 0,
    trade_score              REAL NOT NULL DEFAULT 0,
    action                   TEXT NOT NULL,
    skip_reason              TEXT NOT NULL DEFAULT '',
    position_size            REAL NOT NULL DEFAULT 0,
    kelly_fraction           REAL NOT NULL DEFAULT 0,
    market_cluster_id        TEXT NOT NULL DEFAULT '',
    actual_outcome           INTEGER,
    pnl                      REAL NOT NULL DEFAULT 0,
    brier_raw                REAL,
    brier_adjusted           REAL,
    resolved_at              DATETIME,
    unrealized_adverse_move  REAL,
    voided                   INTEGER NOT NULL DEFAULT 0,
    void_reason              TEXT NOT NULL DEFAULT ''
);

-- Índices parciales: el poller solo mira lo no resuelto.
CREATE INDEX IF NOT EXISTS idx_trades_unresolved
    ON trade_records(timestamp) WHERE actual_outcome IS NULL;
CREATE INDEX IF NOT EXISTS idx_trades_headline
    ON trade_records(market_id) WHERE headline_only = 1;
CREATE INDEX IF NOT EXISTS idx_trades_resolved_at
    ON trade_records(resolved_at) WHERE resolved_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS calibration_state (
    bucket_lo REAL NOT NULL,
    bucket_hi REAL NOT NULL,
    alpha     REAL NOT NULL,
    beta      REAL NOT NULL,
    PRIMARY KEY (bucket_lo, bucket_hi)
);

CREATE TABLE IF NOT EXISTS market_type_performance (
    market_type        TEXT PRIMARY KEY,
    total_trades       INTEGER NOT NULL DEFAULT 0,
    total_pnl          REAL NOT NULL DEFAULT 0,
    brier_scores       TEXT NOT NULL DEFAULT '[]',
    observed_skips     INTEGER NOT NULL DEFAULT 0,
    counterfactual_pnl REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS signal_trackers (
    source_tier     TEXT NOT NULL,
    info_type       TEXT NOT NULL,
    market_type     TEXT NOT NULL,
    present_winning INTEGER NOT NULL DEFAULT 0,
    present_losing  INTEGER NOT NULL DEFAULT 0,
    absent_winning  INTEGER NOT NULL DEFAULT 0,
    absent_losing   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_tier, info_type, market_type)
);

CREATE TABLE IF NOT EXISTS portfolio (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    cash           REAL NOT NULL,
    total_equity   REAL NOT NULL,
    total_pnl      REAL NOT NULL DEFAULT 0,
    peak_equity    REAL NOT NULL,
    max_drawdown   REAL NOT NULL DEFAULT 0,
    open_positions TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS api_costs (
    date       TEXT NOT NULL,
    service    TEXT NOT NULL,
    amount_usd REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (date, service)
);

CREATE TABLE IF NOT EXISTS daily_mode_log (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    date      TEXT NOT NULL,
    mode      TEXT NOT NULL,
    reason    TEXT NOT NULL DEFAULT '',
    logged_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS parse_failures (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id    TEXT NOT NULL,
    raw_response TEXT NOT NULL DEFAULT '',
    occurred_at  DATETIME NOT NULL
);
`

// SQLiteStorage implementa ports.Storage.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// SQLite con una sola conexión evita SQLITE_BUSY bajo concurrencia.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

// Close cierra la conexión.
func (s *SQLiteStorage) Close() error { return s.db.Close() }

// ApplySchema crea el esquema y registra la versión.
func (s *SQLiteStorage) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage.ApplySchema: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return fmt.Errorf("storage.ApplySchema: version check: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("storage.ApplySchema: version insert: %w", err)
		}
	}
	return nil
}

// StartExperiment inserta un run nuevo.
func (s *SQLiteStorage) StartExperiment(ctx context.Context, run domain.ExperimentRun) error {
	snap, err := json.Marshal(run.ConfigSnapshot)
	if err != nil {
		return fmt.Errorf("storage.StartExperiment: marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO experiment_runs (run_id, started_at, config_snapshot, description, model_used, include_in_learning)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.UTC(), string(snap), run.Description, run.ModelUsed, boolToInt(run.IncludeInLearning),
	)
	if err != nil {
		return fmt.Errorf("storage.StartExperiment: %s: %w", run.RunID, err)
	}
	return nil
}

// EndExperiment cierra el run y congela sus estadísticas finales.
func (s *SQLiteStorage) EndExperiment(ctx context.Context, runID string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE experiment_runs SET
			ended_at = ?,
			total_trades = (SELECT COUNT(*) FROM trade_records WHERE experiment_run = ? AND action != 'SKIP'),
			total_pnl = (SELECT COALESCE(SUM(pnl), 0) FROM trade_records
			             WHERE experiment_run = ? AND action != 'SKIP' AND actual_outcome IS NOT NULL),
			avg_brier = (SELECT COALESCE(AVG(brier_adjusted), 0) FROM trade_records
			             WHERE experiment_run = ? AND brier_adjusted IS NOT NULL)
		WHERE run_id = ? AND ended_at IS NULL`,
		endedAt.UTC(), runID, runID, runID, runID,
	)
	if err != nil {
		return fmt.Errorf("storage.EndExperiment: %s: %w", runID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("storage.EndExperiment: %s: no open run with that id", runID)
	}
	return nil
}

// ActiveExperiment devuelve el run abierto, si existe.
func (s *SQLiteStorage) ActiveExperiment(ctx context.Context) (domain.ExperimentRun, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, config_snapshot, description, model_used, include_in_learning
		FROM experiment_runs WHERE ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`)

	var run domain.ExperimentRun
	var snap string
	var include int
	err := row.Scan(&run.RunID, &run.StartedAt, &snap, &run.Description, &run.ModelUsed, &include)
	if err == sql.ErrNoRows {
		return domain.ExperimentRun{}, false, nil
	}
	if err != nil {
		return domain.ExperimentRun{}, false, fmt.Errorf("storage.ActiveExperiment: %w", err)
	}
	run.IncludeInLearning = include == 1
	if err := json.Unmarshal([]byte(snap), &run.ConfigSnapshot); err != nil {
		return domain.ExperimentRun{}, false, fmt.Errorf("storage.ActiveExperiment: snapshot: %w", err)
	}
	return run, true, nil
}

// SaveModelSwap registra el evento de cambio de modelo.
func (s *SQLiteStorage) SaveModelSwap(ctx context.Context, ev domain.ModelSwapEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_swaps (timestamp, old_model, new_model, reason, experiment_run_started)
		VALUES (?, ?, ?, ?, ?)`,
		ev.Timestamp.UTC(), ev.OldModel, ev.NewModel, ev.Reason, ev.ExperimentRunStarted,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveModelSwap: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
