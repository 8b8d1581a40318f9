package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// Storage persiste todo el estado del bot en SQLite.
type Storage interface {
	// ApplySchema crea o migra el esquema a la versión actual.
	ApplySchema(ctx context.Context) error

	// Experimentos
	StartExperiment(ctx context.Context, run domain.ExperimentRun) error
	// EndExperiment cierra el run calculando sus estadísticas finales
	// (trades, PnL, Brier medio) a partir de los registros persistidos.
	EndExperiment(ctx context.Context, runID string, endedAt time.Time) error
	ActiveExperiment(ctx context.Context) (domain.ExperimentRun, bool, error)
	SaveModelSwap(ctx context.Context, ev domain.ModelSwapEvent) error

	// Registros de trade (ejecutados y skips observados)
	SaveTradeRecord(ctx context.Context, rec domain.TradeRecord) error
	GetTradeRecord(ctx context.Context, tradeID string) (domain.TradeRecord, bool, error)
	UnresolvedExecuted(ctx context.Context) ([]domain.TradeRecord, error)
	UnresolvedObserved(ctx context.Context) ([]domain.TradeRecord, error)
	ResolvedBetween(ctx context.Context, from, to time.Time) ([]domain.TradeRecord, error)
	CountExecutedForDate(ctx context.Context, tier int, date string) (int, error)
	UpdateAdverseMove(ctx context.Context, tradeID string, move float64) error
	MarkVoided(ctx context.Context, tradeID, reason string) error

	// ApplyResolutionFeedback actualiza el registro resuelto y persiste el
	// snapshot de aprendizaje en una sola transacción.
	ApplyResolutionFeedback(ctx context.Context, rec domain.TradeRecord, snap *domain.LearningSnapshot) error

	// ResolvedForRebuild devuelve los registros resueltos no anulados de
	// runs incluidos en aprendizaje, en orden ascendente de timestamp.
	ResolvedForRebuild(ctx context.Context) ([]domain.TradeRecord, error)

	// Estado de aprendizaje
	LoadLearningSnapshot(ctx context.Context) (*domain.LearningSnapshot, error)
	SaveLearningSnapshot(ctx context.Context, snap *domain.LearningSnapshot) error

	// Portfolio
	SavePortfolio(ctx context.Context, p domain.Portfolio) error
	LoadPortfolio(ctx context.Context) (domain.Portfolio, bool, error)

	// Costes de API y fallos de parseo
	AddAPICost(ctx context.Context, date, service string, amountUSD float64) error
	APICostForDate(ctx context.Context, date string) (float64, error)
	SaveParseFailure(ctx context.Context, marketID, raw string, at time.Time) error

	// Registro diario de modo
	LogDailyMode(ctx context.Context, date, mode, reason string) error

	// StatsForDate agrega la actividad persistida del día.
	StatsForDate(ctx context.Context, date string) (domain.DailyStats, error)
}
