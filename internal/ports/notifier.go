package ports

import (
	"github.com/alejandrodnm/predictor/internal/domain"
)

// Notifier presenta la actividad del bot al operador.
type Notifier interface {
	// ScanSummary imprime el resultado de un ciclo de escaneo.
	ScanSummary(tier string, candidates []domain.TradeCandidate)

	// DailySummary imprime el resumen diario.
	DailySummary(stats domain.DailyStats)
}
