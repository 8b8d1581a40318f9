package engine

import (
	"sort"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// Razones canónicas por las que el gate bloquea la ejecución, en el orden
// exacto en que se evalúan.
const (
	GateTierDailyCap   = "tier_daily_cap_reached"
	GateDailyLoss      = "daily_loss_limit"
	GateWeeklyLoss     = "weekly_loss_limit"
	GateCooldown       = "cooldown"
	GateMaxExposure    = "max_exposure"
	GateAPIBudget      = "api_budget_exceeded"
)

// Fracción adversa no realizada a partir de la cual una posición abierta
// cuenta como evento adverso para el cooldown.
const adverseMoveThreshold = 0.10

// GateInput es el estado agregado que el gate evalúa por candidato.
type GateInput struct {
	ExecutedToday int
	TierDailyCap  int

	DailyPnL  float64
	WeeklyPnL float64
	Bankroll  float64

	DailyLossLimitPct  float64
	WeeklyLossLimitPct float64

	ConsecutiveAdverse int
	AdverseThreshold   int

	// CandidateSize es el tamaño de la posición que se quiere abrir; el
	// chequeo de exposición limita open + pending + este tamaño. Cero en
	// el chequeo de apertura de ciclo.
	CandidateSize  float64
	TotalExposure  float64
	MaxExposurePct float64

	APISpendUSD  float64
	APIBudgetUSD float64
}

// EvaluateGate devuelve la primera razón de bloqueo en orden fijo, o
// ("", true) si la ejecución está permitida. El orden importa porque la
// razón se persiste en el registro diario de modo. Los límites de pérdida
// son estrictos: en el límite exacto aún se ejecuta.
func EvaluateGate(in GateInput) (reason string, ok bool) {
	if in.ExecutedToday >= in.TierDailyCap {
		return GateTierDailyCap, false
	}
	if in.DailyPnL < -in.DailyLossLimitPct*in.Bankroll {
		return GateDailyLoss, false
	}
	if in.WeeklyPnL < -in.WeeklyLossLimitPct*in.Bankroll {
		return GateWeeklyLoss, false
	}
	if in.ConsecutiveAdverse >= in.AdverseThreshold {
		return GateCooldown, false
	}
	if in.TotalExposure+in.CandidateSize > in.MaxExposurePct*in.Bankroll {
		return GateMaxExposure, false
	}
	if in.APISpendUSD >= in.APIBudgetUSD {
		return GateAPIBudget, false
	}
	return "", true
}

// adverseEvent es una observación ordenable para el cálculo de racha.
type adverseEvent struct {
	at      time.Time
	adverse bool
}

// ConsecutiveAdverse cuenta la racha de eventos adversos dentro de la
// ventana: pérdidas resueltas y posiciones abiertas con movimiento adverso
// no realizado por encima del umbral. Un evento favorable corta la racha.
func ConsecutiveAdverse(resolved []domain.TradeRecord, open []domain.TradeRecord, windowStart time.Time) int {
	var events []adverseEvent
	for _, r := range resolved {
		if !r.IsExecuted() || r.ResolvedAt == nil || r.ResolvedAt.Before(windowStart) {
			continue
		}
		events = append(events, adverseEvent{at: *r.ResolvedAt, adverse: r.PnL < 0})
	}
	for _, r := range open {
		if !r.IsExecuted() || r.UnrealizedAdverseMove == nil || r.Timestamp.Before(windowStart) {
			continue
		}
		events = append(events, adverseEvent{
			at:      r.Timestamp,
			adverse: *r.UnrealizedAdverseMove > adverseMoveThreshold,
		})
	}

	// Más reciente primero; la racha se corta en el primer no-adverso.
	sort.Slice(events, func(i, j int) bool { return events[i].at.After(events[j].at) })

	streak := 0
	for _, ev := range events {
		if !ev.adverse {
			break
		}
		streak++
	}
	return streak
}
