package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/predictor/internal/domain"
)

func openGate() GateInput {
	return GateInput{
		ExecutedToday:      0,
		TierDailyCap:       5,
		Bankroll:           2000,
		DailyLossLimitPct:  0.05,
		WeeklyLossLimitPct: 0.10,
		AdverseThreshold:   3,
		MaxExposurePct:     0.30,
		APIBudgetUSD:       8.0,
	}
}

func TestEvaluateGate_AllowsWhenHealthy(t *testing.T) {
	reason, ok := EvaluateGate(openGate())
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestEvaluateGate_ReasonsInOrder(t *testing.T) {
	in := openGate()
	in.ExecutedToday = 5
	in.DailyPnL = -200
	in.WeeklyPnL = -300
	in.ConsecutiveAdverse = 4
	in.TotalExposure = 700
	in.APISpendUSD = 9

	// Todo disparado a la vez: gana la primera razón del orden fijo.
	reason, ok := EvaluateGate(in)
	assert.False(t, ok)
	assert.Equal(t, GateTierDailyCap, reason)

	in.ExecutedToday = 0
	reason, _ = EvaluateGate(in)
	assert.Equal(t, GateDailyLoss, reason)

	in.DailyPnL = 0
	reason, _ = EvaluateGate(in)
	assert.Equal(t, GateWeeklyLoss, reason)

	in.WeeklyPnL = 0
	reason, _ = EvaluateGate(in)
	assert.Equal(t, GateCooldown, reason)

	in.ConsecutiveAdverse = 0
	reason, _ = EvaluateGate(in)
	assert.Equal(t, GateMaxExposure, reason)

	in.TotalExposure = 0
	reason, _ = EvaluateGate(in)
	assert.Equal(t, GateAPIBudget, reason)
}

func TestEvaluateGate_DailyLossBoundaryIsStrict(t *testing.T) {
	in := openGate()
	in.DailyPnL = -100 // exactamente el 5% de 2000: aún permitido

	_, ok := EvaluateGate(in)
	assert.True(t, ok)

	in.DailyPnL = -100.01
	reason, ok := EvaluateGate(in)
	assert.False(t, ok)
	assert.Equal(t, GateDailyLoss, reason)
}

func TestEvaluateGate_ExposureIncludesCandidateSize(t *testing.T) {
	in := openGate()
	in.Bankroll = 5000
	in.TotalExposure = 1400 // límite 1500

	// La posición pendiente cuenta: 1400 + 400 rebasa el 30%.
	in.CandidateSize = 400
	reason, ok := EvaluateGate(in)
	assert.False(t, ok)
	assert.Equal(t, GateMaxExposure, reason)

	// Con un tamaño que cabe justo en el límite sí se ejecuta.
	in.CandidateSize = 100
	_, ok = EvaluateGate(in)
	assert.True(t, ok)
}

func timePtr(t time.Time) *time.Time { return &t }

func floatPtr(f float64) *float64 { return &f }

func TestConsecutiveAdverse_FavorableBreaksStreak(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	windowStart := now.Add(-2 * time.Hour)

	resolved := []domain.TradeRecord{
		{Action: domain.SideBuyYes, PnL: -10, ResolvedAt: timePtr(now.Add(-10 * time.Minute))},
		{Action: domain.SideBuyYes, PnL: -5, ResolvedAt: timePtr(now.Add(-30 * time.Minute))},
		{Action: domain.SideBuyYes, PnL: 20, ResolvedAt: timePtr(now.Add(-50 * time.Minute))},
		{Action: domain.SideBuyYes, PnL: -8, ResolvedAt: timePtr(now.Add(-70 * time.Minute))},
	}

	// Dos pérdidas recientes, luego una ganancia: racha de 2.
	assert.Equal(t, 2, ConsecutiveAdverse(resolved, nil, windowStart))
}

func TestConsecutiveAdverse_UnrealizedMoveCounts(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	windowStart := now.Add(-2 * time.Hour)

	open := []domain.TradeRecord{
		{Action: domain.SideBuyYes, Timestamp: now.Add(-5 * time.Minute), UnrealizedAdverseMove: floatPtr(0.15)},
	}
	resolved := []domain.TradeRecord{
		{Action: domain.SideBuyYes, PnL: -10, ResolvedAt: timePtr(now.Add(-20 * time.Minute))},
	}
	assert.Equal(t, 2, ConsecutiveAdverse(resolved, open, windowStart))

	// Movimiento pequeño no cuenta como adverso y corta la racha.
	open[0].UnrealizedAdverseMove = floatPtr(0.05)
	assert.Equal(t, 0, ConsecutiveAdverse(resolved, open, windowStart))
}

func TestConsecutiveAdverse_IgnoresOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	windowStart := now.Add(-2 * time.Hour)

	resolved := []domain.TradeRecord{
		{Action: domain.SideBuyYes, PnL: -10, ResolvedAt: timePtr(now.Add(-3 * time.Hour))},
	}
	assert.Equal(t, 0, ConsecutiveAdverse(resolved, nil, windowStart))

	// Una posición abierta decidida fuera de la ventana tampoco cuenta,
	// por mucho movimiento adverso que arrastre.
	open := []domain.TradeRecord{
		{Action: domain.SideBuyYes, Timestamp: now.Add(-3 * time.Hour), UnrealizedAdverseMove: floatPtr(0.25)},
	}
	assert.Equal(t, 0, ConsecutiveAdverse(nil, open, windowStart))
}
