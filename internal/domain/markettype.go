package domain

// Ventana máxima de Brier scores retenidos por tipo de mercado.
const BrierHistoryLimit = 100

// MarketTypePerformance acumula el rendimiento por tipo de mercado.
// Los Brier scores son los AJUSTADOS del sistema, no los crudos del LM.
type MarketTypePerformance struct {
	MarketType         MarketType
	TotalTrades        int
	TotalPnL           float64
	BrierScores        []float64
	TotalObservedSkips int
	CounterfactualPnL  float64
}

// AvgBrier devuelve la media de Brier con decaimiento exponencial:
// el score más reciente pesa 1 y cada anterior 0.95 veces el siguiente.
// 0.25 (coin flip) con historial vacío.
func (p MarketTypePerformance) AvgBrier() float64 {
	if len(p.BrierScores) == 0 {
		return 0.25
	}
	var sum, wsum float64
	w := 1.0
	for i := len(p.BrierScores) - 1; i >= 0; i-- {
		sum += p.BrierScores[i] * w
		wsum += w
		w *= 0.95
	}
	return sum / wsum
}

// EdgeAdjustment devuelve la penalización de edge para el tipo: sube el
// listón cuando el Brier ajustado reciente es malo. Cero con <15 trades.
func (p MarketTypePerformance) EdgeAdjustment() float64 {
	if p.TotalTrades < 15 {
		return 0
	}
	avg := p.AvgBrier()
	switch {
	case avg > 0.30:
		return 0.05
	case avg > 0.25:
		return 0.03
	case avg > 0.20:
		return 0.01
	}
	return 0
}

// ShouldDisable indica si el tipo debe deshabilitarse: 30+ trades con
// pérdida media superior a 0.15 por trade.
func (p MarketTypePerformance) ShouldDisable() bool {
	return p.TotalTrades >= 30 && p.TotalPnL < -0.15*float64(p.TotalTrades)
}

// AddBrier añade un score truncando el historial a la ventana acotada.
func (p *MarketTypePerformance) AddBrier(score float64) {
	p.BrierScores = append(p.BrierScores, score)
	if len(p.BrierScores) > BrierHistoryLimit {
		p.BrierScores = p.BrierScores[len(p.BrierScores)-BrierHistoryLimit:]
	}
}

// TruncateBriers retiene solo los n scores más recientes (dampening de swap).
func (p *MarketTypePerformance) TruncateBriers(n int) {
	if len(p.BrierScores) > n {
		p.BrierScores = p.BrierScores[len(p.BrierScores)-n:]
	}
}
