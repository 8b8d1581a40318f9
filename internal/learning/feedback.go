package learning

import (
	"math"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const recencyBase = 0.95

// ApplyResolved incorpora un registro resuelto a las tres capas. La
// calibración juzga los valores CRUDOS del LM; los trackers juzgan la
// decisión AJUSTADA del sistema. Muta el snapshot; la persistencia atómica
// es responsabilidad del llamador.
func ApplyResolved(snap *domain.LearningSnapshot, rec domain.TradeRecord, outcome bool, now time.Time) {
	weight := recencyWeight(rec.Timestamp, now)

	// Capa 1: calibración sobre la predicción cruda.
	rawCorrect := (rec.RawProbability > 0.5) == outcome
	snap.BucketFor(rec.RawConfidence).Update(rawCorrect, weight)

	// Capa 2: rendimiento por tipo de mercado, con el Brier ajustado.
	_, brierAdj := rec.BrierScores(outcome)
	perf := snap.PerfFor(rec.MarketType)
	perf.AddBrier(brierAdj)
	if rec.IsExecuted() {
		perf.TotalTrades++
		perf.TotalPnL += rec.PnL
	} else {
		perf.TotalObservedSkips++
		perf.CounterfactualPnL += rec.PnL
	}

	// Capa 3: trackers. Gana la decisión ajustada; cada combinación
	// conocida del tipo registra presencia o ausencia en este trade.
	winning := (rec.AdjustedProbability > 0.5) == outcome
	present := make(map[domain.TrackerKey]bool, len(rec.SignalTags))
	for _, tag := range rec.SignalTags {
		key := domain.TrackerKey{SourceTier: tag.SourceTier, InfoType: tag.InfoType, MarketType: rec.MarketType}
		present[key] = true
		snap.TrackerFor(key) // asegura que la combinación exista
	}
	for key, t := range snap.Trackers {
		if key.MarketType != rec.MarketType {
			continue
		}
		t.Record(present[key], winning)
	}
}

// recencyWeight devuelve 0.95^días transcurridos desde la decisión.
func recencyWeight(decidedAt, now time.Time) float64 {
	days := now.Sub(decidedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Pow(recencyBase, days)
}
