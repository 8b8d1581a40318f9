// Package engine contiene la lógica de decisión: edge, sizing Kelly,
// ranking con clusters, el gate de riesgo y la resolución de posiciones.
package engine

import (
	"math"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// Piso absoluto de posición; por debajo el trade no compensa las fees.
const minPositionUSD = 1.0

// SizingParams agrupa los parámetros de decisión de un tier.
type SizingParams struct {
	MinEdge       float64
	Bankroll      float64
	KellyFraction float64
	MaxPositionPct float64
}

// Decide rellena la parte de decisión del candidato: dirección, edge neto,
// tamaño por Kelly fraccional y score de ranking. El candidato llega con
// los valores ajustados y el ExtraEdge del tipo de mercado ya aplicados en
// MarketTypeAdjustment.
func Decide(c *domain.TradeCandidate, p SizingParams) {
	yes := c.Market.YesPrice
	no := c.Market.NoPrice
	adjP := c.AdjustedProbability
	extra := c.MarketTypeAdjustment

	grossYes := adjP - yes
	grossNo := (1 - adjP) - no

	if grossYes <= 0 && grossNo <= 0 {
		c.Side = domain.SideSkip
		c.SkipReason = domain.SkipNoDirection
		return
	}

	var side domain.Side
	var gross, price float64
	if grossYes >= grossNo {
		side, gross, price = domain.SideBuyYes, grossYes, yes
	} else {
		side, gross, price = domain.SideBuyNo, grossNo, no
	}

	edge := gross - c.FeeRate - extra
	c.CalculatedEdge = edge
	c.MarketPrice = price

	if edge <= p.MinEdge {
		c.Side = domain.SideSkip
		c.SkipReason = domain.SkipEdgeBelowThreshold
		c.Score = score(edge, c.AdjustedConfidence, c.ResolutionHours)
		return
	}

	size, kellyUsed := kellySize(side, adjP, yes, p)
	c.Side = side
	c.KellyFractionUsed = kellyUsed
	c.Score = score(edge, c.AdjustedConfidence, c.ResolutionHours)

	if size < minPositionUSD {
		c.Side = domain.SideSkip
		c.SkipReason = domain.SkipPositionTooSmall
		c.PositionSize = 0
		return
	}
	c.PositionSize = size
}

// kellySize devuelve el tamaño en USD por Kelly fraccional, acotado por el
// porcentaje máximo de posición. p es P(YES) ajustada y q el precio YES.
func kellySize(side domain.Side, p, q float64, params SizingParams) (sizeUSD, kellyUsed float64) {
	var f float64
	switch side {
	case domain.SideBuyYes:
		f = (p - q) / (1 - q)
	case domain.SideBuyNo:
		f = (q - p) / q
	}
	if f <= 0 {
		return 0, 0
	}

	kellyUsed = f * params.KellyFraction
	sizeUSD = params.Bankroll * kellyUsed
	cap := params.Bankroll * params.MaxPositionPct
	if sizeUSD > cap {
		sizeUSD = cap
	}
	return sizeUSD, kellyUsed
}

// score prioriza edge alto, confianza alta y resolución cercana.
func score(edge, conf, resHours float64) float64 {
	if edge < 0 {
		edge = 0
	}
	return edge * conf / math.Max(resHours, 0.5)
}
