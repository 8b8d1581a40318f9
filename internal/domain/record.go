package domain

import "time"

// TradeRecord es la fila de auditoría completa de una decisión, ejecutada o
// SKIP. Se escribe en el momento de la decisión y se muta exactamente dos
// veces: al crearse y al resolverse. Tras incorporarse al aprendizaje solo
// cambia vía el mecanismo de void.
type TradeRecord struct {
	RecordID      string
	ExperimentRun string
	Timestamp     time.Time
	ModelUsed     string

	MarketID              string
	MarketQuestion        string
	MarketType            MarketType
	ResolutionWindowHours float64
	ResolutionTime        time.Time
	Tier                  int

	RawProbability float64
	RawConfidence  float64
	Reasoning      string
	SignalTags     []SignalTag
	HeadlineOnly   bool

	CalibrationAdjustment  float64
	MarketTypeAdjustment   float64
	SignalWeightAdjustment float64
	AdjustedProbability    float64
	AdjustedConfidence     float64

	MarketPriceAtDecision float64
	OrderBookDepthUSD     float64
	FeeRate               float64
	CalculatedEdge        float64
	TradeScore            float64

	Action            Side
	SkipReason        string
	PositionSizeUSD   float64
	KellyFractionUsed float64
	MarketClusterID   string

	// Resolución. ActualOutcome es nil mientras el mercado siga abierto.
	ActualOutcome        *bool
	PnL                  float64
	BrierRaw             *float64
	BrierAdjusted        *float64
	ResolvedAt           *time.Time
	UnrealizedAdverseMove *float64

	Voided     bool
	VoidReason string
}

// IsResolved indica si el record ya tiene outcome.
func (r TradeRecord) IsResolved() bool {
	return r.ActualOutcome != nil
}

// IsExecuted indica si el record corresponde a un trade real (no SKIP).
func (r TradeRecord) IsExecuted() bool {
	return r.Action != SideSkip
}

// BrierScores calcula los Brier scores crudo y ajustado contra el outcome.
func (r TradeRecord) BrierScores(outcome bool) (raw, adjusted float64) {
	actual := 0.0
	if outcome {
		actual = 1.0
	}
	raw = (r.RawProbability - actual) * (r.RawProbability - actual)
	adjusted = (r.AdjustedProbability - actual) * (r.AdjustedProbability - actual)
	return raw, adjusted
}
