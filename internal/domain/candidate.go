package domain

// Side es la dirección de un trade candidato.
type Side string

const (
	SideBuyYes Side = "BUY_YES"
	SideBuyNo  Side = "BUY_NO"
	SideSkip   Side = "SKIP"
)

// Razones canónicas de SKIP. Las razones de monk mode viven en el engine;
// estas son las que produce el pipeline por mercado y el ranking.
const (
	SkipEdgeBelowThreshold  = "edge_below_threshold"
	SkipNoDirection         = "no_direction"
	SkipPositionTooSmall    = "position_too_small"
	SkipRankedBelowCutoff   = "ranked_below_cutoff"
	SkipClusterExposure     = "cluster_exposure_limit"
	SkipObserveOnly         = "daily_cap_observe_only"
	SkipMarketTypeDisabled  = "market_type_disabled"
	SkipLLMParseFailed      = "llm_parse_failed"
	SkipOrderNotFilled      = "order_not_filled"
)

// TradeCandidate es el resultado del pipeline por mercado antes del ranking.
// Conserva los valores crudos del LM junto a los ajustados: el feedback de
// calibración usa los crudos y el resto de capas los ajustados.
type TradeCandidate struct {
	Market  Market
	Signals []Signal
	Tier    int

	RawProbability float64
	RawConfidence  float64
	Reasoning      string
	SignalTags     []SignalTag

	AdjustedProbability float64
	AdjustedConfidence  float64
	CalculatedEdge      float64
	Side                Side
	PositionSize        float64
	KellyFractionUsed   float64
	Score               float64
	ResolutionHours     float64
	MarketClusterID     string
	SkipReason          string

	MarketPrice    float64
	FeeRate        float64
	OrderBookDepth float64
	HeadlineOnly   bool

	// Deltas de cada capa de ajuste, para el registro de auditoría.
	CalibrationAdjustment  float64
	MarketTypeAdjustment   float64
	SignalWeightAdjustment float64
}
