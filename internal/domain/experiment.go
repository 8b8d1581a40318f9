package domain

import "time"

// ExperimentRun identifica un periodo ininterrumpido bajo un mismo modelo.
// Todo TradeRecord referencia un run existente (FK en el store); exactamente
// uno está abierto (EndedAt nil) en cada momento.
type ExperimentRun struct {
	RunID             string
	StartedAt         time.Time
	EndedAt           *time.Time
	ConfigSnapshot    map[string]string
	Description       string
	ModelUsed         string
	IncludeInLearning bool
	TotalTrades       int
	TotalPnL          float64
	AvgBrier          float64
}

// ModelSwapEvent es el registro de auditoría de un cambio de modelo.
type ModelSwapEvent struct {
	Timestamp            time.Time
	OldModel             string
	NewModel             string
	Reason               string
	ExperimentRunStarted string
}
