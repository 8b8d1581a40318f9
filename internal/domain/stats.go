package domain

// DailyStats agrega la actividad de un día para el resumen y el endpoint
// de salud.
type DailyStats struct {
	Date            string
	TradesExecuted  int
	TradesResolved  int
	Skips           int
	OpenTrades      int
	RealizedPnL     float64
	OpenExposure    float64
	Bankroll        float64
	APICostUSD      float64
	ParseFailures   int
	Mode            string // active | observe_only | halted
}
