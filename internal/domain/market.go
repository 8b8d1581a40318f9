package domain

import "time"

// MarketType agrupa mercados por temática; es la clave de la capa de
// aprendizaje por tipo de mercado.
type MarketType string

const (
	TypePolitical  MarketType = "political"
	TypeEconomic   MarketType = "economic"
	TypeCrypto15m  MarketType = "crypto_15m"
	TypeSports     MarketType = "sports"
	TypeCultural   MarketType = "cultural"
	TypeRegulatory MarketType = "regulatory"
)

// Market es un snapshot de un mercado de predicción binario.
// Se refetchea en cada ciclo; nunca se cachea entre scans.
type Market struct {
	MarketID          string
	Question          string
	YesPrice          float64
	NoPrice           float64
	ResolutionTime    time.Time
	HoursToResolution float64
	Volume24h         float64
	Liquidity         float64
	MarketType        MarketType
	FeeRate           float64
	Keywords          []string

	// Estado de resolución, solo relevante en consultas individuales.
	Resolved   bool
	Resolution string // "YES" | "NO" cuando Resolved
	YesTokenID string
	NoTokenID  string
}

// Resolution devuelve el outcome binario del mercado (true = YES).
// Solo tiene sentido cuando Resolved.
func (m Market) ResolvedYes() bool {
	return m.Resolution == "YES"
}
