package scheduler

import (
	"strings"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// Umbrales de activación de la ventana tier-2: señales cripto recientes con
// al menos una fuente fuerte.
const (
	burstMinSignals   = 2
	burstMinFollowers = 100000
)

var cryptoTerms = []string{"bitcoin", "btc", "ethereum", "eth", "crypto", "solana", "sol"}

// QualifiesBurst decide si los candidatos de un ciclo justifican abrir (o
// extender) la ventana de escaneo intensivo tier-2: al menos dos señales
// cripto, una de ellas de tier S1/S2 o de una cuenta grande.
func QualifiesBurst(cands []domain.TradeCandidate) bool {
	total, strong := 0, 0
	for _, c := range cands {
		for _, sig := range c.Signals {
			if !cryptoSignal(c.Market.MarketType, sig) {
				continue
			}
			total++
			if sig.SourceTier == domain.TierS1 || sig.SourceTier == domain.TierS2 ||
				sig.Followers >= burstMinFollowers {
				strong++
			}
		}
	}
	return total >= burstMinSignals && strong >= 1
}

func cryptoSignal(mt domain.MarketType, sig domain.Signal) bool {
	if sig.SourceKind == domain.SourceMarketData {
		return false
	}
	if mt == domain.TypeCrypto15m {
		return true
	}
	content := strings.ToLower(sig.Content)
	for _, term := range cryptoTerms {
		if strings.Contains(content, term) {
			return true
		}
	}
	return false
}
