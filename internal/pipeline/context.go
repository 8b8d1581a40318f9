package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const maxPromptSignals = 7

// BuildPrompt ensambla el contexto completo que recibe el LM para un
// mercado: estado del mercado, microestructura del libro y las señales de
// mayor credibilidad, más las instrucciones de salida en JSON estricto.
func BuildPrompt(m domain.Market, book domain.OrderBook, signals []domain.Signal, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MARKET\nQuestion: %s\n", m.Question)
	fmt.Fprintf(&b, "YES price: %.3f | NO price: %.3f\n", m.YesPrice, m.NoPrice)
	fmt.Fprintf(&b, "Hours to resolution: %.1f\n", m.HoursToResolution)
	fmt.Fprintf(&b, "24h volume: $%.0f | Liquidity: $%.0f\n", m.Volume24h, m.Liquidity)
	fmt.Fprintf(&b, "Order book: bid depth $%.0f, ask depth $%.0f, skew %.2f\n\n",
		book.BidDepth(), book.AskDepth(), book.Skew())

	b.WriteString("SIGNALS\n")
	top := topByCredibility(signals, maxPromptSignals)
	if len(top) == 0 {
		b.WriteString("(no external signals found)\n")
	}
	for i, s := range top {
		age := now.Sub(s.Timestamp).Hours()
		label := fmt.Sprintf("[%s|%s]", s.SourceTier, s.SourceKind)
		if s.HeadlineOnly {
			label += " [HEADLINE-ONLY]"
		}
		fmt.Fprintf(&b, "%d. %s (%.1fh ago) %s\n", i+1, label, age, s.Content)
	}

	b.WriteString(`
INSTRUCTIONS
Estimate the probability that this market resolves YES. Weigh signals by
their credibility tier (S1 highest, S6 lowest). A HEADLINE-ONLY signal has
no article body; do not infer details beyond its headline. Classify each
signal you rely on with an information type:
  I1: verified fact that deterministically implies the outcome
  I2: strong directional evidence
  I3: weak directional evidence
  I4: sentiment shift
  I5: contradictory or speculative information

Respond with ONLY a JSON object, no prose, no code fences:
{
  "estimated_probability": <float 0-1, P(YES)>,
  "confidence": <float 0-1, your self-assessed confidence>,
  "reasoning": "<short explanation>",
  "signal_info_types": [{"source_tier": "S1", "info_type": "I1"}, ...]
}
`)
	return b.String()
}

// topByCredibility devuelve las n señales de mayor credibilidad, con
// desempate por recencia.
func topByCredibility(signals []domain.Signal, n int) []domain.Signal {
	out := make([]domain.Signal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Credibility != out[j].Credibility {
			return out[i].Credibility > out[j].Credibility
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
