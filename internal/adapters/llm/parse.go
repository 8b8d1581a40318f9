package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// looseFloat acepta números JSON o strings numéricos ("0.65"), que algunos
// modelos devuelven pese al prompt.
type looseFloat struct {
	value float64
	set   bool
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.value = v
	f.set = true
	return nil
}

// estimatePayload es el JSON que el modelo debe devolver.
type estimatePayload struct {
	EstimatedProbability looseFloat `json:"estimated_probability"`
	Confidence           looseFloat `json:"confidence"`
	Reasoning            string     `json:"reasoning"`
	SignalInfoTypes      []struct {
		SourceTier string `json:"source_tier"`
		InfoType   string `json:"info_type"`
	} `json:"signal_info_types"`
}

// parseEstimate intenta tres estrategias en orden: JSON directo, JSON tras
// quitar fences de markdown, y el primer objeto {...} embebido en prosa.
func parseEstimate(raw string) (domain.Estimate, error) {
	for _, candidate := range []string{
		strings.TrimSpace(raw),
		stripFences(raw),
		extractJSON(raw, '{', '}'),
	} {
		if candidate == "" {
			continue
		}
		var p estimatePayload
		if err := json.Unmarshal([]byte(candidate), &p); err != nil {
			continue
		}
		return validate(p)
	}
	return domain.Estimate{}, fmt.Errorf("no JSON object found")
}

func validate(p estimatePayload) (domain.Estimate, error) {
	if !p.EstimatedProbability.set {
		return domain.Estimate{}, fmt.Errorf("missing estimated_probability")
	}
	if !p.Confidence.set {
		return domain.Estimate{}, fmt.Errorf("missing confidence")
	}

	prob := p.EstimatedProbability.value
	conf := p.Confidence.value
	// Un valor fuera de [0,1] es una respuesta inválida, no algo que
	// recortar: se rechaza para que el cliente reintente.
	if prob < 0 || prob > 1 {
		return domain.Estimate{}, fmt.Errorf("estimated_probability %v outside [0,1]", prob)
	}
	if conf < 0 || conf > 1 {
		return domain.Estimate{}, fmt.Errorf("confidence %v outside [0,1]", conf)
	}

	est := domain.Estimate{
		Probability: prob,
		Confidence:  conf,
		Reasoning:   p.Reasoning,
	}
	for _, t := range p.SignalInfoTypes {
		tier := domain.SourceTier(strings.ToUpper(strings.TrimSpace(t.SourceTier)))
		info := domain.InfoType(strings.ToUpper(strings.TrimSpace(t.InfoType)))
		if !validTier(tier) || !validInfo(info) {
			continue
		}
		est.Tags = append(est.Tags, domain.SignalTag{SourceTier: tier, InfoType: info})
	}
	return est, nil
}

func validTier(t domain.SourceTier) bool {
	switch t {
	case domain.TierS1, domain.TierS2, domain.TierS3, domain.TierS4, domain.TierS5, domain.TierS6:
		return true
	}
	return false
}

func validInfo(i domain.InfoType) bool {
	switch i {
	case domain.InfoI1, domain.InfoI2, domain.InfoI3, domain.InfoI4, domain.InfoI5, domain.InfoI6:
		return true
	}
	return false
}

// stripFences quita fences de markdown (```json ... ```).
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractJSON devuelve el primer bloque balanceado delimitado por open y
// close, atravesando saltos de línea.
func extractJSON(raw string, open, close byte) string {
	start := strings.IndexByte(raw, open)
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
