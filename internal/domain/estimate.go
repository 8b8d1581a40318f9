package domain

import "fmt"

// Estimate es la salida validada del modelo de lenguaje para un mercado.
type Estimate struct {
	Probability float64 // P(YES) cruda en [0,1]
	Confidence  float64 // auto-confianza cruda en [0,1]
	Reasoning   string
	Tags        []SignalTag // combinaciones (tier, info_type) que el LM citó
	TokensIn    int
	TokensOut   int
	CostUSD     float64
}

// HasInfoType indica si el estimate cita el tipo de información dado.
func (e Estimate) HasInfoType(t InfoType) bool {
	for _, tag := range e.Tags {
		if tag.InfoType == t {
			return true
		}
	}
	return false
}

// ParseError indica que el modelo agotó sus intentos sin producir un JSON
// válido. Raw conserva la última respuesta para el registro de fallos.
type ParseError struct {
	Raw      string
	Attempts int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm response unparseable after %d attempts", e.Attempts)
}
