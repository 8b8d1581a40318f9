package ports

import (
	"context"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// Completer es el modelo de lenguaje que estima probabilidades.
type Completer interface {
	// EstimateMarket envía el contexto del mercado y devuelve el estimate
	// validado. Reintenta hasta 3 veces; si ningún intento produce JSON
	// válido devuelve *domain.ParseError.
	EstimateMarket(ctx context.Context, prompt string) (domain.Estimate, error)

	// ExtractKeywords pide al modelo 2-5 entidades de búsqueda para una
	// pregunta cuyo extractor por regex no produjo suficientes.
	ExtractKeywords(ctx context.Context, question string) ([]string, error)

	// Model devuelve el identificador del modelo activo.
	Model() string
}
