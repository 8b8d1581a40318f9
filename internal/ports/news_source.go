package ports

import (
	"context"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// NewsSource devuelve titulares recientes que casan con las keywords.
type NewsSource interface {
	// FetchHeadlines devuelve señales headline-only de las últimas 2 horas.
	// Un feed caído no hace fallar la llamada.
	FetchHeadlines(ctx context.Context, keywords []string) ([]domain.Signal, error)
}
