package ports

import (
	"context"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// SocialSearcher busca posts recientes relevantes en la red social.
type SocialSearcher interface {
	// Search devuelve como máximo 10 señales ordenadas por credibilidad
	// descendente. Devuelve lista vacía (sin error) si el transporte falla.
	Search(ctx context.Context, keywords []string) ([]domain.Signal, error)
}
