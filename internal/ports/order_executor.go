package ports

import (
	"context"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// OrderExecutor ejecuta órdenes, reales o simuladas según el entorno.
type OrderExecutor interface {
	// Execute intenta llenar la orden y devuelve el resultado. Una orden
	// maker no llenada devuelve Filled=false sin error.
	Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderFill, error)
}
