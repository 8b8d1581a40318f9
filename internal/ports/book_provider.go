package ports

import (
	"context"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// BookProvider obtiene los orderbooks del CLOB.
type BookProvider interface {
	// FetchOrderBook devuelve los 5 mejores niveles de cada lado para el
	// token dado.
	FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}
