package ports

import (
	"context"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// MarketSource obtiene mercados binarios activos desde la API del exchange.
type MarketSource interface {
	// FetchActiveMarkets devuelve los mercados activos, paginando hasta
	// agotar los resultados. El filtrado por tier lo hace el llamador.
	FetchActiveMarkets(ctx context.Context) ([]domain.Market, error)

	// FetchMarket devuelve el estado actual de un mercado concreto,
	// incluyendo su resolución si ya resolvió.
	FetchMarket(ctx context.Context, marketID string) (domain.Market, error)
}
