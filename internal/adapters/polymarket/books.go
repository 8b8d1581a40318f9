package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	clobBookPath  = "/book"
	bookTopLevels = 5
)

// FetchOrderBook devuelve los 5 mejores niveles de cada lado, con los
// tamaños convertidos a USD.
func (c *Client) FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, clobBookPath, url.QueryEscape(tokenID))

	var resp bookResponse
	if err := c.get(ctx, c.booksLimiter, u, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket.FetchOrderBook: %s: %w", tokenID, err)
	}

	return domain.OrderBook{
		MarketID:  resp.Market,
		Bids:      topLevelsUSD(resp.Bids),
		Asks:      topLevelsUSD(resp.Asks),
		Timestamp: time.Now(),
	}, nil
}

// topLevelsUSD convierte los primeros niveles a profundidad en USD
// (precio × tamaño en shares).
func topLevelsUSD(levels []bookLevel) []float64 {
	out := make([]float64, 0, bookTopLevels)
	for i, l := range levels {
		if i >= bookTopLevels {
			break
		}
		price, err1 := l.Price.Float64()
		size, err2 := l.Size.Float64()
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, price*size)
	}
	return out
}
