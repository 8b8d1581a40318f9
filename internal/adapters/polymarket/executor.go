package polymarket

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const clobOrderPath = "/order"

// LiveExecutor envía órdenes reales al CLOB. Las órdenes taker van como
// FOK y las maker como GTC.
type LiveExecutor struct {
	client *Client
}

// NewLiveExecutor crea el executor live sobre el client compartido.
func NewLiveExecutor(client *Client) *LiveExecutor {
	return &LiveExecutor{client: client}
}

// Execute envía la orden y mapea la respuesta a un fill. Una orden GTC
// aceptada pero sin match se reporta como no llenada.
func (e *LiveExecutor) Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderFill, error) {
	orderType := "FOK"
	if req.Maker {
		orderType = "GTC"
	}

	payload := orderRequest{
		TokenID: req.TokenID,
		Side:    "BUY",
		Price:   req.Price,
		SizeUSD: req.SizeUSD,
		Type:    orderType,
	}

	var resp orderResponse
	u := e.client.clobBase + clobOrderPath
	if err := e.client.post(ctx, e.client.booksLimiter, u, payload, &resp); err != nil {
		return domain.OrderFill{}, fmt.Errorf("polymarket.Execute: %s: %w", req.MarketID, err)
	}
	if !resp.Success {
		return domain.OrderFill{}, fmt.Errorf("polymarket.Execute: %s: rejected: %s", req.MarketID, resp.ErrorMsg)
	}

	fill := domain.OrderFill{
		SizeUSD:    req.SizeUSD,
		Maker:      req.Maker,
		ExecutedAt: time.Now(),
	}
	if resp.Status == "matched" {
		fill.Filled = true
		fill.FillPrice = req.Price
		if avg, err := resp.AvgPrice.Float64(); err == nil && avg > 0 {
			fill.FillPrice = avg
			fill.Slippage = avg - req.Price
		}
	}
	return fill, nil
}
