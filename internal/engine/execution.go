package engine

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	slippageBase  = 0.005
	slippageScale = 0.01
)

// PaperExecutor simula fills contra el orderbook sin tocar el exchange.
// El RNG se inyecta para que los tests de fills maker sean deterministas.
type PaperExecutor struct {
	rng *rand.Rand
	now func() time.Time
}

// NewPaperExecutor crea el simulador con la semilla dada.
func NewPaperExecutor(seed int64) *PaperExecutor {
	return &PaperExecutor{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Execute simula el fill. Las órdenes taker siempre llenan con slippage
// proporcional al tamaño relativo a la profundidad del libro; las maker
// llenan con probabilidad dependiente de lo cerca que esté el precio de 0.5.
func (e *PaperExecutor) Execute(_ context.Context, req domain.OrderRequest) (domain.OrderFill, error) {
	if req.Maker {
		return e.makerFill(req), nil
	}
	return e.takerFill(req), nil
}

func (e *PaperExecutor) takerFill(req domain.OrderRequest) domain.OrderFill {
	depth := math.Max(req.Depth, 1)
	impact := math.Min(req.SizeUSD/depth, 1)
	slip := slippageBase + slippageScale*impact

	// El slippage siempre va contra el comprador del lado elegido.
	price := clampPrice(req.Price + slip)
	return domain.OrderFill{
		Filled:     true,
		FillPrice:  price,
		SizeUSD:    req.SizeUSD,
		Slippage:   slip,
		ExecutedAt: e.now(),
	}
}

func (e *PaperExecutor) makerFill(req domain.OrderRequest) domain.OrderFill {
	// Los mercados cerca de 0.5 cruzan más: fill prob en [0.4, 0.8].
	fillProb := 0.4 + 0.4*(1-math.Abs(req.Price-0.5))
	if e.rng.Float64() >= fillProb {
		return domain.OrderFill{Filled: false}
	}
	return domain.OrderFill{
		Filled:     true,
		FillPrice:  clampPrice(req.Price),
		SizeUSD:    req.SizeUSD,
		Maker:      true,
		ExecutedAt: e.now(),
	}
}

func clampPrice(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}
