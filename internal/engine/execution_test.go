package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictor/internal/domain"
)

func TestPaperExecutor_TakerSlippageScalesWithImpact(t *testing.T) {
	e := NewPaperExecutor(1)

	// Orden pequeña frente a un libro profundo: slippage cerca de la base.
	small, err := e.Execute(context.Background(), domain.OrderRequest{
		Side: domain.SideBuyYes, Price: 0.60, SizeUSD: 10, Depth: 10000,
	})
	require.NoError(t, err)
	assert.True(t, small.Filled)
	assert.InDelta(t, 0.005+0.01*(10.0/10000), small.Slippage, 1e-9)
	assert.InDelta(t, 0.60+small.Slippage, small.FillPrice, 1e-9)

	// Orden mayor que la profundidad: el impacto se acota en 1.
	big, err := e.Execute(context.Background(), domain.OrderRequest{
		Side: domain.SideBuyYes, Price: 0.60, SizeUSD: 500, Depth: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.015, big.Slippage, 1e-9)
}

func TestPaperExecutor_TakerHandlesZeroDepth(t *testing.T) {
	e := NewPaperExecutor(1)

	fill, err := e.Execute(context.Background(), domain.OrderRequest{
		Side: domain.SideBuyYes, Price: 0.60, SizeUSD: 50, Depth: 0,
	})
	require.NoError(t, err)
	assert.True(t, fill.Filled)
	assert.InDelta(t, 0.015, fill.Slippage, 1e-9)
}

func TestPaperExecutor_FillPriceClamped(t *testing.T) {
	e := NewPaperExecutor(1)

	fill, err := e.Execute(context.Background(), domain.OrderRequest{
		Side: domain.SideBuyYes, Price: 0.985, SizeUSD: 500, Depth: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.99, fill.FillPrice)
}

func TestPaperExecutor_MakerFillIsProbabilistic(t *testing.T) {
	// Con RNG sembrado el resultado es determinista; sobre muchas órdenes
	// la tasa de fills debe rondar la probabilidad teórica.
	e := NewPaperExecutor(42)

	filled := 0
	const n = 1000
	for i := 0; i < n; i++ {
		fill, err := e.Execute(context.Background(), domain.OrderRequest{
			Side: domain.SideBuyYes, Price: 0.50, SizeUSD: 50, Depth: 1000, Maker: true,
		})
		require.NoError(t, err)
		if fill.Filled {
			filled++
			assert.Equal(t, 0.50, fill.FillPrice) // maker: sin slippage
			assert.True(t, fill.Maker)
		}
	}
	// Precio 0.5 -> probabilidad de fill 0.8.
	assert.InDelta(t, 0.8, float64(filled)/n, 0.05)
}

func TestPaperExecutor_MakerAwayFromMidFillsLess(t *testing.T) {
	e := NewPaperExecutor(7)

	filled := 0
	const n = 1000
	for i := 0; i < n; i++ {
		fill, _ := e.Execute(context.Background(), domain.OrderRequest{
			Side: domain.SideBuyYes, Price: 0.95, SizeUSD: 50, Depth: 1000, Maker: true,
		})
		if fill.Filled {
			filled++
		}
	}
	// Precio 0.95 -> probabilidad 0.4 + 0.4*0.55 = 0.62.
	assert.InDelta(t, 0.62, float64(filled)/n, 0.05)
}
