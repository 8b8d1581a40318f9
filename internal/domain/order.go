package domain

import "time"

// OrderRequest describe una orden a ejecutar (simulada o real).
type OrderRequest struct {
	MarketID string
	TokenID  string
	Side     Side
	Price    float64 // precio de mercado del lado comprado
	SizeUSD  float64
	Depth    float64 // profundidad del libro en el lado relevante
	Maker    bool    // orden límite pasiva en vez de cruzar el spread
}

// OrderFill es el resultado de la ejecución.
type OrderFill struct {
	Filled     bool
	FillPrice  float64
	SizeUSD    float64
	Slippage   float64
	Maker      bool
	ExecutedAt time.Time
}
