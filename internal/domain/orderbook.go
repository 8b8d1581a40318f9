package domain

import "time"

// OrderBook contiene las sumas de los top-5 niveles de precio de cada lado,
// en USDC, con timestamp de captura.
type OrderBook struct {
	MarketID  string
	Bids      []float64 // top 5 niveles bid, mayor a menor precio
	Asks      []float64 // top 5 niveles ask, menor a mayor precio
	Timestamp time.Time
}

// BidDepth devuelve la profundidad total del lado bid.
func (ob OrderBook) BidDepth() float64 {
	var total float64
	for _, b := range ob.Bids {
		total += b
	}
	return total
}

// AskDepth devuelve la profundidad total del lado ask.
func (ob OrderBook) AskDepth() float64 {
	var total float64
	for _, a := range ob.Asks {
		total += a
	}
	return total
}

// Depth devuelve la profundidad total del book (bids + asks).
func (ob OrderBook) Depth() float64 {
	return ob.BidDepth() + ob.AskDepth()
}

// Skew devuelve el sesgo del book en [-1, 1]: positivo = presión compradora.
func (ob OrderBook) Skew() float64 {
	depth := ob.Depth()
	if depth <= 0 {
		return 0
	}
	return (ob.BidDepth() - ob.AskDepth()) / depth
}
