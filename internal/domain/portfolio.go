package domain

// Position es una posición abierta en un mercado.
type Position struct {
	MarketID        string
	Side            Side
	EntryPrice      float64
	SizeUSD         float64
	CurrentValue    float64
	MarketClusterID string
}

// Portfolio es el estado agregado de la cartera. Fila única en el store;
// el gate la lee y la ruta de ejecución/resolución la escribe bajo el mutex
// que protege el par (Portfolio, Learning State).
type Portfolio struct {
	Cash          float64
	TotalEquity   float64
	TotalPnL      float64
	PeakEquity    float64
	MaxDrawdown   float64
	OpenPositions []Position
}

// NewPortfolio crea una cartera con el bankroll inicial dado.
func NewPortfolio(bankroll float64) Portfolio {
	return Portfolio{
		Cash:        bankroll,
		TotalEquity: bankroll,
		PeakEquity:  bankroll,
	}
}

// TotalExposure devuelve el capital total en posiciones abiertas.
func (p Portfolio) TotalExposure() float64 {
	var total float64
	for _, pos := range p.OpenPositions {
		total += pos.SizeUSD
	}
	return total
}

// ApplyResolution incorpora el pnl de una posición resuelta: libera el
// capital, actualiza equity, peak y max drawdown, y elimina la posición.
func (p *Portfolio) ApplyResolution(marketID string, sizeUSD, pnl float64) {
	p.TotalPnL += pnl
	p.Cash += sizeUSD + pnl

	remaining := p.OpenPositions[:0]
	var openValue float64
	for _, pos := range p.OpenPositions {
		if pos.MarketID == marketID {
			continue
		}
		openValue += pos.CurrentValue
		remaining = append(remaining, pos)
	}
	p.OpenPositions = remaining
	p.TotalEquity = p.Cash + openValue

	if p.TotalEquity > p.PeakEquity {
		p.PeakEquity = p.TotalEquity
	}
	if p.PeakEquity > 0 {
		drawdown := (p.PeakEquity - p.TotalEquity) / p.PeakEquity
		if drawdown > p.MaxDrawdown {
			p.MaxDrawdown = drawdown
		}
	}
}
