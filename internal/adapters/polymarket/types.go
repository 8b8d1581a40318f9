package polymarket

import "encoding/json"

// gammaMarket es el DTO de Gamma /markets.
type gammaMarket struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	EndDate       string      `json:"endDate"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
	Volume24h     json.Number `json:"volume24hr"`
	Liquidity     json.Number `json:"liquidityNum"`
	OutcomePrices string      `json:"outcomePrices"` // JSON array en string: ["0.6","0.4"]
	Outcomes      string      `json:"outcomes"`
	ClobTokenIDs  string      `json:"clobTokenIds"`
	UMAResolution string      `json:"umaResolutionStatus"`
}

type gammaMarketsResponse []gammaMarket

// bookResponse es el DTO del CLOB /book.
type bookResponse struct {
	Market string      `json:"market"`
	Bids   []bookLevel `json:"bids"`
	Asks   []bookLevel `json:"asks"`
}

type bookLevel struct {
	Price json.Number `json:"price"`
	Size  json.Number `json:"size"`
}

// orderRequest es el payload del POST /order del CLOB.
type orderRequest struct {
	TokenID string  `json:"token_id"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	SizeUSD float64 `json:"size"`
	Type    string  `json:"type"` // FOK | GTC
}

type orderResponse struct {
	Success   bool        `json:"success"`
	OrderID   string      `json:"orderID"`
	Status    string      `json:"status"`
	AvgPrice  json.Number `json:"avgPrice"`
	SizeMatch json.Number `json:"makingAmount"`
	ErrorMsg  string      `json:"errorMsg"`
}
