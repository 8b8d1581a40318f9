package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageSize    = 100
	gammaMaxPages    = 20
)

// FetchActiveMarkets devuelve los mercados binarios activos, paginando
// Gamma hasta agotar los resultados. Los mercados no binarios se descartan.
func (c *Client) FetchActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	var out []domain.Market

	for page := 0; page < gammaMaxPages; page++ {
		u := fmt.Sprintf("%s%s?active=true&closed=false&limit=%d&offset=%d",
			c.gammaBase, gammaMarketsPath, gammaPageSize, page*gammaPageSize)

		var resp gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
			return nil, fmt.Errorf("polymarket.FetchActiveMarkets: page %d: %w", page, err)
		}

		for _, gm := range resp {
			m, ok := mapGammaMarket(gm, time.Now())
			if ok {
				out = append(out, m)
			}
		}
		if len(resp) < gammaPageSize {
			break
		}
	}

	slog.Debug("active markets fetched", "count", len(out))
	return out, nil
}

// FetchMarket devuelve el estado actual de un mercado, incluida su
// resolución si Gamma ya la publicó.
func (c *Client) FetchMarket(ctx context.Context, marketID string) (domain.Market, error) {
	u := fmt.Sprintf("%s%s?id=%s", c.gammaBase, gammaMarketsPath, url.QueryEscape(marketID))

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket.FetchMarket: %s: %w", marketID, err)
	}
	if len(resp) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket.FetchMarket: %s: not found", marketID)
	}

	m, _ := mapGammaMarket(resp[0], time.Now())
	return m, nil
}

// mapGammaMarket convierte el DTO a domain.Market. Devuelve ok=false para
// mercados que no son binarios YES/NO.
func mapGammaMarket(gm gammaMarket, now time.Time) (domain.Market, bool) {
	prices := parseJSONStringArray(gm.OutcomePrices)
	tokens := parseJSONStringArray(gm.ClobTokenIDs)
	outcomes := parseJSONStringArray(gm.Outcomes)
	if len(prices) != 2 || len(outcomes) != 2 {
		return domain.Market{}, false
	}

	yes := parseFloat(prices[0])
	m := domain.Market{
		MarketID:  gm.ID,
		Question:  gm.Question,
		YesPrice:  yes,
		NoPrice:   1 - yes,
		Resolved:  gm.Closed,
	}
	if v, err := gm.Volume24h.Float64(); err == nil {
		m.Volume24h = v
	}
	if v, err := gm.Liquidity.Float64(); err == nil {
		m.Liquidity = v
	}
	if len(tokens) == 2 {
		m.YesTokenID, m.NoTokenID = tokens[0], tokens[1]
	}

	if t, err := time.Parse(time.RFC3339, gm.EndDate); err == nil {
		m.ResolutionTime = t
		m.HoursToResolution = t.Sub(now).Hours()
	}

	if m.Resolved {
		// El precio final colapsado determina el outcome publicado.
		if yes >= 0.5 {
			m.Resolution = "YES"
		} else {
			m.Resolution = "NO"
		}
	}

	m.MarketType = ClassifyMarketType(gm.Question)
	return m, true
}

// Tabla de keywords por tipo; el primer tipo que casa gana y el default es
// political.
var marketTypeKeywords = []struct {
	mtype    domain.MarketType
	keywords []string
}{
	{domain.TypeCrypto15m, []string{"bitcoin", "btc", "ethereum", "eth", "crypto", "solana", "sol"}},
	{domain.TypeSports, []string{"nba", "nfl", "mlb", "ufc", "match", "game", "championship", "cup", "super bowl"}},
	{domain.TypeEconomic, []string{"fed", "cpi", "inflation", "gdp", "rate cut", "recession", "unemployment", "tariff", "jobs report"}},
	{domain.TypeRegulatory, []string{"sec", "lawsuit", "court", "ruling", "approve", "regulation", "ban"}},
	{domain.TypeCultural, []string{"oscar", "grammy", "movie", "album", "box office", "celebrity", "spotify"}},
}

// ClassifyMarketType asigna el tipo de mercado a partir de la pregunta.
func ClassifyMarketType(question string) domain.MarketType {
	q := strings.ToLower(question)
	for _, entry := range marketTypeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				return entry.mtype
			}
		}
	}
	return domain.TypePolitical
}

// FilterTier1 aplica los filtros del escaneo tier-1: ventana de resolución
// y liquidez mínima.
func FilterTier1(markets []domain.Market, minHours, maxHours, minLiquidity float64) []domain.Market {
	var out []domain.Market
	for _, m := range markets {
		if m.HoursToResolution < minHours || m.HoursToResolution > maxHours {
			continue
		}
		if m.Liquidity <= minLiquidity {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FilterTier2 retiene solo los mercados crypto de ventana corta.
func FilterTier2(markets []domain.Market) []domain.Market {
	var out []domain.Market
	for _, m := range markets {
		if m.MarketType == domain.TypeCrypto15m && m.HoursToResolution > 0 {
			out = append(out, m)
		}
	}
	return out
}

func parseJSONStringArray(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func parseFloat(s string) float64 {
	var n json.Number = json.Number(s)
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}
