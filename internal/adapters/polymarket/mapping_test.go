package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictor/internal/domain"
)

var mapNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestMapGammaMarket_Binary(t *testing.T) {
	gm := gammaMarket{
		ID:            "513",
		Question:      "Will the Fed cut rates in March?",
		EndDate:       "2026-03-12T12:00:00Z",
		Volume24h:     json.Number("15000"),
		Liquidity:     json.Number("8000"),
		OutcomePrices: `["0.62","0.38"]`,
		Outcomes:      `["Yes","No"]`,
		ClobTokenIDs:  `["tok-yes","tok-no"]`,
	}

	m, ok := mapGammaMarket(gm, mapNow)
	require.True(t, ok)
	assert.Equal(t, "513", m.MarketID)
	assert.InDelta(t, 0.62, m.YesPrice, 1e-9)
	assert.InDelta(t, 0.38, m.NoPrice, 1e-9)
	assert.InDelta(t, 48.0, m.HoursToResolution, 1e-6)
	assert.Equal(t, "tok-yes", m.YesTokenID)
	assert.Equal(t, domain.TypeEconomic, m.MarketType)
	assert.False(t, m.Resolved)
}

func TestMapGammaMarket_NonBinaryRejected(t *testing.T) {
	gm := gammaMarket{
		ID:            "514",
		OutcomePrices: `["0.4","0.3","0.3"]`,
		Outcomes:      `["A","B","C"]`,
	}
	_, ok := mapGammaMarket(gm, mapNow)
	assert.False(t, ok)
}

func TestMapGammaMarket_ClosedResolvesByPrice(t *testing.T) {
	gm := gammaMarket{
		ID:            "515",
		Question:      "Will BTC close above 100k?",
		Closed:        true,
		OutcomePrices: `["0.999","0.001"]`,
		Outcomes:      `["Yes","No"]`,
	}
	m, ok := mapGammaMarket(gm, mapNow)
	require.True(t, ok)
	assert.True(t, m.Resolved)
	assert.Equal(t, "YES", m.Resolution)
	assert.True(t, m.ResolvedYes())
}

func TestClassifyMarketType(t *testing.T) {
	assert.Equal(t, domain.TypeCrypto15m, ClassifyMarketType("Will Bitcoin be above $100k at 15:00 UTC?"))
	assert.Equal(t, domain.TypeSports, ClassifyMarketType("Will the Lakers win the NBA finals?"))
	assert.Equal(t, domain.TypeEconomic, ClassifyMarketType("Will CPI come in above 3%?"))
	assert.Equal(t, domain.TypeRegulatory, ClassifyMarketType("Will the court ruling favor the plaintiff?"))
	assert.Equal(t, domain.TypeCultural, ClassifyMarketType("Will the movie win Best Picture at the Oscars?"))
	assert.Equal(t, domain.TypePolitical, ClassifyMarketType("Will candidate X win the runoff?"))
}

func TestFilterTier1(t *testing.T) {
	markets := []domain.Market{
		{MarketID: "ok", HoursToResolution: 24, Liquidity: 10000},
		{MarketID: "too-soon", HoursToResolution: 0.1, Liquidity: 10000},
		{MarketID: "too-far", HoursToResolution: 200, Liquidity: 10000},
		{MarketID: "illiquid", HoursToResolution: 24, Liquidity: 5000},
	}
	out := FilterTier1(markets, 0.25, 168, 5000)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].MarketID)
}

func TestFilterTier2_OnlyShortWindowCrypto(t *testing.T) {
	markets := []domain.Market{
		{MarketID: "btc", MarketType: domain.TypeCrypto15m, HoursToResolution: 0.25},
		{MarketID: "poli", MarketType: domain.TypePolitical, HoursToResolution: 0.25},
		{MarketID: "expired", MarketType: domain.TypeCrypto15m, HoursToResolution: -0.1},
	}
	out := FilterTier2(markets)
	require.Len(t, out, 1)
	assert.Equal(t, "btc", out[0].MarketID)
}

func TestTopLevelsUSD(t *testing.T) {
	levels := []bookLevel{
		{Price: "0.60", Size: "100"},
		{Price: "0.59", Size: "200"},
		{Price: "0.58", Size: "50"},
		{Price: "0.57", Size: "50"},
		{Price: "0.56", Size: "50"},
		{Price: "0.55", Size: "9999"}, // sexto nivel: fuera
	}
	out := topLevelsUSD(levels)
	require.Len(t, out, 5)
	assert.InDelta(t, 60.0, out[0], 1e-9)
	assert.InDelta(t, 118.0, out[1], 1e-9)
}
