package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictor/internal/domain"
)

func rankCandidate(id string, mt domain.MarketType, res time.Time, kws []string, score, size float64) *domain.TradeCandidate {
	return &domain.TradeCandidate{
		Market: domain.Market{
			MarketID:       id,
			MarketType:     mt,
			ResolutionTime: res,
			Keywords:       kws,
		},
		Side:         domain.SideBuyYes,
		Score:        score,
		PositionSize: size,
	}
}

func TestAssignClusters_RequiresTypeWindowAndOverlap(t *testing.T) {
	res := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	a := rankCandidate("m-a", domain.TypeCrypto15m, res, []string{"bitcoin", "btc"}, 1, 50)
	b := rankCandidate("m-b", domain.TypeCrypto15m, res.Add(30*time.Minute), []string{"bitcoin", "etf"}, 1, 50)
	c := rankCandidate("m-c", domain.TypePolitical, res, []string{"bitcoin", "btc"}, 1, 50)
	d := rankCandidate("m-d", domain.TypeCrypto15m, res.Add(2*time.Hour), []string{"bitcoin", "btc"}, 1, 50)

	AssignClusters([]*domain.TradeCandidate{a, b, c, d})

	// a y b comparten tipo, ventana y keywords (Jaccard 1/3 < 0.5... no):
	// bitcoin∩{bitcoin,etf} = 1, unión = 3 -> 0.33. No clusterizan.
	assert.NotEqual(t, a.MarketClusterID, b.MarketClusterID)
	// c difiere en tipo y d en ventana: clusters propios.
	assert.NotEqual(t, a.MarketClusterID, c.MarketClusterID)
	assert.NotEqual(t, a.MarketClusterID, d.MarketClusterID)
}

func TestAssignClusters_JaccardThreshold(t *testing.T) {
	res := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	a := rankCandidate("m-b", domain.TypeCrypto15m, res, []string{"bitcoin", "btc"}, 1, 50)
	b := rankCandidate("m-a", domain.TypeCrypto15m, res.Add(10*time.Minute), []string{"bitcoin", "BTC"}, 1, 50)

	AssignClusters([]*domain.TradeCandidate{a, b})

	// Jaccard 1.0 (case-insensitive): mismo cluster, con el menor market_id.
	require.Equal(t, a.MarketClusterID, b.MarketClusterID)
	assert.Equal(t, "cluster_m-a", a.MarketClusterID)
}

func TestRankAndSelect_ScoreDescThenMarketIDAsc(t *testing.T) {
	res := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	a := rankCandidate("m-b", domain.TypePolitical, res, []string{"x"}, 0.5, 50)
	b := rankCandidate("m-a", domain.TypeEconomic, res, []string{"y"}, 0.5, 50)
	c := rankCandidate("m-c", domain.TypeSports, res, []string{"z"}, 0.9, 50)
	AssignClusters([]*domain.TradeCandidate{a, b, c})

	selected := RankAndSelect([]*domain.TradeCandidate{a, b, c}, 2, 240, nil)

	require.Len(t, selected, 2)
	assert.Equal(t, "m-c", selected[0].Market.MarketID)
	// Empate en 0.5: gana el market_id menor.
	assert.Equal(t, "m-a", selected[1].Market.MarketID)
	assert.Equal(t, domain.SideSkip, a.Side)
	assert.Equal(t, domain.SkipRankedBelowCutoff, a.SkipReason)
}

func TestRankAndSelect_ClusterExposureCap(t *testing.T) {
	res := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	a := rankCandidate("m-a", domain.TypeCrypto15m, res, []string{"bitcoin", "btc"}, 0.9, 150)
	b := rankCandidate("m-b", domain.TypeCrypto15m, res.Add(5*time.Minute), []string{"bitcoin", "btc"}, 0.8, 150)
	AssignClusters([]*domain.TradeCandidate{a, b})
	require.Equal(t, a.MarketClusterID, b.MarketClusterID)

	// Cap de cluster 240: entra el primero, el segundo excede.
	selected := RankAndSelect([]*domain.TradeCandidate{a, b}, 5, 240, nil)

	require.Len(t, selected, 1)
	assert.Equal(t, "m-a", selected[0].Market.MarketID)
	assert.Equal(t, domain.SideSkip, b.Side)
	assert.Equal(t, domain.SkipClusterExposure, b.SkipReason)
}

func TestRankAndSelect_CountsExistingClusterExposure(t *testing.T) {
	res := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	a := rankCandidate("m-a", domain.TypeCrypto15m, res, []string{"bitcoin", "btc"}, 0.9, 100)
	AssignClusters([]*domain.TradeCandidate{a})

	open := map[string]float64{a.MarketClusterID: 200}
	selected := RankAndSelect([]*domain.TradeCandidate{a}, 5, 240, open)

	assert.Empty(t, selected)
	assert.Equal(t, domain.SkipClusterExposure, a.SkipReason)
}

func TestRankAndSelect_SkipsNotConsidered(t *testing.T) {
	res := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	a := rankCandidate("m-a", domain.TypePolitical, res, []string{"x"}, 0.9, 50)
	a.Side = domain.SideSkip
	a.SkipReason = domain.SkipEdgeBelowThreshold

	selected := RankAndSelect([]*domain.TradeCandidate{a}, 5, 240, nil)
	assert.Empty(t, selected)
	// La razón original del skip no se sobreescribe.
	assert.Equal(t, domain.SkipEdgeBelowThreshold, a.SkipReason)
}
