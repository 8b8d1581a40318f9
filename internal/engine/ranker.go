package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	clusterMaxResolutionGap = 3600.0 // segundos
	clusterMinJaccard       = 0.5
)

// AssignClusters agrupa candidatos correlacionados: mismo tipo de mercado,
// resolución a menos de una hora de distancia y solapamiento de keywords
// Jaccard >= 0.5. El cluster ID es determinista: el menor market_id del grupo.
func AssignClusters(cands []*domain.TradeCandidate) {
	n := len(cands)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) { parent[find(i)] = find(j) }

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if sameCluster(cands[i], cands[j]) {
				union(i, j)
			}
		}
	}

	// El representante de cada grupo es el market_id mínimo.
	rep := make(map[int]string)
	for i, c := range cands {
		root := find(i)
		if id, ok := rep[root]; !ok || c.Market.MarketID < id {
			rep[root] = c.Market.MarketID
		}
	}
	for i, c := range cands {
		c.MarketClusterID = fmt.Sprintf("cluster_%s", rep[find(i)])
	}
}

func sameCluster(a, b *domain.TradeCandidate) bool {
	if a.Market.MarketType != b.Market.MarketType {
		return false
	}
	gap := math.Abs(a.Market.ResolutionTime.Sub(b.Market.ResolutionTime).Seconds())
	if gap > clusterMaxResolutionGap {
		return false
	}
	return jaccard(a.Market.Keywords, b.Market.Keywords) >= clusterMinJaccard
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, k := range a {
		setA[strings.ToLower(k)] = true
	}
	inter := 0
	setB := make(map[string]bool, len(b))
	for _, k := range b {
		lower := strings.ToLower(k)
		if setB[lower] {
			continue
		}
		setB[lower] = true
		if setA[lower] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// RankAndSelect ordena los candidatos ejecutables por score descendente
// (empate por market_id ascendente) y selecciona hasta slots trades,
// respetando el límite de exposición por cluster. Los no seleccionados se
// marcan como SKIP con su razón. openClusterExposure es la exposición ya
// abierta por cluster.
func RankAndSelect(cands []*domain.TradeCandidate, slots int, clusterCapUSD float64, openClusterExposure map[string]float64) []*domain.TradeCandidate {
	var executable []*domain.TradeCandidate
	for _, c := range cands {
		if c.Side != domain.SideSkip {
			executable = append(executable, c)
		}
	}

	sort.Slice(executable, func(i, j int) bool {
		if executable[i].Score != executable[j].Score {
			return executable[i].Score > executable[j].Score
		}
		return executable[i].Market.MarketID < executable[j].Market.MarketID
	})

	exposure := make(map[string]float64, len(openClusterExposure))
	for k, v := range openClusterExposure {
		exposure[k] = v
	}

	var selected []*domain.TradeCandidate
	for _, c := range executable {
		if len(selected) >= slots {
			c.Side = domain.SideSkip
			c.SkipReason = domain.SkipRankedBelowCutoff
			continue
		}
		if exposure[c.MarketClusterID]+c.PositionSize > clusterCapUSD {
			c.Side = domain.SideSkip
			c.SkipReason = domain.SkipClusterExposure
			continue
		}
		exposure[c.MarketClusterID] += c.PositionSize
		selected = append(selected, c)
	}
	return selected
}
