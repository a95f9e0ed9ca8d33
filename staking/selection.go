package staking

import (
	"math/big"
	"math/rand"
	"sort"

	"github.com/chainforge/sealcore/common"
)

// Ranking maps an address to its 1-based rank within a selection round (rank
// 1 signs first).
type Ranking map[common.Address]int

// SelectRanking performs weighted-without-replacement selection: candidates
// are drawn one at a time, each candidate's probability of being drawn
// proportional to its remaining stake point, and removed from the pool once
// drawn. The cumulative-weight search is inlined directly over a sorted
// slice rather than an auxiliary range-queue, since a queue would only
// amortize the same linear scan without changing which candidate is drawn.
//
// seed must be derived identically by every node computing the same block's
// ranking (e.g. from the block hash) for consensus to agree on rank order.
func SelectRanking(seed int64, stakes []Stake) Ranking {
	result := make(Ranking, len(stakes))
	if len(stakes) == 0 {
		return result
	}

	rng := rand.New(rand.NewSource(seed))

	pool := make([]Stake, len(stakes))
	copy(pool, stakes)
	sort.Slice(pool, func(i, j int) bool { return pool[i].Address.Hex() < pool[j].Address.Hex() })

	total := new(big.Int)
	for _, s := range pool {
		total.Add(total, s.Point)
	}

	rank := 1
	for len(pool) > 0 && total.Sign() > 0 {
		draw := new(big.Int).Rand(rng, total)

		cum := new(big.Int)
		chosen := len(pool) - 1
		for i, s := range pool {
			cum.Add(cum, s.Point)
			if draw.Cmp(cum) < 0 {
				chosen = i
				break
			}
		}

		result[pool[chosen].Address] = rank
		rank++

		total.Sub(total, pool[chosen].Point)
		pool = append(pool[:chosen], pool[chosen+1:]...)
	}
	return result
}
