// Package staking computes the signer-rotation input the internal PoA
// engine (engine/poa) consults: given a snapshot of staked candidates,
// produce a deterministic rank ordering and, from a rank, the mandatory
// signing delay that enforces "higher stake signs sooner".
package staking

import (
	"math/big"

	"github.com/chainforge/sealcore/common"
)

// blocksPerYear assumes a 10-second block period; CalcSelectionPoint
// corrects for a different period via the referenceBlock ratio below.
const blocksPerYear = 3_600_000

const defaultBlockPeriodSec = 10

// CalcSelectionPoint computes a candidate's new selection point after an
// additional stake of addStake at block nowBlock, given its prior point
// prevPoint and the block at which that prior stake was placed
// (stakeBlock).
func CalcSelectionPoint(prevPoint, addStake *big.Int, nowBlock, stakeBlock uint64, periodSec uint64) *big.Int {
	if periodSec == 0 {
		periodSec = defaultBlockPeriodSec
	}
	referenceBlock := int64(blocksPerYear * defaultBlockPeriodSec / periodSec)

	now := new(big.Int).SetUint64(nowBlock)
	stakeAt := new(big.Int).SetUint64(stakeBlock)

	ratio := new(big.Int).Mul(now, big.NewInt(100))
	denom := new(big.Int).Add(big.NewInt(referenceBlock), stakeAt)
	if denom.Sign() == 0 {
		denom = big.NewInt(1)
	}
	ratio.Div(ratio, denom)
	if ratio.Cmp(big.NewInt(100)) > 0 {
		ratio = big.NewInt(100)
	}

	sum := new(big.Int).Add(prevPoint, addStake)
	if sum.Sign() == 0 {
		sum = big.NewInt(1)
	}
	share := new(big.Int).Div(prevPoint, sum)
	advantage := new(big.Int).Mul(prevPoint, share)
	advantage.Mul(advantage, ratio)
	advantage.Div(advantage, big.NewInt(100))

	point := new(big.Int).Add(prevPoint, advantage)
	point.Add(point, addStake)
	return point
}

// Stake is a single candidate's current standing, addressed by account.
type Stake struct {
	Address common.Address
	Point   *big.Int
}
