package staking

import (
	"math/big"
	"testing"

	"github.com/chainforge/sealcore/common"
)

func addr(b byte) common.Address {
	var a common.Address
	a[len(a)-1] = b
	return a
}

func TestSelectRankingDeterministic(t *testing.T) {
	stakes := []Stake{
		{Address: addr(1), Point: big.NewInt(100)},
		{Address: addr(2), Point: big.NewInt(50)},
		{Address: addr(3), Point: big.NewInt(25)},
	}
	r1 := SelectRanking(42, stakes)
	r2 := SelectRanking(42, stakes)
	if len(r1) != 3 || len(r2) != 3 {
		t.Fatalf("expected 3 ranked candidates, got %d and %d", len(r1), len(r2))
	}
	for a, rank := range r1 {
		if r2[a] != rank {
			t.Fatalf("same seed produced different ranks for %v: %d vs %d", a, rank, r2[a])
		}
	}
	seen := make(map[int]bool)
	for _, rank := range r1 {
		if seen[rank] {
			t.Fatalf("duplicate rank %d", rank)
		}
		seen[rank] = true
	}
}

func TestSelectRankingEmpty(t *testing.T) {
	if r := SelectRanking(1, nil); len(r) != 0 {
		t.Fatalf("expected empty ranking, got %v", r)
	}
}

func TestDelayMonotonic(t *testing.T) {
	if d := Delay(1); d != 0 {
		t.Fatalf("rank 1 should have zero delay, got %v", d)
	}
	prev := Delay(1)
	for rank := 2; rank <= GroupSize*4; rank++ {
		d := Delay(rank)
		if d < prev {
			t.Fatalf("delay must be non-decreasing with rank: rank %d delay %v < prior %v", rank, d, prev)
		}
		prev = d
	}
}

func TestDelayGroupBoundary(t *testing.T) {
	got := Delay(GroupSize + 1)
	want := GroupDelay
	if got != want {
		t.Fatalf("first rank of second group should pay exactly one GroupDelay, got %v want %v", got, want)
	}
}
