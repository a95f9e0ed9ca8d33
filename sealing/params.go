package sealing

import (
	"sync"

	"github.com/chainforge/sealcore/common"
)

// AuthoringParams is the mutable {author, gas-range target, extra-data}
// tuple. All three fields are independently mutable; changes take effect on
// the next block assembly, never retroactively.
type AuthoringParams struct {
	mu             sync.RWMutex
	author         common.Address
	gasRangeTarget GasRangeTarget
	extraData      []byte
}

func newAuthoringParams() *AuthoringParams {
	return &AuthoringParams{
		gasRangeTarget: GasRangeTarget{Lower: 4_700_000, Upper: 6_283_184},
	}
}

func (p *AuthoringParams) SetAuthor(addr common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.author = addr
}

func (p *AuthoringParams) Author() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.author
}

func (p *AuthoringParams) SetGasRangeTarget(t GasRangeTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gasRangeTarget = t
}

func (p *AuthoringParams) GasRangeTarget() GasRangeTarget {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gasRangeTarget
}

func (p *AuthoringParams) SetExtraData(extra []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extraData = append([]byte(nil), extra...)
}

func (p *AuthoringParams) ExtraData() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]byte(nil), p.extraData...)
}

// snapshot captures all three fields under a single lock acquisition, used
// by the assembler so the open-block call sees a consistent triple.
func (p *AuthoringParams) snapshot() (common.Address, GasRangeTarget, []byte) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.author, p.gasRangeTarget, append([]byte(nil), p.extraData...)
}
