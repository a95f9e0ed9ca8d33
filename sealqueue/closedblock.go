// Package sealqueue implements the bounded work history: a fixed-capacity
// FIFO of closed, not-yet-sealed candidate blocks, plus the ClosedBlock
// value it stores. Eviction is triggered by capacity overflow or an
// explicit Reset.
package sealqueue

import (
	"math/big"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/core/types"
)

// ClosedBlock is a fully assembled but unsealed block: header, ordered
// transactions, receipts, the state produced by executing them, and the
// parent hash it was built on. It is opaque to everything outside the
// authoring core beyond the read-only accessors below.
type ClosedBlock struct {
	Header   *types.Header
	Txs      []*types.Transaction
	Receipts []*types.Receipt
	Parent   common.Hash

	// State is an opaque handle to the post-execution world state. The
	// authoring core never inspects it; it is threaded back to the chain
	// client on import/seal.
	State interface{}
}

func (cb *ClosedBlock) Hash() common.Hash       { return cb.Header.Hash() }
func (cb *ClosedBlock) ParentHash() common.Hash { return cb.Parent }
func (cb *ClosedBlock) NumberU64() uint64       { return cb.Header.Number }
func (cb *ClosedBlock) GasLimit() uint64        { return cb.Header.GasLimit }
func (cb *ClosedBlock) GasUsed() uint64         { return cb.Header.GasUsed }
func (cb *ClosedBlock) Transactions() []*types.Transaction { return cb.Txs }
func (cb *ClosedBlock) ReceiptsList() []*types.Receipt     { return cb.Receipts }

func (cb *ClosedBlock) Difficulty() *big.Int {
	if cb.Header.Difficulty == nil {
		return big.NewInt(0)
	}
	return cb.Header.Difficulty
}

// Block produces the plain types.Block view of the candidate (no receipts,
// no state) suitable for broadcast-as-proposal or pending-block reads.
func (cb *ClosedBlock) Block() *types.Block { return types.NewBlock(cb.Header, cb.Txs) }
