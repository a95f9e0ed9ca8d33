package sealing

import (
	"errors"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/log"
	"github.com/chainforge/sealcore/sealqueue"
)

// maxSkippedGasOverBudget is the "skip 8 then stop" cutoff: tolerate up to
// eight gas-over-budget skips before giving up, trading marginal block
// utilization for bounded assembly latency.
const maxSkippedGasOverBudget = 8

// minGasLeftToContinue is the floor below which the assembler stops even
// before the skip counter is exhausted: a transaction needs at least the
// base 21000 gas to have any chance of fitting.
const minGasLeftToContinue = 21_000

// assemble produces (ClosedBlock, prior-newest-hash) for chain's
// current tip. Never fails; degenerate cases (no transactions fit) produce
// an empty block: choose a parent, open a block, drain the pool against a
// five-way outcome table, close.
func (c *Core) assemble(chain ChainClient) (*sealqueue.ClosedBlock, common.Hash) {
	open, priorNewestHash := c.chooseBase(chain)

	if c.cfg.InfinitePendingBlock {
		// Useful only for pending-state queries; such a block would not
		// validate against any real consensus rule.
		open.SetGasLimit(^uint64(0))
	}

	info := chain.ChainInfo()

	var nonceCap *uint64
	if params := c.engine.Params(); params.DustProtectionTransition > 0 && info.BestBlockNumber+1 >= params.DustProtectionTransition {
		cap := params.NonceCapIncrement * (info.BestBlockNumber + 1)
		nonceCap = &cap
	}

	c.drainPool(chain, open, info, nonceCap)

	closed, err := open.Close()
	if err != nil {
		log.Error("failed to close assembled block", "err", err)
		closed = &sealqueue.ClosedBlock{Header: open.Header()}
	}
	return closed, priorNewestHash
}

// chooseBase reopens the newest history entry if its parent is the current
// best block (cheaper, preserves already executed transactions); otherwise
// it opens fresh atop the best tip.
func (c *Core) chooseBase(chain ChainClient) (OpenBlock, common.Hash) {
	c.sealingMu.Lock()
	info := chain.ChainInfo()
	priorNewest := c.state.history.PeekLast()
	var priorNewestHash common.Hash
	if priorNewest != nil {
		priorNewestHash = priorNewest.Hash()
	}
	reusable := c.state.history.PopIf(func(cb *sealqueue.ClosedBlock) bool {
		return cb.ParentHash() == info.BestBlockHash
	})
	c.sealingMu.Unlock()

	if reusable != nil {
		if open, err := chain.ReopenBlock(reusable); err == nil {
			return open, priorNewestHash
		}
		log.Warn("failed to reopen candidate, opening fresh block instead")
	}

	author, gasRange, extra := c.params.snapshot()
	open, err := chain.PrepareOpenBlock(author, gasRange, extra)
	if err != nil {
		log.Error("failed to open new block", "err", err)
	}
	return open, priorNewestHash
}

// drainPool pulls transactions from the pool in order, classifies each
// Push outcome, and afterwards removes invalid/not-allowed transactions
// from the pool.
func (c *Core) drainPool(chain ChainClient, open OpenBlock, info ChainInfo, nonceCap *uint64) {
	it := c.pool.Pending(chain, info.BestBlockNumber, info.BestBlockTimestamp, nonceCap)

	var (
		txCount int
		skipped int
		invalid []common.Hash
		notOK   []common.Hash
	)

	for {
		tx := it.Peek()
		if tx == nil {
			break
		}
		if err := chain.VerifyTransaction(tx); err != nil {
			invalid = append(invalid, tx.Hash())
			it.Shift()
			continue
		}

		err := open.Push(tx)
		switch {
		case err == nil:
			txCount++
			it.Shift()

		case isGasLimitReached(err):
			glr := asGasLimitReached(err)
			if glr.Gas > glr.GasLimit {
				invalid = append(invalid, tx.Hash())
				it.Shift()
				continue
			}
			gasLeft := glr.GasLimit - glr.GasUsed
			if gasLeft < minGasLeftToContinue {
				return
			}
			skipped++
			it.Pop()
			if skipped > maxSkippedGasOverBudget {
				return
			}

		case errors.Is(err, ErrInvalidNonce):
			// Likely caused by a prior gas-skip; self-heals on next block.
			it.Shift()

		case errors.Is(err, ErrAlreadyImported):
			it.Shift()

		case errors.Is(err, ErrNotAllowed):
			notOK = append(notOK, tx.Hash())
			it.Shift()

		default:
			invalid = append(invalid, tx.Hash())
			it.Shift()
		}
	}

	if len(invalid) > 0 {
		c.pool.Remove(invalid, true)
	}
	if len(notOK) > 0 {
		c.pool.Remove(notOK, false)
	}
	_ = txCount
}

func isGasLimitReached(err error) bool {
	var glr *GasLimitReachedError
	return errors.As(err, &glr)
}

func asGasLimitReached(err error) *GasLimitReachedError {
	var glr *GasLimitReachedError
	errors.As(err, &glr)
	return glr
}
