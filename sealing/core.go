package sealing

import (
	"fmt"
	"sync"
	"time"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/config"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/gasprice"
	"github.com/chainforge/sealcore/log"
	"github.com/chainforge/sealcore/sealqueue"
	"github.com/chainforge/sealcore/worknotify"
)

// Core is the sealing controller: the public authoring API. All entry
// points follow the canonical lock order: any pool-related lock first,
// sealingMu second; sealingMu is always released before calling back into
// the chain client or engine, since engines may re-enter via UpdateSealing.
type Core struct {
	cfg config.Config

	params *AuthoringParams

	sealingMu sync.Mutex
	state     *sealingState

	pool      TxPool
	engine    Engine
	listeners *worknotify.Listeners
	gasPricer *gasprice.Recalibrator
}

// NewCore wires the sealing controller. gasPricer may be nil to disable gas
// price recalibration (e.g. in tests that don't care about it).
func NewCore(cfg config.Config, engine Engine, pool TxPool, gasPricer *gasprice.Recalibrator) *Core {
	c := &Core{
		cfg:       cfg,
		params:    newAuthoringParams(),
		pool:      pool,
		engine:    engine,
		gasPricer: gasPricer,
	}
	c.state = newSealingState(cfg.WorkQueueSize)
	c.state.enabled = true
	c.listeners = worknotify.New()
	vo := cfg.PoolVerificationOptions
	pool.SetVerifierOptions(VerifierOptions{
		MinimalGasPrice: uint64(vo.MinimalGasPrice),
		BlockGasLimit:   vo.BlockGasLimit,
		TxGasLimit:      vo.TxGasLimit,
	})
	return c
}

func (c *Core) setEnabled(v bool) {
	c.sealingMu.Lock()
	c.state.enabled = v
	c.sealingMu.Unlock()
}

func (c *Core) forcedSealing() bool {
	return c.cfg.ForceSealing || c.listeners.HasAny()
}

// --- authoring params -------------------------------------------------

func (c *Core) SetAuthor(addr common.Address)      { c.params.SetAuthor(addr) }
func (c *Core) Author() common.Address             { return c.params.Author() }
func (c *Core) SetGasRangeTarget(t GasRangeTarget) { c.params.SetGasRangeTarget(t) }
func (c *Core) SetExtraData(extra []byte)          { c.params.SetExtraData(extra) }

// SetSigner asks accounts to unlock address with password and wires the
// resulting signing function into the engine. Errors from accounts
// (ErrNoSigner, ErrInvalidPassword) surface here wrapped with %w, so
// errors.Is still matches them.
func (c *Core) SetSigner(accounts AccountProvider, address common.Address, password string) error {
	if err := c.engine.SetSigner(accounts, address, password); err != nil {
		return fmt.Errorf("set signer: %w", err)
	}
	return nil
}

// --- listeners ---------------------------------------------------------

// AddListener registers l and, if it is the first listener registered,
// enables the core — forcedSealing() depends on HasAny(), so adding a
// listener must wake a sleeping core. The enable happens after Add returns,
// once the listeners lock is released, to preserve the canonical
// sealingMu/listeners-lock acquisition order (sealingMu is never taken while
// holding the listeners lock).
func (c *Core) AddListener(l Listener) string {
	id, wasFirst := c.listeners.Add(l)
	if wasFirst {
		c.setEnabled(true)
	}
	return id
}

func (c *Core) RemoveListener(id string) { c.listeners.Remove(id) }

// --- requiresReseal --------------------------------------------------

func (c *Core) requiresReseal(bestNumber uint64) bool {
	c.sealingMu.Lock()
	defer c.sealingMu.Unlock()

	if !c.state.enabled {
		return false
	}

	internalEngine := c.engine.SealsInternally() != nil
	awake := bestNumber > c.state.sealingBlockLastRequest && bestNumber-c.state.sealingBlockLastRequest > 5
	shouldContinue := c.forcedSealing() || c.pool.HasLocalTransactions() || internalEngine || awake

	if !shouldContinue {
		c.state.enabled = false
		c.state.history.Reset()
		return false
	}

	c.state.nextAllowedReseal = time.Now().Add(c.cfg.ResealMinPeriod)
	return true
}

// --- UpdateSealing ----------------------------------------------------

// UpdateSealing is called on every event that may warrant a new block.
func (c *Core) UpdateSealing(chain ChainClient) {
	best := chain.ChainInfo().BestBlockNumber
	if !c.requiresReseal(best) {
		return
	}

	closed, priorNewestHash := c.assemble(chain)

	if closed.NumberU64() == 1 {
		if p := c.engine.Params(); p.ContainsBugfixHardFork {
			log.Warn("refusing to seal block #1: engine params carry a bugfix hard fork that should be enabled from genesis; restart with a corrected spec")
			return
		}
	}

	switch internal := c.engine.SealsInternally(); {
	case internal != nil && *internal:
		c.sealAndImportBlockInternally(chain, closed)
	case internal != nil && !*internal:
		log.Debug("engine declined to seal right now, dropping candidate")
	default:
		c.prepareWork(chain, closed, priorNewestHash)
	}
}

// --- sealAndImportBlockInternally -------------------------------------

func (c *Core) sealAndImportBlockInternally(chain ChainClient, closed *sealqueue.ClosedBlock) bool {
	c.sealingMu.Lock()
	empty := len(closed.Transactions()) == 0
	suppressEmpty := empty && !c.forcedSealing() && !time.Now().After(c.state.nextMandatoryReseal)
	c.sealingMu.Unlock()
	if suppressEmpty {
		return false
	}

	parent, ok := chain.BlockHeader(closed.ParentHash())
	if !ok {
		log.Warn("cannot seal: parent header not found", "parent", closed.ParentHash())
		return false
	}

	proposal := c.engine.GenerateSeal(closed, parent)
	switch proposal.Kind {
	case SealProposalKind:
		c.sealingMu.Lock()
		c.state.history.Push(closed)
		c.state.history.MarkLastUsed()
		c.state.nextMandatoryReseal = time.Now().Add(c.cfg.ResealMaxPeriod)
		c.sealingMu.Unlock()

		sealed, err := c.lockAndSeal(closed, proposal.Seal)
		if err != nil {
			log.Warn("failed to seal proposal block", "err", err)
			return false
		}
		chain.BroadcastProposalBlock(sealed)
		return true

	case SealRegular:
		c.sealingMu.Lock()
		c.state.nextMandatoryReseal = time.Now().Add(c.cfg.ResealMaxPeriod)
		c.sealingMu.Unlock()

		sealed, err := c.lockAndSeal(closed, proposal.Seal)
		if err != nil {
			log.Warn("failed to seal block", "err", err)
			return false
		}
		if err := chain.ImportSealedBlock(sealed); err != nil {
			log.Warn("failed to import internally sealed block", "err", err)
			return false
		}
		return true

	default:
		return false
	}
}

func (c *Core) lockAndSeal(closed *sealqueue.ClosedBlock, seal [][]byte) (*SealedBlock, error) {
	if err := c.engine.TrySeal(closed, seal); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeal, err)
	}
	return &SealedBlock{Closed: closed, Seal: seal}, nil
}

// --- prepareWork -------------------------------------------------------

func (c *Core) prepareWork(chain ChainClient, closed *sealqueue.ClosedBlock, priorNewestHash common.Hash) {
	c.sealingMu.Lock()
	last := c.state.history.PeekLast()
	pushNew := last == nil || last.Hash() != closed.Hash()
	if pushNew {
		c.state.history.Push(closed)
	}
	isNewWork := priorNewestHash != closed.Hash()
	if c.listeners.HasAny() {
		c.state.history.MarkLastUsed()
	}
	c.sealingMu.Unlock()

	if isNewWork {
		c.listeners.Notify(closed.Hash(), closed.Difficulty().Uint64(), closed.NumberU64())
	}
}

// --- SubmitSeal ---------------------------------------------------------

// SubmitSeal looks up the candidate named by blockHash, seals it, and
// imports the result into chain. Returns the sealed block's number+hash on
// success.
func (c *Core) SubmitSeal(chain ChainClient, blockHash common.Hash, seal [][]byte) (uint64, common.Hash, error) {
	action := sealqueue.Take
	if c.cfg.EnableResubmission {
		action = sealqueue.Clone
	}

	c.sealingMu.Lock()
	closed := c.state.history.GetByHash(action, blockHash)
	c.sealingMu.Unlock()

	if closed == nil {
		return 0, common.Hash{}, ErrUnknownSealHash
	}

	sealed, err := c.lockAndSeal(closed, seal)
	if err != nil {
		return 0, common.Hash{}, err
	}
	if err := chain.ImportSealedBlock(sealed); err != nil {
		return 0, common.Hash{}, err
	}
	return sealed.NumberU64(), sealed.Hash(), nil
}

// --- ChainNewBlocks ------------------------------------------------------

func (c *Core) ChainNewBlocks(chain ChainClient, imported, invalid, enacted, retracted []common.Hash) {
	_ = invalid

	if c.gasPricer != nil {
		best := chain.BestBlockHeader()
		c.gasPricer.Recalibrate(poolPriceAdapter{c.pool}, best.GasLimit)
	}

	for _, hash := range retracted {
		blk, ok := chain.Block(hash)
		if !ok {
			continue
		}
		tagged := make([]types.TaggedTransaction, len(blk.Transactions()))
		for i, tx := range blk.Transactions() {
			tagged[i] = types.TaggedTransaction{Kind: types.Retracted, Tx: tx}
		}
		c.pool.Import(chain, tagged)
	}

	c.pool.Cull(chain)

	if len(enacted) > 0 || (len(imported) > 0 && c.cfg.ResealOnUncle) {
		c.UpdateSealing(chain)
	}
}

type poolPriceAdapter struct{ pool TxPool }

func (a poolPriceAdapter) SetVerifierOptions(o gasprice.VerifierOptions) {
	a.pool.SetVerifierOptions(VerifierOptions{MinimalGasPrice: o.MinimalGasPrice, BlockGasLimit: o.BlockGasLimit, TxGasLimit: o.TxGasLimit})
}
func (a poolPriceAdapter) CurrentWorstGasPrice() uint64 { return a.pool.CurrentWorstGasPrice() }

// --- import paths --------------------------------------------------------

// ImportExternalTransactions imports txs tagged Unverified. If any succeeded
// and ResealOnExternalTx is set and a reseal is currently allowed,
// UpdateSealing is triggered.
func (c *Core) ImportExternalTransactions(chain ChainClient, txs []*types.Transaction) []error {
	tagged := make([]types.TaggedTransaction, len(txs))
	for i, tx := range txs {
		tagged[i] = types.TaggedTransaction{Kind: types.Unverified, Tx: tx}
	}
	errs := c.pool.Import(chain, tagged)

	anySucceeded := false
	for _, e := range errs {
		if e == nil {
			anySucceeded = true
			break
		}
	}

	if anySucceeded && c.cfg.ResealOnExternalTx && c.reselAllowedNow() {
		c.UpdateSealing(chain)
	}
	return errs
}

// ImportOwnTransaction imports a single locally originated transaction.
func (c *Core) ImportOwnTransaction(chain ChainClient, tx *types.Transaction) error {
	errs := c.pool.Import(chain, []types.TaggedTransaction{{Kind: types.Local, Tx: tx}})
	if errs[0] != nil {
		return errs[0]
	}

	if c.cfg.ResealOnOwnTx && c.reselAllowedNow() {
		if c.engine.SealsInternally() != nil {
			c.UpdateSealing(chain)
		} else if !c.PrepareWorkSealing(chain) {
			c.UpdateSealing(chain)
		}
	}
	return nil
}

func (c *Core) reselAllowedNow() bool {
	c.sealingMu.Lock()
	defer c.sealingMu.Unlock()
	return c.state.reselAllowed(time.Now())
}

// --- PrepareWorkSealing --------------------------------------------------

// PrepareWorkSealing is the lazy work producer used by on-demand readers. It
// reports whether fresh work was actually produced.
func (c *Core) PrepareWorkSealing(chain ChainClient) bool {
	c.sealingMu.Lock()
	hasWork := c.state.history.PeekLast() != nil
	if !hasWork {
		c.state.enabled = true
	}
	c.sealingMu.Unlock()

	produced := false
	if !hasWork {
		closed, priorNewestHash := c.assemble(chain)
		c.prepareWork(chain, closed, priorNewestHash)
		produced = true
	}

	c.sealingMu.Lock()
	c.state.sealingBlockLastRequest = chain.ChainInfo().BestBlockNumber
	c.sealingMu.Unlock()

	return produced
}

// --- read queries ---------------------------------------------------------

func (c *Core) newestIfFresherThan(bestNumber uint64) *sealqueue.ClosedBlock {
	cb := c.state.history.PeekLast()
	if cb == nil || cb.NumberU64() <= bestNumber {
		return nil
	}
	return cb
}

func (c *Core) poolPendingList(chain ChainClient, bestNumber, bestTimestamp uint64) []*types.Transaction {
	it := c.pool.Pending(chain, bestNumber, bestTimestamp, nil)
	var txs []*types.Transaction
	for {
		tx := it.Peek()
		if tx == nil {
			break
		}
		txs = append(txs, tx)
		it.Shift()
	}
	return txs
}

// ReadyTransactions honors the configured PendingSet mode: AlwaysQueue reads
// live from the pool; AlwaysSealing reads the newest candidate only if it is
// newer than the chain's current best block.
func (c *Core) ReadyTransactions(chain ChainClient) []*types.Transaction {
	info := chain.ChainInfo()
	if c.cfg.PendingSet == config.AlwaysSealing {
		cb := c.newestIfFresherThan(info.BestBlockNumber)
		if cb == nil {
			return nil
		}
		return cb.Transactions()
	}
	return c.poolPendingList(chain, info.BestBlockNumber, info.BestBlockTimestamp)
}

// Transaction looks up a single pending transaction by hash, honoring
// PendingSet mode like ReadyTransactions.
func (c *Core) Transaction(chain ChainClient, bestBlock uint64, hash common.Hash) *types.Transaction {
	if c.cfg.PendingSet == config.AlwaysSealing {
		cb := c.newestIfFresherThan(bestBlock)
		if cb == nil {
			return nil
		}
		for _, tx := range cb.Transactions() {
			if tx.Hash() == hash {
				return tx
			}
		}
		return nil
	}
	if tx, ok := c.pool.Find(hash); ok {
		return tx
	}
	return nil
}

// PendingTransactions always consults the pool's scoped pending set,
// independent of PendingSet mode: the pool still holds it even when the
// newest candidate is stale for the queried best block.
func (c *Core) PendingTransactions(chain ChainClient, bestBlock uint64) []*types.Transaction {
	info := chain.ChainInfo()
	return c.poolPendingList(chain, bestBlock, info.BestBlockTimestamp)
}

// PendingReceipt returns the receipt for hash from the newest candidate, iff
// it is newer than bestBlock (AlwaysSealing-style staleness gating applies
// regardless of PendingSet mode, matching S3). On a cache miss this falls
// back to the chain client's already-imported receipts — the correctness
// choice documented in DESIGN.md.
func (c *Core) PendingReceipt(chain ChainClient, bestBlock uint64, hash common.Hash) *types.RichReceipt {
	cb := c.newestIfFresherThan(bestBlock)
	if cb != nil {
		for i, tx := range cb.Transactions() {
			if tx.Hash() != hash {
				continue
			}
			from, _ := tx.CachedSender()
			return &types.RichReceipt{
				Receipt:     *cb.ReceiptsList()[i],
				BlockHash:   cb.Hash(),
				BlockNumber: cb.NumberU64(),
				TxIndex:     uint64(i),
				From:        from,
				To:          tx.To(),
			}
		}
	}
	if rr, ok := chain.TransactionReceipt(hash); ok {
		return rr
	}
	return nil
}

// PendingReceipts returns every receipt in the newest candidate, iff it is
// newer than bestBlock; see PendingReceipt for the chain-fallback decision.
func (c *Core) PendingReceipts(chain ChainClient, bestBlock uint64) []*types.Receipt {
	cb := c.newestIfFresherThan(bestBlock)
	if cb != nil {
		return cb.ReceiptsList()
	}
	return nil
}

// PendingBlock returns the newest candidate's block view, iff newer than
// bestBlock.
func (c *Core) PendingBlock(bestBlock uint64) *types.Block {
	cb := c.newestIfFresherThan(bestBlock)
	if cb == nil {
		return nil
	}
	return cb.Block()
}

// PendingBlockHeader returns the newest candidate's header, iff newer than
// bestBlock.
func (c *Core) PendingBlockHeader(bestBlock uint64) *types.Header {
	cb := c.newestIfFresherThan(bestBlock)
	if cb == nil {
		return nil
	}
	h := *cb.Header
	return &h
}

// PendingState returns the newest candidate's post-execution state handle,
// iff newer than bestBlock.
func (c *Core) PendingState(bestBlock uint64) interface{} {
	cb := c.newestIfFresherThan(bestBlock)
	if cb == nil {
		return nil
	}
	return cb.State
}

// IsCurrentlySealing reports the work history's in-use flag.
func (c *Core) IsCurrentlySealing() bool { return c.state.history.InUse() }

// CanProduceWorkPackage is true iff the engine does not seal internally.
func (c *Core) CanProduceWorkPackage() bool { return c.engine.SealsInternally() == nil }

// Future and LastNonce resolve the two endpoints the source leaves
// routing to the pool instead of panicking.
func (c *Core) Future(addr common.Address) []*types.Transaction { return c.pool.Future(addr) }

func (c *Core) LastNonce(addr common.Address) (uint64, bool) { return c.pool.LastNonce(addr) }
