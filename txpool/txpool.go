// Package txpool implements a reference in-memory transaction pool
// satisfying sealing.TxPool: per-sender nonce-ordered queues,
// price-descending cross-sender iteration, and the admission thresholds the
// gas-price recalibrator rewrites.
//
// Grounded on the shape common to the retrieved txpool references
// (single mutex-guarded pool, per-sender nonce-sorted lists, a
// price-and-nonce iterator merging sender queues highest-price-first) —
// most directly the structure of core/txpool's TxPool.Pending /
// TransactionsByPriceAndNonce pairing.
package txpool

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/config"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/sealing"
)

// Pool is the reference TxPool implementation.
type Pool struct {
	mu sync.RWMutex

	opts   sealing.VerifierOptions
	limits config.PoolLimits

	bySender map[common.Address][]*types.Transaction // nonce-ascending
	byHash   map[common.Hash]*types.Transaction
	local    map[common.Hash]bool
}

func New(opts sealing.VerifierOptions, limits config.PoolLimits) *Pool {
	return &Pool{
		opts:     opts,
		limits:   limits,
		bySender: make(map[common.Address][]*types.Transaction),
		byHash:   make(map[common.Hash]*types.Transaction),
		local:    make(map[common.Hash]bool),
	}
}

func (p *Pool) SetVerifierOptions(opts sealing.VerifierOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = opts
}

// Import validates and inserts each tagged transaction, returning one error
// per input transaction (nil on success), in order.
func (p *Pool) Import(client sealing.ChainClient, txs []types.TaggedTransaction) []error {
	p.mu.Lock()
	defer p.mu.Unlock()

	errs := make([]error, len(txs))
	for i, tagged := range txs {
		errs[i] = p.importOneLocked(client, tagged)
	}
	return errs
}

func (p *Pool) importOneLocked(client sealing.ChainClient, tagged types.TaggedTransaction) error {
	tx := tagged.Tx
	hash := tx.Hash()

	if _, ok := p.byHash[hash]; ok {
		return sealing.ErrAlreadyImported
	}

	if tx.Gas() > p.opts.TxGasLimit {
		return &sealing.GasLimitReachedError{GasLimit: p.opts.TxGasLimit, GasUsed: 0, Gas: tx.Gas()}
	}

	if !tx.IsService() && tx.GasPrice() != nil && tx.GasPrice().IsUint64() && tx.GasPrice().Uint64() < p.opts.MinimalGasPrice {
		return sealing.ErrNotAllowed
	}

	if len(p.byHash) >= p.limits.MaxCount {
		return sealing.ErrNotAllowed
	}

	sender, err := senderOf(client, tx)
	if err != nil {
		return err
	}
	if len(p.bySender[sender]) >= p.limits.MaxPerSender {
		return sealing.ErrNotAllowed
	}

	queue := p.bySender[sender]
	idx := sort.Search(len(queue), func(i int) bool { return queue[i].Nonce() >= tx.Nonce() })
	if idx < len(queue) && queue[idx].Nonce() == tx.Nonce() {
		return sealing.ErrAlreadyImported
	}
	queue = append(queue, nil)
	copy(queue[idx+1:], queue[idx:])
	queue[idx] = tx
	p.bySender[sender] = queue

	p.byHash[hash] = tx
	if tagged.Kind == types.Local {
		p.local[hash] = true
	}
	return nil
}

// senderOf returns tx's cached sender if one is present, otherwise runs the
// chain client's verification pass, which is expected to populate it.
func senderOf(client sealing.ChainClient, tx *types.Transaction) (common.Address, error) {
	if addr, ok := tx.CachedSender(); ok {
		return addr, nil
	}
	if err := client.VerifyTransaction(tx); err != nil {
		return common.Address{}, err
	}
	if addr, ok := tx.CachedSender(); ok {
		return addr, nil
	}
	return common.Address{}, sealing.ErrInvalidNonce
}

func (p *Pool) Remove(hashes []common.Hash, invalid bool) {
	_ = invalid
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		p.removeLocked(h)
	}
}

func (p *Pool) removeLocked(hash common.Hash) {
	tx, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	delete(p.local, hash)

	sender, ok := tx.CachedSender()
	if !ok {
		return
	}
	queue := p.bySender[sender]
	for i, t := range queue {
		if t.Hash() == hash {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(p.bySender, sender)
	} else {
		p.bySender[sender] = queue
	}
}

// Cull is a no-op: reconciling pool nonces against on-chain account state
// needs state-trie access, which this module treats as a ChainClient-owned
// boundary it never reaches across. A ChainClient
// that wants culling can call Remove itself after its own nonce check.
func (p *Pool) Cull(client sealing.ChainClient) { _ = client }

func (p *Pool) HasLocalTransactions() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.local) > 0
}

func (p *Pool) CurrentWorstGasPrice() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var worst uint64
	first := true
	for _, tx := range p.byHash {
		if tx.GasPrice() == nil || !tx.GasPrice().IsUint64() {
			continue
		}
		price := tx.GasPrice().Uint64()
		if first || price < worst {
			worst = price
			first = false
		}
	}
	return worst
}

func (p *Pool) Find(hash common.Hash) (*types.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.byHash[hash]
	return tx, ok
}

func (p *Pool) Future(addr common.Address) []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	queue := p.bySender[addr]
	if len(queue) == 0 {
		return nil
	}
	var future []*types.Transaction
	expected := queue[0].Nonce()
	for _, tx := range queue {
		if tx.Nonce() != expected {
			future = append(future, tx)
		} else {
			expected++
		}
	}
	return future
}

func (p *Pool) LastNonce(addr common.Address) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	queue := p.bySender[addr]
	if len(queue) == 0 {
		return 0, false
	}
	return queue[len(queue)-1].Nonce(), true
}

// Pending returns a price-descending, nonce-ordered-per-sender iterator over
// the pool, honoring an optional nonce cap (the dust-protection transition's
// ceiling: transactions with a nonce above it are left out).
func (p *Pool) Pending(client sealing.ChainClient, bestNumber, bestTimestamp uint64, nonceCap *uint64) sealing.PendingIterator {
	_ = client
	_ = bestTimestamp

	p.mu.RLock()
	defer p.mu.RUnlock()

	heads := &priceHeap{}
	queues := make(map[common.Address][]*types.Transaction, len(p.bySender))
	for sender, queue := range p.bySender {
		filtered := queue
		if nonceCap != nil {
			cut := sort.Search(len(queue), func(i int) bool { return queue[i].Nonce() > *nonceCap })
			filtered = queue[:cut]
		}
		if len(filtered) == 0 {
			continue
		}
		cpy := append([]*types.Transaction(nil), filtered...)
		queues[sender] = cpy
		heap.Push(heads, cpy[0])
	}
	return &priceAndNonceIterator{queues: queues, heads: heads}
}

type priceHeap []*types.Transaction

func (h priceHeap) Len() int { return len(h) }
func (h priceHeap) Less(i, j int) bool {
	pi, pj := h[i].GasPrice(), h[j].GasPrice()
	if pi == nil || pj == nil {
		return false
	}
	return pi.Cmp(pj) > 0 // highest price first
}
func (h priceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priceHeap) Push(x interface{}) { *h = append(*h, x.(*types.Transaction)) }
func (h *priceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	tx := old[n-1]
	*h = old[:n-1]
	return tx
}

// priceAndNonceIterator merges each sender's nonce-ordered queue into a
// single price-descending stream, mirroring
// types.TransactionsByPriceAndNonce's Peek/Shift/Pop contract.
type priceAndNonceIterator struct {
	queues map[common.Address][]*types.Transaction
	heads  *priceHeap
}

func (it *priceAndNonceIterator) senderOf(tx *types.Transaction) common.Address {
	addr, _ := tx.CachedSender()
	return addr
}

func (it *priceAndNonceIterator) Peek() *types.Transaction {
	if it.heads.Len() == 0 {
		return nil
	}
	return (*it.heads)[0]
}

func (it *priceAndNonceIterator) Shift() {
	if it.heads.Len() == 0 {
		return
	}
	tx := heap.Pop(it.heads).(*types.Transaction)
	sender := it.senderOf(tx)
	queue := it.queues[sender]
	if len(queue) > 1 {
		it.queues[sender] = queue[1:]
		heap.Push(it.heads, it.queues[sender][0])
	} else {
		delete(it.queues, sender)
	}
}

func (it *priceAndNonceIterator) Pop() {
	if it.heads.Len() == 0 {
		return
	}
	tx := heap.Pop(it.heads).(*types.Transaction)
	delete(it.queues, it.senderOf(tx))
}
