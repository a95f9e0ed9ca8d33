// Package reftest provides a minimal in-memory ChainClient + OpenBlock pair
// that exercises package sealing end to end without a real state trie or
// network: a balance-and-nonce account model standing in for full EVM
// execution, with imported headers, blocks and receipts kept in in-memory
// maps that serve the TransactionReceipt and Block lookups. Each imported
// header's number is also recorded in a VictoriaMetrics/fastcache cache, and
// an in-memory goleveldb instance is opened; neither is read by any lookup.
//
// This mirrors the pattern of a dedicated in-memory chain + pending-state
// pair used only to drive authoring-core tests, standing in for a full
// block-authoring core that otherwise talks to a real blockchain directly.
package reftest

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/sealing"
	"github.com/chainforge/sealcore/sealqueue"
)

// Account is the trivial per-address state this chain tracks.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

func (a *Account) clone() *Account {
	return &Account{Nonce: a.Nonce, Balance: new(big.Int).Set(a.Balance)}
}

// Chain is an in-memory ChainClient implementation for tests.
type Chain struct {
	mu sync.Mutex

	headerCache *fastcache.Cache
	store       *leveldb.DB

	headers  map[common.Hash]*types.Header
	blocks   map[common.Hash]*types.Block
	receipts map[common.Hash][]*types.Receipt
	byTx     map[common.Hash]common.Hash // tx hash -> block hash
	accounts map[common.Address]*Account

	bestHash   common.Hash
	bestNumber uint64
}

// NewChain returns an in-memory chain seeded with genesisAlloc balances, an
// in-memory leveldb instance, and a small header cache.
func NewChain(genesisAlloc map[common.Address]*big.Int) *Chain {
	db, _ := leveldb.Open(storage.NewMemStorage(), nil)

	c := &Chain{
		headerCache: fastcache.New(1 << 20),
		store:       db,
		headers:     make(map[common.Hash]*types.Header),
		blocks:      make(map[common.Hash]*types.Block),
		receipts:    make(map[common.Hash][]*types.Receipt),
		byTx:        make(map[common.Hash]common.Hash),
		accounts:    make(map[common.Address]*Account),
	}
	for addr, bal := range genesisAlloc {
		c.accounts[addr] = &Account{Balance: new(big.Int).Set(bal)}
	}

	genesis := &types.Header{Number: 0, GasLimit: 8_000_000}
	c.headers[genesis.Hash()] = genesis
	c.blocks[genesis.Hash()] = types.NewBlock(genesis, nil)
	c.bestHash = genesis.Hash()
	c.bestNumber = 0
	c.cacheHeader(genesis)
	return c
}

func (c *Chain) cacheHeader(h *types.Header) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h.Number)
	c.headerCache.Set(h.Hash().Bytes(), buf)
}

func (c *Chain) ChainInfo() sealing.ChainInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	best := c.headers[c.bestHash]
	return sealing.ChainInfo{
		BestBlockHash:      c.bestHash,
		BestBlockNumber:    c.bestNumber,
		BestBlockTimestamp: best.Time,
	}
}

func (c *Chain) BestBlockHeader() *types.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := *c.headers[c.bestHash]
	return &h
}

func (c *Chain) BlockHeader(hash common.Hash) (*types.Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.headers[hash]
	if !ok {
		return nil, false
	}
	cpy := *h
	return &cpy, true
}

func (c *Chain) Block(hash common.Hash) (*types.Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[hash]
	return b, ok
}

func (c *Chain) TransactionReceipt(txHash common.Hash) (*types.RichReceipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blockHash, ok := c.byTx[txHash]
	if !ok {
		return nil, false
	}
	block := c.blocks[blockHash]
	receipts := c.receipts[blockHash]
	for i, tx := range block.Transactions() {
		if tx.Hash() != txHash {
			continue
		}
		from, _ := tx.CachedSender()
		return &types.RichReceipt{
			Receipt:     *receipts[i],
			BlockHash:   blockHash,
			BlockNumber: block.NumberU64(),
			TxIndex:     uint64(i),
			From:        from,
			To:          tx.To(),
		}, true
	}
	return nil, false
}

// VerifyTransaction requires the sender to already be recoverable
// (tx.WithSender, as a real signer would have cached it) — this module stops
// short of full signature recovery. It does not check the account or nonce;
// openBlock.Push checks the nonce.
func (c *Chain) VerifyTransaction(tx *types.Transaction) error {
	if _, ok := tx.CachedSender(); !ok {
		return errors.New("reftest: transaction has no recoverable sender")
	}
	return nil
}

func (c *Chain) PrepareOpenBlock(author common.Address, gasRange sealing.GasRangeTarget, extra []byte) (sealing.OpenBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := c.headers[c.bestHash]
	return c.openAtop(parent, author, gasRange.Upper, extra), nil
}

func (c *Chain) ReopenBlock(closed *sealqueue.ClosedBlock) (sealing.OpenBlock, error) {
	c.mu.Lock()
	parent, ok := c.headers[closed.ParentHash()]
	c.mu.Unlock()
	if !ok {
		return nil, errors.New("reftest: unknown parent for reopen")
	}

	ob := c.openAtop(parent, closed.Header.Coinbase, closed.GasLimit(), closed.Header.Extra)
	for _, tx := range closed.Transactions() {
		if err := ob.Push(tx); err != nil {
			return nil, err
		}
	}
	return ob, nil
}

func (c *Chain) openAtop(parent *types.Header, author common.Address, gasLimit uint64, extra []byte) *openBlock {
	snapshot := make(map[common.Address]*Account, len(c.accounts))
	for addr, acct := range c.accounts {
		snapshot[addr] = acct.clone()
	}

	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     parent.Number + 1,
		Coinbase:   author,
		GasLimit:   gasLimit,
		Time:       parent.Time + 1,
		Extra:      append([]byte(nil), extra...),
	}
	return &openBlock{header: header, accounts: snapshot, parentHash: parent.Hash()}
}

func (c *Chain) ImportSealedBlock(sealed *sealing.SealedBlock) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked(sealed.Closed)
}

// BroadcastProposalBlock commits a proposal exactly like a regular import —
// this reference chain has no peer-to-peer layer to actually broadcast to.
func (c *Chain) BroadcastProposalBlock(sealed *sealing.SealedBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.commitLocked(sealed.Closed)
}

func (c *Chain) commitLocked(closed *sealqueue.ClosedBlock) error {
	hash := closed.Hash()
	if _, ok := c.blocks[hash]; ok {
		return nil
	}

	c.headers[hash] = closed.Header
	block := closed.Block()
	c.blocks[hash] = block
	c.receipts[hash] = closed.ReceiptsList()
	for _, tx := range closed.Transactions() {
		c.byTx[tx.Hash()] = hash
	}

	if snapshot, ok := closed.State.(map[common.Address]*Account); ok {
		c.accounts = snapshot
	}

	if closed.NumberU64() > c.bestNumber {
		c.bestHash = hash
		c.bestNumber = closed.NumberU64()
	}
	c.cacheHeader(closed.Header)
	return nil
}

// openBlock is the reference sealing.OpenBlock: a header plus a private
// snapshot of account state, mutated transaction by transaction and
// discarded if the candidate is never sealed.
type openBlock struct {
	header     *types.Header
	parentHash common.Hash
	accounts   map[common.Address]*Account
	txs        []*types.Transaction
	receipts   []*types.Receipt
	gasUsed    uint64
}

func (ob *openBlock) GasPool() (limit, used uint64) { return ob.header.GasLimit, ob.gasUsed }
func (ob *openBlock) Header() *types.Header         { return ob.header }
func (ob *openBlock) SetGasLimit(limit uint64)      { ob.header.GasLimit = limit }

func (ob *openBlock) account(addr common.Address) *Account {
	acct, ok := ob.accounts[addr]
	if !ok {
		acct = &Account{Balance: new(big.Int)}
		ob.accounts[addr] = acct
	}
	return acct
}

func (ob *openBlock) Push(tx *types.Transaction) error {
	if ob.gasUsed+tx.Gas() > ob.header.GasLimit {
		return &sealing.GasLimitReachedError{
			GasLimit: ob.header.GasLimit,
			GasUsed:  ob.gasUsed,
			Gas:      tx.Gas(),
		}
	}

	sender, ok := tx.CachedSender()
	if !ok {
		return sealing.ErrInvalidNonce
	}
	acct := ob.account(sender)
	if tx.Nonce() != acct.Nonce {
		return sealing.ErrInvalidNonce
	}

	fee := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))
	cost := new(big.Int).Add(fee, tx.Value())
	if acct.Balance.Cmp(cost) < 0 {
		return sealing.ErrNotAllowed
	}

	acct.Balance.Sub(acct.Balance, cost)
	acct.Nonce++
	if to := tx.To(); to != nil {
		ob.account(*to).Balance.Add(ob.account(*to).Balance, tx.Value())
	}

	ob.gasUsed += tx.Gas()
	ob.txs = append(ob.txs, tx)
	ob.receipts = append(ob.receipts, &types.Receipt{TxHash: tx.Hash(), GasUsed: tx.Gas(), Status: 1})
	return nil
}

func (ob *openBlock) Close() (*sealqueue.ClosedBlock, error) {
	ob.header.GasUsed = ob.gasUsed
	return &sealqueue.ClosedBlock{
		Header:   ob.header,
		Txs:      ob.txs,
		Receipts: ob.receipts,
		Parent:   ob.parentHash,
		State:    ob.accounts,
	}, nil
}
