package txpool

import (
	"math/big"
	"testing"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/config"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/sealing"
	"github.com/chainforge/sealcore/sealqueue"
)

// fakeChain is the minimal sealing.ChainClient this package's tests need:
// VerifyTransaction just caches a fixed sender so the pool can group by it.
type fakeChain struct{}

func (fakeChain) ChainInfo() sealing.ChainInfo                  { return sealing.ChainInfo{} }
func (fakeChain) BestBlockHeader() *types.Header                { return &types.Header{} }
func (fakeChain) BlockHeader(common.Hash) (*types.Header, bool) { return nil, false }
func (fakeChain) Block(common.Hash) (*types.Block, bool)        { return nil, false }
func (fakeChain) PrepareOpenBlock(common.Address, sealing.GasRangeTarget, []byte) (sealing.OpenBlock, error) {
	return nil, nil
}
func (fakeChain) ReopenBlock(*sealqueue.ClosedBlock) (sealing.OpenBlock, error) { return nil, nil }
func (fakeChain) ImportSealedBlock(*sealing.SealedBlock) error                  { return nil }
func (fakeChain) BroadcastProposalBlock(*sealing.SealedBlock)                   {}
func (fakeChain) VerifyTransaction(tx *types.Transaction) error {
	tx.WithSender(common.BytesToAddress([]byte{1}))
	return nil
}
func (fakeChain) TransactionReceipt(common.Hash) (*types.RichReceipt, bool) { return nil, false }

func newTx(nonce uint64, price int64) *types.Transaction {
	return types.NewTransaction(nonce, nil, big.NewInt(0), 21000, big.NewInt(price), nil)
}

func TestImportAndPending(t *testing.T) {
	opts := sealing.VerifierOptions{MinimalGasPrice: 1, BlockGasLimit: 8_000_000, TxGasLimit: 1_000_000}
	p := New(opts, config.PoolLimits{MaxCount: 100, MaxPerSender: 10})

	var chain fakeChain
	txs := []types.TaggedTransaction{
		{Kind: types.Local, Tx: newTx(0, 5)},
		{Kind: types.Local, Tx: newTx(1, 10)},
	}
	errs := p.Import(chain, txs)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("import %d: %v", i, err)
		}
	}

	if !p.HasLocalTransactions() {
		t.Fatal("expected local transactions to be tracked")
	}

	it := p.Pending(chain, 0, 0, nil)
	first := it.Peek()
	if first == nil || first.Nonce() != 0 {
		t.Fatalf("expected nonce-0 transaction first, got %v", first)
	}
	it.Shift()
	second := it.Peek()
	if second == nil || second.Nonce() != 1 {
		t.Fatalf("expected nonce-1 transaction second, got %v", second)
	}
}

func TestImportRejectsBelowMinimalGasPrice(t *testing.T) {
	opts := sealing.VerifierOptions{MinimalGasPrice: 100, BlockGasLimit: 8_000_000, TxGasLimit: 1_000_000}
	p := New(opts, config.PoolLimits{MaxCount: 100, MaxPerSender: 10})

	var chain fakeChain
	errs := p.Import(chain, []types.TaggedTransaction{{Kind: types.Unverified, Tx: newTx(0, 5)}})
	if errs[0] != sealing.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed, got %v", errs[0])
	}
}

func TestFutureAndLastNonce(t *testing.T) {
	opts := sealing.VerifierOptions{MinimalGasPrice: 1, BlockGasLimit: 8_000_000, TxGasLimit: 1_000_000}
	p := New(opts, config.PoolLimits{MaxCount: 100, MaxPerSender: 10})

	var chain fakeChain
	sender := common.BytesToAddress([]byte{1})
	_ = p.Import(chain, []types.TaggedTransaction{
		{Kind: types.Local, Tx: newTx(0, 5)},
		{Kind: types.Local, Tx: newTx(2, 5)}, // gap at nonce 1
	})

	future := p.Future(sender)
	if len(future) != 1 || future[0].Nonce() != 2 {
		t.Fatalf("expected exactly the nonce-2 transaction to be future, got %v", future)
	}

	last, ok := p.LastNonce(sender)
	if !ok || last != 2 {
		t.Fatalf("expected last nonce 2, got %d (ok=%v)", last, ok)
	}
}
