package sealing_test

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/chainforge/sealcore/accounts"
	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/config"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/engine/extwork"
	"github.com/chainforge/sealcore/engine/poa"
	"github.com/chainforge/sealcore/reftest"
	"github.com/chainforge/sealcore/sealing"
	"github.com/chainforge/sealcore/staking"
	"github.com/chainforge/sealcore/txpool"
)

func newCoreWithExternalEngine(t *testing.T, alice common.Address, balance *big.Int) (*sealing.Core, *reftest.Chain) {
	t.Helper()
	chain := reftest.NewChain(map[common.Address]*big.Int{alice: balance})
	cfg := config.Default()
	pool := txpool.New(sealing.VerifierOptions{
		MinimalGasPrice: uint64(cfg.PoolVerificationOptions.MinimalGasPrice),
		BlockGasLimit:   cfg.PoolVerificationOptions.BlockGasLimit,
		TxGasLimit:      cfg.PoolVerificationOptions.TxGasLimit,
	}, cfg.PoolLimits)
	engine := extwork.New(extwork.AlwaysValid{}, sealing.EngineParams{})
	core := sealing.NewCore(cfg, engine, pool, nil)
	core.SetAuthor(alice)
	return core, chain
}

// recordingListener captures every work notification it receives.
type recordingListener struct {
	hashes []common.Hash
}

func (l *recordingListener) Notify(powHash common.Hash, difficulty uint64, number uint64) {
	l.hashes = append(l.hashes, powHash)
}

func TestAuthoringParamsRoundTrip(t *testing.T) {
	alice := common.BytesToAddress([]byte{0xA1})
	core, _ := newCoreWithExternalEngine(t, alice, big.NewInt(1_000_000))

	if core.Author() != alice {
		t.Fatalf("expected author %v, got %v", alice, core.Author())
	}

	bob := common.BytesToAddress([]byte{0xB0})
	core.SetAuthor(bob)
	if core.Author() != bob {
		t.Fatalf("expected author %v after SetAuthor, got %v", bob, core.Author())
	}
}

// TestImportOwnTransactionProducesWork verifies that a locally originated
// transaction, with an external-work engine and reseal_on_own_tx, lazily
// produces a work package and notifies listeners without sealing internally.
func TestImportOwnTransactionProducesWork(t *testing.T) {
	alice := common.BytesToAddress([]byte{0xA1})
	bob := common.BytesToAddress([]byte{0xB0})
	core, chain := newCoreWithExternalEngine(t, alice, big.NewInt(1_000_000))

	l := &recordingListener{}
	id := core.AddListener(l)
	defer core.RemoveListener(id)

	tx := types.NewTransaction(0, &bob, big.NewInt(1000), 21000, big.NewInt(20_000_000_000), nil)
	tx.WithSender(alice)

	if err := core.ImportOwnTransaction(chain, tx); err != nil {
		t.Fatalf("ImportOwnTransaction: %v", err)
	}

	if len(l.hashes) == 0 {
		t.Fatal("expected at least one work notification after importing an own transaction")
	}
	if !core.IsCurrentlySealing() {
		t.Fatal("expected the work history to be marked in-use once a listener is registered")
	}
}

// TestPrepareWorkSealingIsLazy verifies that a second call with no
// intervening chain change does not produce new work.
func TestPrepareWorkSealingIsLazy(t *testing.T) {
	alice := common.BytesToAddress([]byte{0xA1})
	core, chain := newCoreWithExternalEngine(t, alice, big.NewInt(1_000_000))

	if produced := core.PrepareWorkSealing(chain); !produced {
		t.Fatal("expected the first PrepareWorkSealing call to produce fresh work")
	}
	if produced := core.PrepareWorkSealing(chain); produced {
		t.Fatal("expected the second PrepareWorkSealing call to reuse existing work")
	}
}

// TestSubmitSealTakeConsumesCandidate verifies that with
// enable_resubmission disabled, SubmitSeal removes the candidate from
// history so a second submission for the same hash fails.
func TestSubmitSealTakeConsumesCandidate(t *testing.T) {
	alice := common.BytesToAddress([]byte{0xA1})
	chain := reftest.NewChain(map[common.Address]*big.Int{alice: big.NewInt(1_000_000)})
	cfg := config.Default()
	cfg.EnableResubmission = false
	pool := txpool.New(sealing.VerifierOptions{
		MinimalGasPrice: uint64(cfg.PoolVerificationOptions.MinimalGasPrice),
		BlockGasLimit:   cfg.PoolVerificationOptions.BlockGasLimit,
		TxGasLimit:      cfg.PoolVerificationOptions.TxGasLimit,
	}, cfg.PoolLimits)
	engine := extwork.New(extwork.AlwaysValid{}, sealing.EngineParams{})
	core := sealing.NewCore(cfg, engine, pool, nil)
	core.SetAuthor(alice)

	core.PrepareWorkSealing(chain)
	header := core.PendingBlockHeader(0)
	if header == nil {
		t.Fatal("expected a pending block header after PrepareWorkSealing")
	}
	blockHash := header.Hash()

	if _, _, err := core.SubmitSeal(chain, blockHash, [][]byte{{0x01}}); err != nil {
		t.Fatalf("first SubmitSeal: %v", err)
	}
	if _, _, err := core.SubmitSeal(chain, blockHash, [][]byte{{0x01}}); err != sealing.ErrUnknownSealHash {
		t.Fatalf("expected ErrUnknownSealHash on resubmission, got %v", err)
	}
}

// TestSubmitSealCloneAllowsResubmission covers the Clone retrieval action:
// with enable_resubmission on (the default), the same candidate can be
// submitted more than once.
func TestSubmitSealCloneAllowsResubmission(t *testing.T) {
	alice := common.BytesToAddress([]byte{0xA1})
	core, chain := newCoreWithExternalEngine(t, alice, big.NewInt(1_000_000))

	core.PrepareWorkSealing(chain)
	header := core.PendingBlockHeader(0)
	if header == nil {
		t.Fatal("expected a pending block header after PrepareWorkSealing")
	}
	blockHash := header.Hash()

	if _, _, err := core.SubmitSeal(chain, blockHash, [][]byte{{0x01}}); err != nil {
		t.Fatalf("first SubmitSeal: %v", err)
	}
	if _, _, err := core.SubmitSeal(chain, blockHash, [][]byte{{0x01}}); err != nil {
		t.Fatalf("expected resubmission to succeed under Clone retrieval, got %v", err)
	}
}

// TestPendingTransactionsIgnoresPendingSetMode verifies that
// PendingTransactions always reads the pool even in AlwaysSealing mode,
// while ReadyTransactions honors the mode and reports nothing for a stale
// candidate.
func TestPendingTransactionsIgnoresPendingSetMode(t *testing.T) {
	alice := common.BytesToAddress([]byte{0xA1})
	bob := common.BytesToAddress([]byte{0xB0})

	chain := reftest.NewChain(map[common.Address]*big.Int{alice: big.NewInt(1_000_000_000_000_000_000)})
	cfg := config.Default()
	cfg.PendingSet = config.AlwaysSealing
	pool := txpool.New(sealing.VerifierOptions{
		MinimalGasPrice: uint64(cfg.PoolVerificationOptions.MinimalGasPrice),
		BlockGasLimit:   cfg.PoolVerificationOptions.BlockGasLimit,
		TxGasLimit:      cfg.PoolVerificationOptions.TxGasLimit,
	}, cfg.PoolLimits)
	engine := extwork.New(extwork.AlwaysValid{}, sealing.EngineParams{})
	core := sealing.NewCore(cfg, engine, pool, nil)
	core.SetAuthor(alice)

	tx := types.NewTransaction(0, &bob, big.NewInt(1000), 21000, big.NewInt(20_000_000_000), nil)
	tx.WithSender(alice)
	if err := core.ImportOwnTransaction(chain, tx); err != nil {
		t.Fatalf("ImportOwnTransaction: %v", err)
	}

	// Make the candidate stale: seal and import it so the chain's best block
	// reaches the candidate's own number, and query pending transactions
	// against a best block past it.
	header := core.PendingBlockHeader(0)
	if header == nil {
		t.Fatal("expected a pending block header after ImportOwnTransaction")
	}
	if _, _, err := core.SubmitSeal(chain, header.Hash(), [][]byte{{0x01}}); err != nil {
		t.Fatalf("SubmitSeal: %v", err)
	}
	staleBest := uint64(1_000_000)

	ready := core.ReadyTransactions(chain)
	if len(ready) != 0 {
		t.Fatalf("expected ReadyTransactions to report nothing once the candidate looks stale, got %d", len(ready))
	}

	pending := core.PendingTransactions(chain, staleBest)
	if len(pending) != 1 {
		t.Fatalf("expected PendingTransactions to still report the pooled transaction, got %d", len(pending))
	}
}

// TestUpdateSealingInternalEngineSealsAndImports exercises the internal
// sealing dispatch: a rank-1 sole candidate signs immediately and the
// resulting block is imported without going through SubmitSeal.
func TestUpdateSealingInternalEngineSealsAndImports(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	provider := accounts.NewProvider()
	const password = "hunter2"
	addr := provider.Import(priv, password)

	chain := reftest.NewChain(map[common.Address]*big.Int{addr: big.NewInt(1_000_000)})
	cfg := config.Default()
	cfg.ForceSealing = true
	pool := txpool.New(sealing.VerifierOptions{
		MinimalGasPrice: uint64(cfg.PoolVerificationOptions.MinimalGasPrice),
		BlockGasLimit:   cfg.PoolVerificationOptions.BlockGasLimit,
		TxGasLimit:      cfg.PoolVerificationOptions.TxGasLimit,
	}, cfg.PoolLimits)

	stakes := singleStakeSource{stakes: []staking.Stake{{Address: addr, Point: big.NewInt(100)}}}
	engine := poa.New(poa.Config{}, stakes)
	core := sealing.NewCore(cfg, engine, pool, nil)
	core.SetAuthor(addr)
	if err := core.SetSigner(provider, addr, password); err != nil {
		t.Fatalf("SetSigner: %v", err)
	}

	core.UpdateSealing(chain)

	info := chain.ChainInfo()
	if info.BestBlockNumber != 1 {
		t.Fatalf("expected the internal engine to seal and import block 1, got best block %d", info.BestBlockNumber)
	}
}

type singleStakeSource struct{ stakes []staking.Stake }

func (s singleStakeSource) Stakes(uint64, common.Hash) ([]staking.Stake, error) { return s.stakes, nil }
