package reftest

import (
	"math/big"
	"testing"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/sealing"
)

func TestAssembleSealAndImport(t *testing.T) {
	alice := common.BytesToAddress([]byte{1})
	bob := common.BytesToAddress([]byte{2})

	chain := NewChain(map[common.Address]*big.Int{alice: big.NewInt(1_000_000)})

	open, err := chain.PrepareOpenBlock(alice, sealing.GasRangeTarget{Lower: 4_000_000, Upper: 8_000_000}, nil)
	if err != nil {
		t.Fatalf("PrepareOpenBlock: %v", err)
	}

	tx := types.NewTransaction(0, &bob, big.NewInt(100), 21000, big.NewInt(1), nil)
	tx.WithSender(alice)
	if err := open.Push(tx); err != nil {
		t.Fatalf("Push: %v", err)
	}

	closed, err := open.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(closed.Transactions()) != 1 {
		t.Fatalf("expected 1 transaction in closed block, got %d", len(closed.Transactions()))
	}

	sealed := &sealing.SealedBlock{Closed: closed, Seal: [][]byte{{0x01}}}
	if err := chain.ImportSealedBlock(sealed); err != nil {
		t.Fatalf("ImportSealedBlock: %v", err)
	}

	info := chain.ChainInfo()
	if info.BestBlockNumber != 1 {
		t.Fatalf("expected best block number 1 after import, got %d", info.BestBlockNumber)
	}

	rr, ok := chain.TransactionReceipt(tx.Hash())
	if !ok {
		t.Fatal("expected a receipt for the imported transaction")
	}
	if rr.BlockNumber != 1 || rr.From != alice {
		t.Fatalf("unexpected receipt: %+v", rr)
	}
}

func TestPushRejectsInsufficientBalance(t *testing.T) {
	alice := common.BytesToAddress([]byte{1})
	bob := common.BytesToAddress([]byte{2})

	chain := NewChain(map[common.Address]*big.Int{alice: big.NewInt(10)})
	open, err := chain.PrepareOpenBlock(alice, sealing.GasRangeTarget{Lower: 4_000_000, Upper: 8_000_000}, nil)
	if err != nil {
		t.Fatalf("PrepareOpenBlock: %v", err)
	}

	tx := types.NewTransaction(0, &bob, big.NewInt(1_000_000), 21000, big.NewInt(1), nil)
	tx.WithSender(alice)
	if err := open.Push(tx); err != sealing.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed for insufficient balance, got %v", err)
	}
}
