// sealpeek is a small debug CLI that assembles one candidate block against
// an in-memory reference chain and prints its pending transactions, used to
// eyeball the assembler/controller wiring without a full node.
package main

import (
	"math/big"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/config"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/engine/extwork"
	"github.com/chainforge/sealcore/log"
	"github.com/chainforge/sealcore/reftest"
	"github.com/chainforge/sealcore/sealing"
	"github.com/chainforge/sealcore/txpool"
)

func main() {
	alice := common.BytesToAddress([]byte{0xA1})
	bob := common.BytesToAddress([]byte{0xB0})

	chain := reftest.NewChain(map[common.Address]*big.Int{alice: big.NewInt(1_000_000_000_000_000_000)})

	cfg := config.Default()
	pool := txpool.New(sealing.VerifierOptions{
		MinimalGasPrice: uint64(cfg.PoolVerificationOptions.MinimalGasPrice),
		BlockGasLimit:   cfg.PoolVerificationOptions.BlockGasLimit,
		TxGasLimit:      cfg.PoolVerificationOptions.TxGasLimit,
	}, cfg.PoolLimits)

	engine := extwork.New(extwork.AlwaysValid{}, sealing.EngineParams{})
	core := sealing.NewCore(cfg, engine, pool, nil)
	core.SetAuthor(alice)

	tx := types.NewTransaction(0, &bob, big.NewInt(1000), 21000, big.NewInt(int64(cfg.PoolVerificationOptions.MinimalGasPrice)), nil)
	tx.WithSender(alice)
	if err := core.ImportOwnTransaction(chain, tx); err != nil {
		log.Error("import own transaction failed", "err", err)
		os.Exit(1)
	}

	core.PrepareWorkSealing(chain)

	best := chain.ChainInfo().BestBlockNumber
	pending := core.PendingTransactions(chain, best)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Hash", "Nonce", "GasPrice", "To"})
	for _, t := range pending {
		to := "(create)"
		if t.To() != nil {
			to = t.To().Hex()
		}
		table.Append([]string{t.Hash().Hex(), itoa(t.Nonce()), t.GasPrice().String(), to})
	}
	table.Render()
}

func itoa(v uint64) string {
	return new(big.Int).SetUint64(v).String()
}
