// Package sealing implements the block-authoring and sealing core: mutable
// authoring params, sealing state, a block assembler and a sealing
// controller exposing an explicit, lock-ordered synchronous API. Every
// entry point is called directly by network/RPC/timer/chain-import threads
// rather than funneled through one goroutine.
package sealing

import (
	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/sealqueue"
)

// GasRangeTarget is the (lower, upper) bound of block gas limit the
// assembler targets when opening a fresh block.
type GasRangeTarget struct {
	Lower, Upper uint64
}

// ChainInfo is the minimal chain-tip snapshot the controller consults.
type ChainInfo struct {
	BestBlockHash      common.Hash
	BestBlockNumber    uint64
	BestBlockTimestamp uint64
}

// OpenBlock is a block still accepting transactions, produced by
// PrepareOpenBlock/ReopenBlock and turned into a ClosedBlock by Close.
type OpenBlock interface {
	// Push attempts to apply tx against the open block's state. The
	// returned error must be one of the sentinels in errors.go (or wrap
	// them via errors.Is) for the assembler's classification table to work.
	Push(tx *types.Transaction) error
	GasPool() (limit, used uint64)
	Header() *types.Header
	// SetGasLimit overrides the header's gas limit, used by the
	// infinite-pending-block override.
	SetGasLimit(limit uint64)
	// Close finalizes the block, producing receipts and the immutable
	// ClosedBlock the rest of the core operates on.
	Close() (*sealqueue.ClosedBlock, error)
}

// SealedBlock is a ClosedBlock plus its engine-produced seal, ready for
// import or proposal broadcast.
type SealedBlock struct {
	Closed *sealqueue.ClosedBlock
	Seal   [][]byte
}

func (sb *SealedBlock) Hash() common.Hash { return sb.Closed.Hash() }
func (sb *SealedBlock) NumberU64() uint64 { return sb.Closed.NumberU64() }

// ChainClient is the read-only chain tip plus block building/import
// primitives the core consumes. Network transport,
// persistent storage and state-trie access live behind it and are out of
// this module's scope.
type ChainClient interface {
	ChainInfo() ChainInfo
	BestBlockHeader() *types.Header
	BlockHeader(hash common.Hash) (*types.Header, bool)
	Block(hash common.Hash) (*types.Block, bool)
	PrepareOpenBlock(author common.Address, gasRangeTarget GasRangeTarget, extra []byte) (OpenBlock, error)
	ReopenBlock(closed *sealqueue.ClosedBlock) (OpenBlock, error)
	ImportSealedBlock(sealed *SealedBlock) error
	BroadcastProposalBlock(sealed *SealedBlock)
	// VerifyTransaction re-verifies a signed transaction against current
	// state before it is pushed onto an open block.
	VerifyTransaction(tx *types.Transaction) error
	// TransactionReceipt looks up the receipt of an already-imported
	// transaction by its own hash, used by the pending-receipt lookup once a
	// transaction has left the work history.
	TransactionReceipt(txHash common.Hash) (*types.RichReceipt, bool)
}

// PendingIterator walks a pool snapshot in pool order.
type PendingIterator interface {
	// Peek returns the next transaction without consuming it, or nil when
	// exhausted.
	Peek() *types.Transaction
	// Shift consumes the current transaction and moves on to the same
	// sender's next transaction, if any.
	Shift()
	// Pop discards all remaining transactions from the current sender.
	Pop()
}

// TxPool is the transaction pool contract.
type TxPool interface {
	Import(client ChainClient, txs []types.TaggedTransaction) []error
	Pending(client ChainClient, bestNumber, bestTimestamp uint64, nonceCap *uint64) PendingIterator
	Remove(hashes []common.Hash, invalid bool)
	Cull(client ChainClient)
	HasLocalTransactions() bool
	CurrentWorstGasPrice() uint64
	Find(hash common.Hash) (*types.Transaction, bool)
	SetVerifierOptions(opts VerifierOptions)
	// Future and LastNonce route to the pool rather than panicking or
	// silently returning empty.
	Future(addr common.Address) []*types.Transaction
	LastNonce(addr common.Address) (uint64, bool)
}

// VerifierOptions are the pool's current admission thresholds.
type VerifierOptions struct {
	MinimalGasPrice uint64
	BlockGasLimit   uint64
	TxGasLimit      uint64
}

// SealKind discriminates an engine's response to GenerateSeal.
type SealKind int

const (
	SealNone SealKind = iota
	SealRegular
	SealProposalKind
)

// SealProposal is the tagged result of Engine.GenerateSeal.
type SealProposal struct {
	Kind SealKind
	Seal [][]byte
}

// EngineParams exposes the subset of consensus parameters the core needs:
// the dust-protection transition height and nonce-cap increment feed the
// assembler's optional nonce cap; ContainsBugfixHardFork feeds the
// first-block hard-fork guard.
type EngineParams struct {
	DustProtectionTransition uint64
	NonceCapIncrement        uint64
	ContainsBugfixHardFork   bool
}

// AddressScheme is returned by Engine.CreateAddressScheme, consulted by the
// chain client when deriving contract-creation addresses; opaque here.
type AddressScheme interface{}

// Engine is the pluggable consensus contract. SealsInternally returns nil
// for "external work" engines, and a non-nil *bool for engines that seal
// in-process.
type Engine interface {
	SealsInternally() *bool
	GenerateSeal(block *sealqueue.ClosedBlock, parent *types.Header) SealProposal
	// TrySeal validates that seal is an acceptable completion of block for
	// this engine, used by SubmitSeal.
	TrySeal(block *sealqueue.ClosedBlock, seal [][]byte) error
	Params() EngineParams
	// SetSigner asks accounts to unlock address with password and hands the
	// resulting signing function to the engine. Engines that never sign
	// locally (external-work engines) accept and ignore the call.
	SetSigner(accounts AccountProvider, address common.Address, password string) error
	CreateAddressScheme(blockNumber uint64) AddressScheme
}

// SignFn signs digest with the key behind account, produced by an
// AccountProvider once a password has unlocked it.
type SignFn func(account common.Address, digest []byte) ([]byte, error)

// AccountProvider resolves a password-gated signing function for address.
// accounts.Provider is the in-memory reference implementation; this
// interface exists so sealing depends only on the contract, not on
// accounts' concrete keystore type.
type AccountProvider interface {
	SignFn(address common.Address, password string) (SignFn, error)
}

// Listener receives work-package notifications. Faults in one listener
// must not affect others or the core.
type Listener interface {
	Notify(powHash common.Hash, difficulty uint64, number uint64)
}
