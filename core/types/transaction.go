// Package types defines the block, header, transaction and receipt shapes
// exchanged across the authoring core's external interfaces. It intentionally
// carries no execution logic (no signature recovery against a real curve, no
// RLP/wire codec) — those belong to the consensus engine and chain client
// collaborators this module treats as boundaries.
package types

import (
	"math/big"
	"sync/atomic"

	"github.com/chainforge/sealcore/common"
)

// Transaction mirrors the classic Ethereum-shaped transaction envelope: a
// signed message with nonce, gas price, gas limit, optional recipient,
// value and payload.
type Transaction struct {
	AccountNonce uint64
	Price        *big.Int
	GasLimit     uint64
	Recipient    *common.Address // nil means contract creation
	Amount       *big.Int
	Payload      []byte

	// Signature values.
	V, R, S *big.Int

	// Sender is a best-effort cache of the recovered sender, filled in by a
	// Signer's Sender method the first time it is resolved.
	from atomic.Value

	// service marks a transaction that is exempt from the minimal gas price
	// floor (e.g. a certified service transaction), consulted by
	// refuse_service_transactions handling in the pool.
	service bool

	hash atomic.Value
}

// NewTransaction builds an unsigned transfer/call transaction.
func NewTransaction(nonce uint64, to *common.Address, amount *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *Transaction {
	return &Transaction{
		AccountNonce: nonce,
		Recipient:    to,
		Amount:       amount,
		GasLimit:     gasLimit,
		Price:        gasPrice,
		Payload:      data,
	}
}

func (tx *Transaction) Nonce() uint64       { return tx.AccountNonce }
func (tx *Transaction) GasPrice() *big.Int  { return tx.Price }
func (tx *Transaction) Gas() uint64         { return tx.GasLimit }
func (tx *Transaction) Value() *big.Int     { return tx.Amount }
func (tx *Transaction) Data() []byte        { return tx.Payload }
func (tx *Transaction) To() *common.Address { return tx.Recipient }
func (tx *Transaction) IsService() bool     { return tx.service }
func (tx *Transaction) MarkService(v bool)  { tx.service = v }

// Hash returns (and caches) the transaction hash. Unlike a production codec
// this is a content hash over the struct's scalar fields only — sufficient
// for identity/dedup purposes inside this module, which never serializes a
// transaction to the wire itself.
func (tx *Transaction) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return h.(common.Hash)
	}
	buf := make([]byte, 0, 64)
	buf = appendUint64(buf, tx.AccountNonce)
	buf = appendUint64(buf, tx.GasLimit)
	if tx.Price != nil {
		buf = append(buf, tx.Price.Bytes()...)
	}
	if tx.Recipient != nil {
		buf = append(buf, tx.Recipient.Bytes()...)
	}
	if tx.Amount != nil {
		buf = append(buf, tx.Amount.Bytes()...)
	}
	buf = append(buf, tx.Payload...)
	h := common.Keccak256Hash(buf)
	tx.hash.Store(h)
	return h
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WithSender caches a sender recovered by a Signer so repeated Sender calls
// avoid re-deriving it.
func (tx *Transaction) WithSender(addr common.Address) { tx.from.Store(addr) }

func (tx *Transaction) cachedSender() (common.Address, bool) {
	v := tx.from.Load()
	if v == nil {
		return common.Address{}, false
	}
	return v.(common.Address), true
}

// CachedSender returns the sender cached by a prior Sender call, without
// triggering recovery — used by read paths that would rather show no sender
// than force a recovery off the hot path.
func (tx *Transaction) CachedSender() (common.Address, bool) { return tx.cachedSender() }

// Signer recovers the sender of a transaction. Concrete implementations live
// with the consensus engine package (signature schemes are out of this
// module's scope); this module only needs the recovery contract.
type Signer interface {
	Sender(tx *Transaction) (common.Address, error)
}

// Sender resolves tx's sender via signer, using the cached value if present.
func Sender(signer Signer, tx *Transaction) (common.Address, error) {
	if addr, ok := tx.cachedSender(); ok {
		return addr, nil
	}
	addr, err := signer.Sender(tx)
	if err != nil {
		return common.Address{}, err
	}
	tx.WithSender(addr)
	return addr, nil
}

// TaggedKind classifies the provenance of a transaction handed to the pool's
// Import.
type TaggedKind int

const (
	Unverified TaggedKind = iota
	Local
	Retracted
)

// TaggedTransaction pairs a transaction with its import provenance.
type TaggedTransaction struct {
	Kind TaggedKind
	Tx   *Transaction
}
