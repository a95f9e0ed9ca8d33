package types

import (
	"math/big"

	"github.com/chainforge/sealcore/common"
)

// Header is the consensus-relevant metadata of a block. Opaque to the
// authoring core beyond the fields it needs to drive assembly and sealing.
type Header struct {
	ParentHash common.Hash
	Number     uint64
	Coinbase   common.Address
	Difficulty *big.Int
	GasLimit   uint64
	GasUsed    uint64
	Time       uint64
	Extra      []byte
	Bloom      common.Bloom

	// Seal carries the engine-specific suffix (nonce, signature, ...) once a
	// block has been sealed. Empty on an unsealed header.
	Seal [][]byte
}

// Hash returns the content hash of the header, excluding Seal — the seal is
// appended by the engine after the hash used to generate it is fixed.
func (h *Header) Hash() common.Hash {
	buf := make([]byte, 0, 128)
	buf = append(buf, h.ParentHash.Bytes()...)
	buf = appendUint64(buf, h.Number)
	buf = append(buf, h.Coinbase.Bytes()...)
	if h.Difficulty != nil {
		buf = append(buf, h.Difficulty.Bytes()...)
	}
	buf = appendUint64(buf, h.GasLimit)
	buf = appendUint64(buf, h.GasUsed)
	buf = appendUint64(buf, h.Time)
	buf = append(buf, h.Extra...)
	return common.Keccak256Hash(buf)
}

// SealHash returns the hash an engine signs/solves over: the header hash
// before any seal bytes are attached (matches Hash when Seal is empty, which
// it always is at the point an engine is asked to produce a seal).
func (h *Header) SealHash() common.Hash { return h.Hash() }
