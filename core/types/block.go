package types

import "github.com/chainforge/sealcore/common"

// Block is an immutable, fully sealed block: a header plus its ordered
// transaction list. State, receipts and the parent hash live on ClosedBlock
// in package sealing while the block is still being assembled; by the time
// it becomes a Block it has been sealed and handed to the chain client.
type Block struct {
	header *Header
	txs    []*Transaction
}

func NewBlock(header *Header, txs []*Transaction) *Block {
	cpy := *header
	return &Block{header: &cpy, txs: append([]*Transaction(nil), txs...)}
}

func (b *Block) Header() *Header              { return b.header }
func (b *Block) Hash() common.Hash            { return b.header.Hash() }
func (b *Block) NumberU64() uint64            { return b.header.Number }
func (b *Block) ParentHash() common.Hash      { return b.header.ParentHash }
func (b *Block) Transactions() []*Transaction { return b.txs }
func (b *Block) GasUsed() uint64              { return b.header.GasUsed }
func (b *Block) GasLimit() uint64             { return b.header.GasLimit }
func (b *Block) Difficulty() uint64 {
	if b.header.Difficulty == nil {
		return 0
	}
	return b.header.Difficulty.Uint64()
}

// Log is a single event emitted by contract execution. Kept minimal: this
// module never interprets log topics/data, only threads them through
// receipts.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Receipt records the outcome of executing a single transaction.
type Receipt struct {
	TxHash  common.Hash
	GasUsed uint64
	Status  uint64 // 1 = success, 0 = failure
	Logs    []*Log
	Bloom   common.Bloom
}

// RichReceipt adds block-positioning context to a Receipt for external
// consumers (pending_receipt / pending_receipts read queries).
type RichReceipt struct {
	Receipt
	BlockHash   common.Hash
	BlockNumber uint64
	TxIndex     uint64
	From        common.Address
	To          *common.Address
}
