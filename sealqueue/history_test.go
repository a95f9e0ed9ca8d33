package sealqueue

import (
	"testing"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockAt(n uint64, parent common.Hash) *ClosedBlock {
	return &ClosedBlock{
		Header: &types.Header{Number: n, ParentHash: parent, Extra: []byte{byte(n)}},
		Parent: parent,
	}
}

func TestHistoryBound(t *testing.T) {
	h := NewHistory(3)
	var parent common.Hash
	for i := uint64(1); i <= 10; i++ {
		b := blockAt(i, parent)
		h.Push(b)
		parent = b.Hash()
		assert.LessOrEqual(t, h.Len(), 3)
	}
	require.Equal(t, 3, h.Len())
}

func TestHistoryPopIf(t *testing.T) {
	h := NewHistory(5)
	b1 := blockAt(1, common.Hash{})
	h.Push(b1)

	// predicate fails -> untouched
	got := h.PopIf(func(cb *ClosedBlock) bool { return cb.NumberU64() == 99 })
	assert.Nil(t, got)
	assert.Equal(t, 1, h.Len())

	got = h.PopIf(func(cb *ClosedBlock) bool { return cb.NumberU64() == 1 })
	require.NotNil(t, got)
	assert.Equal(t, 0, h.Len())
}

func TestHistoryGetCloneVsTake(t *testing.T) {
	h := NewHistory(5)
	b1 := blockAt(1, common.Hash{})
	h.Push(b1)
	hash := b1.Hash()

	cloned := h.GetByHash(Clone, hash)
	require.NotNil(t, cloned)
	assert.Equal(t, 1, h.Len(), "Clone must not remove the entry")
	assert.True(t, h.InUse())

	// A second Clone lookup still succeeds (resubmission).
	cloned2 := h.GetByHash(Clone, hash)
	assert.NotNil(t, cloned2)

	taken := h.GetByHash(Take, hash)
	require.NotNil(t, taken)
	assert.Equal(t, 0, h.Len(), "Take must remove the entry")

	// Second Take lookup now fails — no candidate left.
	assert.Nil(t, h.GetByHash(Take, hash))
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(5)
	h.Push(blockAt(1, common.Hash{}))
	h.MarkLastUsed()
	assert.True(t, h.InUse())

	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.InUse())
	assert.Nil(t, h.PeekLast())
}
