package sealqueue

import (
	"sync"

	"github.com/chainforge/sealcore/common"
)

// Action selects the retrieval policy used by Get: Clone leaves the matched
// entry in the history (so a second, distinct seal for the same candidate
// can still be accepted — enable_resubmission = true), Take removes it (only
// one seal for the candidate will ever succeed).
type Action int

const (
	Clone Action = iota
	Take
)

// History is a fixed-capacity FIFO of closed candidate blocks with an
// auxiliary "last used" marker on the newest slot, recording whether any
// consumer has requested the newest entry as work (is_currently_sealing).
//
// Entries are kept in a slice rather than a ring buffer, since this history
// needs scan-from-newest lookups (Get) and mid-sequence removal (Take) that
// a ring buffer does not make any simpler, with the oldest entry dropped on
// overflow.
type History struct {
	mu       sync.Mutex
	cap      int
	entries  []*ClosedBlock // oldest first, newest last
	lastUsed bool
}

// NewHistory returns an empty history with the given capacity. Capacity <= 0
// is treated as 1: the history always holds at least the newest candidate.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{cap: capacity}
}

// Push appends b as the newest entry, evicting the oldest on overflow, and
// clears the "in use" marker (a freshly pushed candidate has not yet been
// handed out as work).
func (h *History) Push(b *ClosedBlock) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, b)
	if len(h.entries) > h.cap {
		h.entries = h.entries[len(h.entries)-h.cap:]
	}
	h.lastUsed = false
}

// PeekLast returns the newest entry, or nil if the history is empty.
func (h *History) PeekLast() *ClosedBlock {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peekLastLocked()
}

func (h *History) peekLastLocked() *ClosedBlock {
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[len(h.entries)-1]
}

// PopIf removes and returns the newest entry if pred accepts it, otherwise
// leaves the history untouched and returns nil. Used to detect "the new best
// tip is the parent of our newest candidate", enabling a reopen instead of a
// full rebuild.
func (h *History) PopIf(pred func(*ClosedBlock) bool) *ClosedBlock {
	h.mu.Lock()
	defer h.mu.Unlock()

	last := h.peekLastLocked()
	if last == nil || !pred(last) {
		return nil
	}
	h.entries = h.entries[:len(h.entries)-1]
	if len(h.entries) == 0 {
		h.lastUsed = false
	}
	return last
}

// Get scans from newest to oldest for an entry matching pred, applying
// action (Clone or Take) on a match. Returns nil if nothing matches.
func (h *History) Get(action Action, pred func(*ClosedBlock) bool) *ClosedBlock {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		cb := h.entries[i]
		if pred(cb) {
			h.lastUsed = true
			if action == Take {
				h.entries = append(h.entries[:i], h.entries[i+1:]...)
			}
			return cb
		}
	}
	return nil
}

// GetByHash is a convenience wrapper around Get matching on block hash.
func (h *History) GetByHash(action Action, hash common.Hash) *ClosedBlock {
	return h.Get(action, func(cb *ClosedBlock) bool { return cb.Hash() == hash })
}

// MarkLastUsed flags the newest entry as having been requested as work.
func (h *History) MarkLastUsed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) > 0 {
		h.lastUsed = true
	}
}

// InUse reports whether the newest entry has been requested as work
// (is_currently_sealing).
func (h *History) InUse() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUsed
}

// Reset drops all entries and clears the in-use marker.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.lastUsed = false
}

// Len reports the current number of stored entries (for tests verifying the
// work-history-bound invariant).
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
