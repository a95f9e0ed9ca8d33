package sealing

import (
	"time"

	"github.com/chainforge/sealcore/sealqueue"
)

// sealingState holds {work history, enabled flag, next-allowed-reseal
// instant, next-mandatory-reseal instant, last-request block number}.
// Invariants:
//   - enabled => the core attempts to prepare work on triggers; !enabled =>
//     all triggers are no-ops until re-enabled.
//   - next_allowed_reseal <= next_mandatory_reseal is NOT required.
//   - sealing_block_last_request is monotonically non-decreasing across
//     chain head advances while enabled.
//
// Guarded by Core.sealingMu. The canonical lock order requires any pool
// lock to be taken before this one, and this lock released before calling
// back into the chain client or engine.
type sealingState struct {
	history                 *sealqueue.History
	enabled                 bool
	nextAllowedReseal       time.Time
	nextMandatoryReseal     time.Time
	sealingBlockLastRequest uint64
}

func newSealingState(workQueueSize int) *sealingState {
	return &sealingState{
		history: sealqueue.NewHistory(workQueueSize),
	}
}

// reselAllowed reports whether a non-mandatory reseal may run now. Caller
// must hold Core.sealingMu.
func (s *sealingState) reselAllowed(now time.Time) bool {
	return now.After(s.nextAllowedReseal)
}
