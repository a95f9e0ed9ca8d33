// Package worknotify implements the work notifier fan-out: broadcasting
// (pow-hash, difficulty, number) to registered external listeners, stored
// behind a many-readers-one-writer lock.
package worknotify

import (
	"sync"

	"github.com/pborman/uuid"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/log"
)

// Listener receives work-package notifications. notify must not re-enter
// the authoring core; faults in one listener must not affect others.
type Listener interface {
	Notify(powHash common.Hash, difficulty uint64, number uint64)
}

type entry struct {
	id       string
	listener Listener
}

// Listeners is the registered set of external work listeners.
type Listeners struct {
	mu      sync.RWMutex
	entries []entry
}

func New() *Listeners {
	return &Listeners{}
}

// Add registers listener and returns a handle usable with Remove, plus
// whether this was the 0->1 transition (the first listener registered).
// The caller — never this method — acts on that transition, and only after
// Add returns: invoking a callback while l.mu is held here would let a
// listeners-lock-then-sealingMu acquisition race against the core's own
// sealingMu-then-listeners-lock order (requiresReseal/prepareWork call
// HasAny while holding sealingMu), an AB-BA deadlock.
func (l *Listeners) Add(listener Listener) (id string, wasFirst bool) {
	l.mu.Lock()
	wasEmpty := len(l.entries) == 0
	id = uuid.NewRandom().String()
	l.entries = append(l.entries, entry{id: id, listener: listener})
	l.mu.Unlock()
	return id, wasEmpty
}

// Remove unregisters a previously added listener by handle.
func (l *Listeners) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// HasAny reports whether any listener is registered — feeds the decision to
// force sealing on whenever force_sealing is set or any external listener
// is registered.
func (l *Listeners) HasAny() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries) > 0
}

// Notify delivers (powHash, difficulty, number) synchronously to every
// listener in registration order. A panicking listener is isolated: it is
// recovered and logged, never allowed to abort the fan-out or crash the
// caller.
func (l *Listeners) Notify(powHash common.Hash, difficulty, number uint64) {
	l.mu.RLock()
	snapshot := append([]entry(nil), l.entries...)
	l.mu.RUnlock()

	for _, e := range snapshot {
		notifyOne(e.listener, powHash, difficulty, number)
	}
}

func notifyOne(listener Listener, powHash common.Hash, difficulty, number uint64) {
	defer func() {
		if r := recover(); r != nil {
			// Isolation: one faulty listener must never break the others.
			log.Warn("work listener panicked", "err", r)
		}
	}()
	listener.Notify(powHash, difficulty, number)
}
