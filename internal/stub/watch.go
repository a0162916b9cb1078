package stub

import "sync"

// Watcher is signalled whenever a call is recorded on one of the stubs it
// watches.
//
// The signal channel is buffered with size 1 and sends never block, so
// bursts of calls coalesce into a single wake-up. Receivers must re-check
// their condition after every wake-up.
type Watcher struct {
	signal chan struct{}
	stubs  []*Stub
	once   sync.Once
}

func newWatcher(stubs []*Stub) *Watcher {
	w := &Watcher{
		signal: make(chan struct{}, 1),
		stubs:  stubs,
	}
	for _, s := range stubs {
		s.addWatcher(w)
	}
	return w
}

// C returns the wake-up channel.
func (w *Watcher) C() <-chan struct{} {
	return w.signal
}

// Close unregisters the watcher from its stubs. Safe to call twice.
func (w *Watcher) Close() {
	w.once.Do(func() {
		for _, s := range w.stubs {
			s.removeWatcher(w)
		}
	})
}

func (w *Watcher) notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}
