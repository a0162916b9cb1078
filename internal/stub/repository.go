package stub

import (
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/mockk/mockk-sub002/internal/call"
)

// Factory builds test doubles of a given type.
// Implemented by the session, which knows the registered double
// constructors.
type Factory interface {
	NewMock(t reflect.Type, name string) (any, call.Identity, bool)
}

// CallSink receives a copy of every recorded call.
// Implemented by journal.Journal.
type CallSink interface {
	Append(inv call.Invocation) error
}

// Repository maps double identities to their stubs.
//
// Thread-safety: Repository is safe for concurrent use. Lock order is
// repository before stub; stubs never call back into the repository while
// holding their own lock.
type Repository struct {
	mu    sync.Mutex
	stubs map[call.Identity]*Stub

	factory Factory
	journal CallSink
	relaxed bool
	logger  *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithFactory sets the double factory used for child mocks.
func WithFactory(f Factory) Option {
	return func(r *Repository) {
		r.factory = f
	}
}

// WithJournal tees every recorded call into sink.
func WithJournal(sink CallSink) Option {
	return func(r *Repository) {
		r.journal = sink
	}
}

// WithRelaxed makes unmatched calls answer zero values instead of failing.
func WithRelaxed(relaxed bool) Option {
	return func(r *Repository) {
		r.relaxed = relaxed
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// NewRepository creates an empty repository.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		stubs:  make(map[call.Identity]*Stub),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StubFor returns the stub of id, creating it on first use.
func (r *Repository) StubFor(id call.Identity) *Stub {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stubs[id]
	if !ok {
		s = newStub(id, r)
		r.stubs[id] = s
	}
	return s
}

// Lookup returns the stub of id without creating it.
func (r *Repository) Lookup(id call.Identity) (*Stub, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stubs[id]
	return s, ok
}

// Stubs returns every stub, sorted by identity ID.
func (r *Repository) Stubs() []*Stub {
	r.mu.Lock()
	out := make([]*Stub, 0, len(r.stubs))
	for _, s := range r.stubs {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id.ID < out[j].id.ID })
	return out
}

// Watch returns a watcher signalled on every call recorded on the stubs of
// ids. The caller must Close it.
func (r *Repository) Watch(ids ...call.Identity) *Watcher {
	stubs := make([]*Stub, len(ids))
	for i, id := range ids {
		stubs[i] = r.StubFor(id)
	}
	return newWatcher(stubs)
}

// Clear applies opts to every stub. Clearing child mocks also drops the
// children's own stubs.
func (r *Repository) Clear(opts ClearOptions) {
	for _, s := range r.Stubs() {
		if opts.ChildMocks {
			for _, id := range s.ChildMocks() {
				r.mu.Lock()
				delete(r.stubs, id)
				r.mu.Unlock()
			}
		}
		s.Clear(opts)
	}
}

func (r *Repository) newMock(t reflect.Type, name string) (any, call.Identity, bool) {
	r.mu.Lock()
	f := r.factory
	r.mu.Unlock()

	if f == nil || t == nil {
		return nil, call.Identity{}, false
	}
	return f.NewMock(t, name)
}

func (r *Repository) journalCall(inv call.Invocation) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Append(inv); err != nil {
		r.logger.Warn("journal append failed",
			"call", inv.String(),
			"error", err)
	}
}
