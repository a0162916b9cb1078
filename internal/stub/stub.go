package stub

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
)

// ErrNoAnswer is returned by Stub.Answer in strict mode when no answer
// entry matches the invocation.
var ErrNoAnswer = errors.New("no answer found")

// ErrNotMockable is returned by ChildMock when the repository has no
// factory able to build a double of the requested type.
var ErrNotMockable = errors.New("type is not mockable")

// ClearOptions selects what Clear forgets.
type ClearOptions struct {
	Answers       bool
	RecordedCalls bool
	ChildMocks    bool
}

// ClearAll forgets everything.
var ClearAll = ClearOptions{Answers: true, RecordedCalls: true, ChildMocks: true}

type answerEntry struct {
	matcher matcher.InvocationMatcher
	answer  Answer
}

type child struct {
	value any
	id    call.Identity
}

// Stub is the per-double storage of answers, call history and child mocks.
//
// Thread-safety: all methods are safe for concurrent use.
type Stub struct {
	id   call.Identity
	repo *Repository

	mu       sync.Mutex
	answers  []answerEntry
	calls    []call.Invocation
	returned map[int64]call.Identity // invocation timestamp -> double it returned
	children map[string]child
	watchers map[*Watcher]struct{}
}

func newStub(id call.Identity, repo *Repository) *Stub {
	return &Stub{
		id:       id,
		repo:     repo,
		returned: make(map[int64]call.Identity),
		children: make(map[string]child),
		watchers: make(map[*Watcher]struct{}),
	}
}

// Identity returns the identity of the double this stub belongs to.
func (s *Stub) Identity() call.Identity {
	return s.id
}

// AddAnswer binds answer to m. Entries are never replaced: lookup runs
// newest first, so re-stubbing a call shadows the earlier answer.
func (s *Stub) AddAnswer(m matcher.InvocationMatcher, answer Answer) error {
	if m.Method == nil {
		return fmt.Errorf("add answer for %s: no method", m)
	}
	if len(m.Args) != m.Method.Arity() {
		return fmt.Errorf("add answer for %s: %d argument matchers for %d parameters", m, len(m.Args), m.Method.Arity())
	}

	s.mu.Lock()
	s.answers = append(s.answers, answerEntry{matcher: m, answer: answer})
	s.mu.Unlock()
	return nil
}

// Answer produces the results for inv from the newest matching answer
// entry, committing the entry's capture matchers first. Without a match,
// relaxed repositories answer zero values and strict ones return
// ErrNoAnswer.
func (s *Stub) Answer(inv call.Invocation) ([]any, error) {
	s.mu.Lock()
	var found *answerEntry
	for i := len(s.answers) - 1; i >= 0; i-- {
		if s.answers[i].matcher.Match(inv) {
			e := s.answers[i]
			found = &e
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		if !s.repo.relaxed {
			return nil, fmt.Errorf("%s: %w", inv, ErrNoAnswer)
		}
		return ZeroResults(inv.Method), nil
	}

	// Capture and the answer run unlocked: both may call back into doubles.
	found.matcher.Capture(inv)
	results, err := found.answer.Answer(inv)
	if err != nil {
		return nil, err
	}
	results = conform(results, inv.Method)

	if len(results) > 0 {
		if id, ok := call.IdentityOf(results[0]); ok {
			s.mu.Lock()
			s.returned[inv.Timestamp] = id
			s.mu.Unlock()
		}
	}
	return results, nil
}

// RecordCall appends inv to the call history, signals watchers and tees
// the call into the repository journal when one is configured.
func (s *Stub) RecordCall(inv call.Invocation) {
	s.mu.Lock()
	s.calls = append(s.calls, inv)
	for w := range s.watchers {
		w.notify()
	}
	s.mu.Unlock()

	s.repo.journalCall(inv)
}

// AllRecordedCalls returns the call history sorted by timestamp.
func (s *Stub) AllRecordedCalls() []call.Invocation {
	s.mu.Lock()
	out := make([]call.Invocation, len(s.calls))
	copy(out, s.calls)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// RecordedCallsFor returns the recorded calls of one method, sorted by
// timestamp.
func (s *Stub) RecordedCallsFor(m *call.Method) []call.Invocation {
	all := s.AllRecordedCalls()
	out := all[:0]
	for _, inv := range all {
		if m.Equal(inv.Method) {
			out = append(out, inv)
		}
	}
	return out
}

// ReturnedMock reports the double that was returned by inv, if any.
func (s *Stub) ReturnedMock(inv call.Invocation) (call.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.returned[inv.Timestamp]
	return id, ok
}

// ChildMock returns the persistent child double for m, creating it on
// first use. The key is derived from the equivalence-normalized matcher
// and the return type, so stubbing the same chain twice yields the same
// child while chains with different arguments get distinct children.
func (s *Stub) ChildMock(m matcher.InvocationMatcher, t reflect.Type) (any, call.Identity, error) {
	key, err := childKey(m, t)
	if err != nil {
		return nil, call.Identity{}, err
	}

	s.mu.Lock()
	c, ok := s.children[key]
	s.mu.Unlock()
	if ok {
		return c.value, c.id, nil
	}

	name := s.id.Name
	if m.Method != nil {
		name += "." + m.Method.Name
	}
	value, id, ok := s.repo.newMock(t, name)
	if !ok {
		return nil, call.Identity{}, fmt.Errorf("child of %s for %s: %w", m, typeString(t), ErrNotMockable)
	}

	s.mu.Lock()
	if existing, ok := s.children[key]; ok {
		s.mu.Unlock()
		return existing.value, existing.id, nil
	}
	s.children[key] = child{value: value, id: id}
	s.mu.Unlock()

	s.repo.StubFor(id)
	return value, id, nil
}

// ChildMocks returns the identities of every child double, sorted by ID.
func (s *Stub) ChildMocks() []call.Identity {
	s.mu.Lock()
	out := make([]call.Identity, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, c.id)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear forgets the parts of the stub selected by opts.
func (s *Stub) Clear(opts ClearOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Answers {
		s.answers = nil
	}
	if opts.RecordedCalls {
		s.calls = nil
		s.returned = make(map[int64]call.Identity)
	}
	if opts.ChildMocks {
		s.children = make(map[string]child)
	}
}

func (s *Stub) addWatcher(w *Watcher) {
	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()
}

func (s *Stub) removeWatcher(w *Watcher) {
	s.mu.Lock()
	delete(s.watchers, w)
	s.mu.Unlock()
}

func childKey(m matcher.InvocationMatcher, t reflect.Type) (string, error) {
	mk, err := m.Equivalent().Key()
	if err != nil {
		return "", fmt.Errorf("child key for %s: %w", m, err)
	}
	return call.CanonicalKey(call.DomainChildMock, map[string]any{
		"matcher": mk,
		"type":    typeString(t),
	})
}

// ZeroResults returns the zero value of every declared return type.
func ZeroResults(m *call.Method) []any {
	if m == nil {
		return nil
	}
	out := make([]any, len(m.ReturnTypes))
	for i, t := range m.ReturnTypes {
		out[i] = zero(t)
	}
	return out
}

// conform pads results to the method's declared return count.
func conform(results []any, m *call.Method) []any {
	if m == nil || len(results) >= len(m.ReturnTypes) {
		return results
	}
	out := make([]any, len(m.ReturnTypes))
	copy(out, results)
	for i := len(results); i < len(out); i++ {
		out[i] = zero(m.ReturnTypes[i])
	}
	return out
}

func zero(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}
