package recording

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/stub"
	"github.com/mockk/mockk-sub002/internal/verify"
)

// node is the interface doubled by the tests in this package.
type node interface {
	Next(n int) node
	Label(name string, flag bool) string
}

type fakeNode struct{ id call.Identity }

func (f *fakeNode) MockIdentity() call.Identity { return f.id }
func (f *fakeNode) Next(int) node { return nil }
func (f *fakeNode) Label(string, bool) string { return "" }

var (
	nodeType  = reflect.TypeFor[node]()
	intType   = reflect.TypeFor[int]()
	boolType  = reflect.TypeFor[bool]()
	strType   = reflect.TypeFor[string]()
	nextM     = call.MustMethodOf(nodeType, "Next")
	labelM    = call.MustMethodOf(nodeType, "Label")
	discardLg = slog.New(slog.NewTextHandler(io.Discard, nil))
)

type nodeFactory struct {
	gen *call.FixedGenerator
}

func (f *nodeFactory) NewMock(t reflect.Type, name string) (any, call.Identity, bool) {
	if t != nodeType {
		return nil, call.Identity{}, false
	}
	id := call.NewIdentity(f.gen, name)
	return &fakeNode{id: id}, id, true
}

// harness plays the roles of the session (delivering calls) and of the
// DSL round driver.
type harness struct {
	t     *testing.T
	repo  *stub.Repository
	rec   *Recorder
	clock *call.Clock
	root  *fakeNode
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	factory := &nodeFactory{gen: call.NewFixedGenerator("child")}
	repo := stub.NewRepository(stub.WithFactory(factory), stub.WithLogger(discardLg))
	opts = append([]Option{
		WithFactory(factory),
		WithSeed(42),
		WithLogger(discardLg),
		WithVerifier(verify.NewEngine(repo, verify.WithLogger(discardLg))),
	}, opts...)
	return &harness{
		t:     t,
		repo:  repo,
		rec:   NewRecorder(repo, opts...),
		clock: call.NewClock(),
		root:  &fakeNode{id: call.Identity{ID: "root-0001", Name: "root"}},
	}
}

// deliver routes a call the way the session does.
func (h *harness) deliver(self call.Identity, m *call.Method, args ...any) ([]any, error) {
	inv := call.NewInvocation(self, m, h.clock.Next(), args...)
	if h.rec.Intercepts() {
		return h.rec.Record(inv)
	}
	s := h.repo.StubFor(self)
	res, err := s.Answer(inv)
	s.RecordCall(inv)
	return res, err
}

func (h *harness) next(self call.Identity, arg any) call.Identity {
	h.t.Helper()
	res, err := h.deliver(self, nextM, arg)
	require.NoError(h.t, err)
	if id, ok := call.IdentityOf(res[0]); ok {
		return id
	}
	return call.Identity{}
}

func (h *harness) matcher(m *matcher.Matcher, t reflect.Type) any {
	h.t.Helper()
	v, err := h.rec.Matcher(m, t)
	require.NoError(h.t, err)
	return v
}

// drive runs block for every round and finishes the recording.
func (h *harness) drive(block func()) error {
	block()
	n, err := h.rec.Rounds()
	if err != nil {
		return err
	}
	for i := 1; i < n; i++ {
		if err := h.rec.Round(i, n); err != nil {
			return err
		}
		block()
	}
	return h.rec.Done()
}

func (h *harness) every(block func(), answer stub.Answer) error {
	if err := h.rec.StartStubbing(); err != nil {
		return err
	}
	if err := h.drive(block); err != nil {
		return err
	}
	return h.rec.Answer(answer)
}

func (h *harness) verify(p verify.Params, block func()) error {
	if err := h.rec.StartVerification(p); err != nil {
		return err
	}
	return h.drive(block)
}
