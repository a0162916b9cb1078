package verify

import (
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/stub"
)

var (
	repoA = call.Identity{ID: "mock-0001", Name: "a"}
	repoB = call.Identity{ID: "mock-0002", Name: "b"}
	opM   = call.NewMethod("Repo", "Op", []reflect.Type{reflect.TypeFor[string]()}, nil)
	getM  = call.NewMethod("Repo", "Get", []reflect.Type{reflect.TypeFor[int]()}, []reflect.Type{reflect.TypeFor[string]()})
)

type fixture struct {
	repo   *stub.Repository
	clock  *call.Clock
	engine *Engine
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := stub.NewRepository(stub.WithRelaxed(true), stub.WithLogger(logger))
	return &fixture{
		repo:   repo,
		clock:  call.NewClock(),
		engine: NewEngine(repo, WithLogger(logger)),
	}
}

func (f *fixture) call(self call.Identity, m *call.Method, args ...any) {
	f.repo.StubFor(self).RecordCall(call.NewInvocation(self, m, f.clock.Next(), args...))
}

func stmt(self call.Identity, m *call.Method, args ...*matcher.Matcher) matcher.RecordedCall {
	return matcher.RecordedCall{Matcher: matcher.InvocationMatcher{Self: self, Method: m, Args: args}}
}

func params(o Ordering) Params {
	p := DefaultParams()
	p.Ordering = o
	return p
}

func TestOrderedVersusSequence(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "A")
	f.call(repoA, opM, "B")
	f.call(repoA, opM, "C")

	stmts := []matcher.RecordedCall{
		stmt(repoA, opM, matcher.Eq("A")),
		stmt(repoA, opM, matcher.Eq("C")),
	}

	assert.NoError(t, f.engine.Verify(Request{Params: params(Ordered), Calls: stmts}))

	err := f.engine.Verify(Request{Params: params(Sequence), Calls: stmts})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "number of calls happened not matching")
}

func TestOrdered_WrongOrderFails(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "A")
	f.call(repoA, opM, "B")

	err := f.engine.Verify(Request{Params: params(Ordered), Calls: []matcher.RecordedCall{
		stmt(repoA, opM, matcher.Eq("B")),
		stmt(repoA, opM, matcher.Eq("A")),
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calls are not in verification order")
	assert.Contains(t, err.Error(), "1 of 2 statements matched in order")
}

func TestSequence_ExactMatch(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "A")
	f.call(repoA, opM, "B")

	assert.NoError(t, f.engine.Verify(Request{Params: params(Sequence), Calls: []matcher.RecordedCall{
		stmt(repoA, opM, matcher.Eq("A")),
		stmt(repoA, opM, matcher.Any()),
	}}))

	err := f.engine.Verify(Request{Params: params(Sequence), Calls: []matcher.RecordedCall{
		stmt(repoA, opM, matcher.Eq("B")),
		stmt(repoA, opM, matcher.Eq("A")),
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calls are not exactly matching verification sequence")
}

func TestUnorderedBounds(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "x")
	f.call(repoA, opM, "x")

	p := DefaultParams()
	p.Min = 3
	err := f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 matching calls found, but needs at least 3 calls")

	p.Min, p.Max = 0, 1
	err = f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs at least 0 and at most 1 calls")

	p.Exactly = 2
	assert.NoError(t, f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}}))
}

func TestUnordered_MustNotHappen(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "x")

	p := DefaultParams()
	p.Min, p.Max = 0, 0
	assert.NoError(t, f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("y"))}}))

	err := f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should not be called, but 1 matching calls found")
}

func TestUnordered_Diagnostics(t *testing.T) {
	f := newFixture()

	err := f.engine.Verify(Request{Params: DefaultParams(), Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}})
	assert.Contains(t, err.Error(), "a#mock-0001 was not called")

	f.call(repoA, getM, 1)
	err = f.engine.Verify(Request{Params: DefaultParams(), Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}})
	assert.Contains(t, err.Error(), "a#mock-0001.Op was not called")
	assert.Contains(t, err.Error(), "Calls to same mock")

	f.call(repoA, opM, "y")
	err = f.engine.Verify(Request{Params: DefaultParams(), Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}})
	assert.Contains(t, err.Error(), "Only one matching call to a#mock-0001.Op happened, but arguments are not matching")
	assert.Contains(t, err.Error(), `[-] #0 eq("x") != "y"`)

	f.call(repoA, opM, "z")
	err = f.engine.Verify(Request{Params: DefaultParams(), Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}})
	assert.Contains(t, err.Error(), "No matching calls found")
}

func TestUnordered_DifferentMockHint(t *testing.T) {
	f := newFixture()
	f.call(repoB, opM, "x")

	err := f.engine.Verify(Request{Params: DefaultParams(), Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("x"))}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A matching call was made on a different mock: b#mock-0002.Op(\"x\")")
}

func TestAll_RequiresCoverage(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "x")
	f.call(repoA, getM, 1)

	err := f.engine.Verify(Request{Params: params(All), Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Any())}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "some calls were not matched")
	assert.Contains(t, err.Error(), "a#mock-0001.Get(1)")

	assert.NoError(t, f.engine.Verify(Request{Params: params(All), Calls: []matcher.RecordedCall{
		stmt(repoA, opM, matcher.Any()),
		stmt(repoA, getM, matcher.Cmp(matcher.OpGreater, 0)),
	}}))
}

func TestInverse(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "x")

	p := DefaultParams()
	p.Inverse = true
	assert.NoError(t, f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("y"))}}))

	captured := &matcher.List[string]{}
	err := f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Capture(captured))}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Verification failed (inverse)")
	assert.Empty(t, captured.Values)
}

func TestCapture_CommittedOnlyOnSuccess(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "x")
	f.call(repoA, opM, "y")

	captured := &matcher.List[string]{}
	p := DefaultParams()
	p.Min = 3
	err := f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Capture(captured))}})
	require.Error(t, err)
	assert.Empty(t, captured.Values)

	require.NoError(t, f.engine.Verify(Request{Params: DefaultParams(), Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Capture(captured))}}))
	assert.Equal(t, []string{"x", "y"}, captured.Values)
}

func TestTimeout(t *testing.T) {
	testCases := []struct {
		name    string
		delay   time.Duration
		wantErr bool
	}{
		{"call within timeout", 100 * time.Millisecond, false},
		{"call after timeout", 700 * time.Millisecond, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			p := DefaultParams()
			p.Timeout = 500 * time.Millisecond

			done := make(chan struct{})
			go func() {
				defer close(done)
				time.Sleep(tc.delay)
				f.call(repoA, opM, "late")
			}()

			err := f.engine.Verify(Request{Params: p, Calls: []matcher.RecordedCall{stmt(repoA, opM, matcher.Eq("late"))}})
			<-done

			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsTimeout(err))
			assert.Contains(t, err.Error(), "after timeout 500ms")
		})
	}
}

func TestNotCalled(t *testing.T) {
	f := newFixture()
	assert.NoError(t, f.engine.Verify(Request{Params: DefaultParams(), NotCalled: []call.Identity{repoA}}))

	f.call(repoA, opM, "x")
	err := f.engine.Verify(Request{Params: DefaultParams(), NotCalled: []call.Identity{repoA}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a#mock-0001 should not be called, but was called")
}

func TestAssertionError_Render(t *testing.T) {
	f := newFixture()
	f.call(repoA, opM, "A")

	err := f.engine.Verify(Request{Params: params(Ordered), Calls: []matcher.RecordedCall{
		stmt(repoA, opM, matcher.Eq("A")),
		stmt(repoA, opM, matcher.Eq("B")),
	}})
	require.Error(t, err)
	assert.True(t, IsAssertion(err))

	text := err.Error()
	assert.Contains(t, text, "Verification failed [ordered]")
	assert.Contains(t, text, `✓ a#mock-0001.Op(eq("A"))`)
	assert.Contains(t, text, `✗ a#mock-0001.Op(eq("B"))`)
	assert.Contains(t, text, `1) a#mock-0001.Op("A")`)
}

func TestParams(t *testing.T) {
	p := DefaultParams()
	lo, hi := p.Bounds()
	assert.Equal(t, 1, lo)
	assert.Equal(t, math.MaxInt, hi)

	p.Exactly = 0
	lo, hi = p.Bounds()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 0, hi)

	o, err := ParseOrdering("sequence")
	require.NoError(t, err)
	assert.Equal(t, Sequence, o)
	_, err = ParseOrdering("random")
	assert.Error(t, err)
}
