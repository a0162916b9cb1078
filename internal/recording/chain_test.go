package recording

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/stub"
	"github.com/mockk/mockk-sub002/internal/verify"
)

// stubChain stubs root.Next(lead).Next(2).Next(3) and returns the recorded
// calls.
func stubChain(t *testing.T, h *harness, lead int, answer stub.Answer) []matcher.RecordedCall {
	t.Helper()
	require.NoError(t, h.rec.StartStubbing())
	require.NoError(t, h.drive(func() {
		first := h.next(h.root.id, lead)
		second := h.next(first, 2)
		h.next(second, 3)
	}))
	calls := h.rec.Pending()
	require.NoError(t, h.rec.Answer(answer))
	return calls
}

func TestChain_StubResolvesPersistentChildren(t *testing.T) {
	h := newHarness(t)
	end := &fakeNode{id: call.Identity{ID: "end-0001", Name: "end"}}

	a := stubChain(t, h, 1, stub.Constant(end))
	b := stubChain(t, h, 10, stub.Constant(end))
	require.Len(t, a, 3)
	require.Len(t, b, 3)

	assert.Equal(t, h.root.id, a[0].Matcher.Self)
	assert.False(t, a[0].Chained())
	assert.True(t, a[1].Chained())
	assert.True(t, a[2].Chained())
	assert.Len(t, a[2].Ancestors(), 2)

	// Two persistent children per chain, distinct between chains.
	ids := map[call.Identity]bool{
		a[1].Matcher.Self: true, a[2].Matcher.Self: true,
		b[1].Matcher.Self: true, b[2].Matcher.Self: true,
	}
	assert.Len(t, ids, 4)
	assert.NotContains(t, ids, h.root.id)

	// Re-stubbing the same chain reaches the same children.
	again := stubChain(t, h, 1, stub.Constant(end))
	assert.Equal(t, a[1].Matcher.Self, again[1].Matcher.Self)
	assert.Equal(t, a[2].Matcher.Self, again[2].Matcher.Self)

	// Answering walks the chain.
	first := h.next(h.root.id, 1)
	assert.Equal(t, a[1].Matcher.Self, first)
	second := h.next(first, 2)
	assert.Equal(t, a[2].Matcher.Self, second)
	assert.Equal(t, end.id, h.next(second, 3))

	// The chain that was never called stays uncalled.
	require.NoError(t, h.verify(verify.DefaultParams(), func() {
		require.NoError(t, h.rec.WasNotCalled(b[1].Matcher.Self, b[2].Matcher.Self))
	}))
	err := h.verify(verify.DefaultParams(), func() {
		require.NoError(t, h.rec.WasNotCalled(a[1].Matcher.Self))
	})
	assert.True(t, verify.IsAssertion(err))
}

func TestChain_VerifyResolvesThroughReturnedChildren(t *testing.T) {
	h := newHarness(t)
	stubChain(t, h, 1, stub.Constant(nil))
	stubChain(t, h, 10, stub.Constant(nil))

	first := h.next(h.root.id, 1)
	second := h.next(first, 2)
	h.next(second, 3)

	require.NoError(t, h.verify(verify.DefaultParams(), func() {
		f := h.next(h.root.id, 1)
		s := h.next(f, 2)
		h.next(s, 3)
	}))

	err := h.verify(verify.DefaultParams(), func() {
		f := h.next(h.root.id, 10)
		s := h.next(f, 2)
		h.next(s, 3)
	})
	require.Error(t, err)
	assert.True(t, verify.IsAssertion(err))
}

func TestChainResolver_VerifyKeepsPlaceholders(t *testing.T) {
	temp := &fakeNode{id: call.Identity{ID: "temp-0001", Name: "temp"}}
	detected := []DetectedCall{
		{RetValue: temp, RetType: nodeType, ChainedFrom: -1,
			Matcher: matcher.InvocationMatcher{Self: selfID, Method: nextM, Args: []*matcher.Matcher{matcher.Eq(1)}}},
		{ChainedFrom: 0,
			Matcher: matcher.InvocationMatcher{Self: temp.id, Method: nextM, Args: []*matcher.Matcher{matcher.Eq(2)}}},
	}

	calls := NewChainResolver(nil).ResolveVerify(detected)
	require.Len(t, calls, 2)
	assert.True(t, calls[0].IsRetValueMock)
	assert.Equal(t, temp.id, calls[1].Matcher.Self)
	require.NotNil(t, calls[1].SelfChain)
	assert.Equal(t, selfID, calls[1].SelfChain.Matcher.Self)
}
