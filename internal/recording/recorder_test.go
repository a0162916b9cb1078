package recording

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/stub"
	"github.com/mockk/mockk-sub002/internal/verify"
)

func TestRecorder_StubThenAnswer(t *testing.T) {
	h := newHarness(t)
	root := h.root.id

	err := h.every(func() {
		_, err := h.deliver(root, labelM, h.matcher(matcher.Any(), strType), true)
		require.NoError(t, err)
	}, stub.Constant("labelled"))
	require.NoError(t, err)
	assert.Equal(t, Answering, h.rec.State())

	res, err := h.deliver(root, labelM, "anything", true)
	require.NoError(t, err)
	assert.Equal(t, []any{"labelled"}, res)

	_, err = h.deliver(root, labelM, "anything", false)
	assert.ErrorIs(t, err, stub.ErrNoAnswer, "literal true was inferred as eq(true)")
}

func TestRecorder_BoolParametersUseManyRounds(t *testing.T) {
	h := newHarness(t)
	rounds := 0

	err := h.every(func() {
		rounds++
		_, _ = h.deliver(h.root.id, labelM, "x", h.matcher(matcher.Any(), boolType))
	}, stub.Constant("ok"))
	require.NoError(t, err)
	assert.Equal(t, 40, rounds)
}

func TestRecorder_FixedRounds(t *testing.T) {
	h := newHarness(t, WithRounds(3))
	rounds := 0

	err := h.every(func() {
		rounds++
		_, _ = h.deliver(h.root.id, labelM, "x", true)
	}, stub.Constant("ok"))
	require.NoError(t, err)
	assert.Equal(t, 3, rounds)
}

func TestRecorder_IdempotentUnderFixedSeed(t *testing.T) {
	detect := func() []string {
		h := newHarness(t)
		require.NoError(t, h.rec.StartStubbing())
		require.NoError(t, h.drive(func() {
			_, _ = h.deliver(h.root.id, labelM, h.matcher(matcher.Cmp(matcher.OpLess, "m"), strType), false)
		}))
		pending := h.rec.Pending()
		require.Len(t, pending, 1)
		h.rec.Reset()
		return argStrings(pending[0].Matcher)
	}

	first := detect()
	assert.Equal(t, []string{`lt("m")`, "eq(false)"}, first)
	assert.Equal(t, first, detect())
}

func TestRecorder_IllegalStates(t *testing.T) {
	h := newHarness(t)

	err := h.rec.Answer(stub.Constant(1))
	require.Error(t, err)
	assert.True(t, IsIllegalState(err))

	_, err = h.rec.Matcher(matcher.Any(), intType)
	assert.True(t, IsIllegalState(err))

	err = h.rec.Done()
	assert.True(t, IsIllegalState(err))

	err = h.rec.WasNotCalled(h.root.id)
	assert.True(t, IsIllegalState(err))

	require.NoError(t, h.rec.StartStubbing())
	err = h.rec.StartVerification(verify.DefaultParams())
	assert.True(t, IsIllegalState(err))
	assert.Equal(t, Answering, h.rec.State(), "illegal operations reset the recorder")
}

func TestRecorder_AwaitingAnswerMessage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.StartStubbing())
	require.NoError(t, h.drive(func() {
		_, _ = h.deliver(h.root.id, nextM, 1)
	}))
	require.Equal(t, StubbingAwaitingAnswer, h.rec.State())

	_, err := h.deliver(h.root.id, nextM, 2)
	require.Error(t, err)
	assert.True(t, IsIllegalState(err))
	assert.Contains(t, err.Error(), "never specified an answer")
	assert.Equal(t, Answering, h.rec.State())
}

func TestRecorder_NoCallsInStubBlock(t *testing.T) {
	h := newHarness(t)
	err := h.every(func() {}, stub.Constant(1))
	assert.True(t, IsNoCalls(err))
	assert.Equal(t, Answering, h.rec.State())
}

func TestRecorder_EmptyVerificationBlock(t *testing.T) {
	h := newHarness(t)
	err := h.verify(verify.DefaultParams(), func() {})
	assert.True(t, IsEmptyVerificationBlock(err))
	assert.Equal(t, Answering, h.rec.State())
}

func TestRecorder_RoundCountMismatchResets(t *testing.T) {
	h := newHarness(t, WithRounds(2))
	round := 0
	err := h.every(func() {
		round++
		for i := 0; i < round; i++ {
			_, _ = h.deliver(h.root.id, nextM, 1)
		}
	}, stub.Constant(nil))
	assert.True(t, IsRoundCountMismatch(err))
	assert.Equal(t, Answering, h.rec.State())
}

func TestRecorder_RoundOutOfRange(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.StartStubbing())
	err := h.rec.Round(2, 4)
	assert.True(t, IsRoundOutOfRange(err))
	assert.Equal(t, Answering, h.rec.State())
}

func TestRecorder_VerifyPassesAndCaptures(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.every(func() {
		_, _ = h.deliver(h.root.id, labelM, h.matcher(matcher.Any(), strType), h.matcher(matcher.Any(), boolType))
	}, stub.Constant("ok")))

	_, _ = h.deliver(h.root.id, labelM, "a", true)
	_, _ = h.deliver(h.root.id, labelM, "b", false)

	captured := &matcher.List[string]{}
	err := h.verify(verify.DefaultParams(), func() {
		_, _ = h.deliver(h.root.id, labelM, h.matcher(matcher.Capture(captured), strType), h.matcher(matcher.Any(), boolType))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, captured.Values)
}

func TestRecorder_VerifyFailureIsAssertion(t *testing.T) {
	h := newHarness(t)
	captured := &matcher.List[string]{}

	err := h.verify(verify.DefaultParams(), func() {
		_, _ = h.deliver(h.root.id, labelM, h.matcher(matcher.Capture(captured), strType), true)
	})
	require.Error(t, err)
	assert.True(t, verify.IsAssertion(err))
	assert.False(t, IsIllegalState(err))
	assert.Contains(t, err.Error(), "was not called")
	assert.Empty(t, captured.Values, "captures only happen on success")
	assert.Equal(t, Answering, h.rec.State())
}

func TestRecorder_WasNotCalled(t *testing.T) {
	h := newHarness(t)
	other := call.Identity{ID: "other-0001", Name: "other"}

	require.NoError(t, h.verify(verify.DefaultParams(), func() {
		require.NoError(t, h.rec.WasNotCalled(other))
	}))

	require.NoError(t, h.every(func() { _, _ = h.deliver(other, nextM, 1) }, stub.Constant(nil)))
	require.NoError(t, h.verify(verify.DefaultParams(), func() {
		require.NoError(t, h.rec.WasNotCalled(other))
	}), "stubbing alone is not a call")

	_, _ = h.deliver(other, nextM, 1)
	err := h.verify(verify.DefaultParams(), func() {
		require.NoError(t, h.rec.WasNotCalled(other))
	})
	assert.True(t, verify.IsAssertion(err))
	assert.Contains(t, err.Error(), "should not be called")
}

func TestRecorder_VerifyAnswersOtherGoroutinesWhileWaiting(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.every(func() { _, _ = h.deliver(h.root.id, nextM, 7) }, stub.Constant(nil)))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = h.deliver(h.root.id, nextM, 7)
	}()

	p := verify.DefaultParams()
	p.Timeout = 2 * time.Second
	err := h.verify(p, func() { _, _ = h.deliver(h.root.id, nextM, 7) })
	assert.NoError(t, err)
}

func TestRecorder_SafeToString(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.StartStubbing())

	var inside State
	out := h.rec.SafeToString(func() string {
		inside = h.rec.State()
		return "formatted"
	})
	assert.Equal(t, "formatted", out)
	assert.Equal(t, SafeLogging, inside)
	assert.Equal(t, Stubbing, h.rec.State())
}

func TestErrorHelpers_Wrapped(t *testing.T) {
	err := errors.Join(errors.New("context"), &Error{Code: ErrCodeUnconsumedMatcher, Message: "m"})
	assert.True(t, IsUnconsumedMatcher(err))
	assert.False(t, IsIllegalState(err))
	assert.Equal(t, "UNCONSUMED_MATCHER: m", (&Error{Code: ErrCodeUnconsumedMatcher, Message: "m"}).Error())
}
