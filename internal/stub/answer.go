package stub

import (
	"sync"

	"github.com/mockk/mockk-sub002/internal/call"
)

// Answer produces the results of a matched invocation.
//
// Results are positional, one per declared return type. Missing trailing
// results are filled with zero values by the stub. A non-nil error means
// the call "throws": the double decides how to surface it.
type Answer interface {
	Answer(inv call.Invocation) ([]any, error)
}

// AnswerFunc adapts a function to the Answer interface.
type AnswerFunc func(inv call.Invocation) ([]any, error)

// Answer calls f(inv).
func (f AnswerFunc) Answer(inv call.Invocation) ([]any, error) {
	return f(inv)
}

type constantAnswer struct {
	values []any
}

func (a constantAnswer) Answer(call.Invocation) ([]any, error) {
	out := make([]any, len(a.values))
	copy(out, a.values)
	return out, nil
}

// Constant answers every call with the same results.
func Constant(values ...any) Answer {
	return constantAnswer{values: values}
}

// Throw answers every call with err.
func Throw(err error) Answer {
	return AnswerFunc(func(call.Invocation) ([]any, error) {
		return nil, err
	})
}

// CallOriginal forwards to the real implementation carried by the
// invocation.
func CallOriginal() Answer {
	return AnswerFunc(func(inv call.Invocation) ([]any, error) {
		return inv.CallOriginal()
	})
}

// sequenceAnswer hands out its answers in order; the last one repeats.
type sequenceAnswer struct {
	mu      sync.Mutex
	answers []Answer
	next    int
}

// Sequence answers successive calls with successive answers. Once the
// list is exhausted the last answer keeps being used.
func Sequence(answers ...Answer) Answer {
	return &sequenceAnswer{answers: answers}
}

func (a *sequenceAnswer) Answer(inv call.Invocation) ([]any, error) {
	a.mu.Lock()
	if len(a.answers) == 0 {
		a.mu.Unlock()
		return nil, nil
	}
	i := a.next
	if i < len(a.answers)-1 {
		a.next++
	}
	ans := a.answers[i]
	a.mu.Unlock()
	return ans.Answer(inv)
}
