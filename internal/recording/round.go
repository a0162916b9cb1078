package recording

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
)

// SignedMatcher is a matcher together with the packed signature of the
// placeholder value it returned to the DSL.
type SignedMatcher struct {
	Matcher   *matcher.Matcher
	Signature matcher.Signature
}

// SignedCall is one real call made during one round.
type SignedCall struct {
	RetValue any
	RetType  reflect.Type
	Self     call.Identity
	Method   *call.Method
	Args     []any
	Trace    string

	// Matchers holds every matcher registered since the previous call of
	// the round, in registration order.
	Matchers []SignedMatcher
}

// CallRound is one full execution of a DSL block.
type CallRound struct {
	Calls []SignedCall

	// Trailing holds matchers registered after the last call.
	Trailing []SignedMatcher
}

// Trace renders the calls of the round, one per line.
func (r CallRound) Trace() string {
	var b strings.Builder
	for i, c := range r.Calls {
		fmt.Fprintf(&b, "  %d: %s\n", i, c.Trace)
	}
	return b.String()
}

// RoundBuilder accumulates one round.
//
// Thread-safety: not safe for concurrent use; owned by the recorder.
type RoundBuilder struct {
	pending []SignedMatcher
	calls   []SignedCall
}

// AddMatcher registers a matcher produced by the DSL.
func (b *RoundBuilder) AddMatcher(m *matcher.Matcher, sig matcher.Signature) {
	b.pending = append(b.pending, SignedMatcher{Matcher: m, Signature: sig})
}

// AddSignedCall consumes the pending matchers into a new SignedCall.
func (b *RoundBuilder) AddSignedCall(retValue any, retType reflect.Type, inv call.Invocation) {
	b.calls = append(b.calls, SignedCall{
		RetValue: retValue,
		RetType:  retType,
		Self:     inv.Self,
		Method:   inv.Method,
		Args:     inv.Args,
		Trace:    inv.String(),
		Matchers: b.pending,
	})
	b.pending = nil
}

// CallCount returns the number of calls recorded so far.
func (b *RoundBuilder) CallCount() int {
	return len(b.calls)
}

// Build finishes the round and resets the builder.
func (b *RoundBuilder) Build() CallRound {
	r := CallRound{Calls: b.calls, Trailing: b.pending}
	b.calls, b.pending = nil, nil
	return r
}

// EstimateRounds returns how many rounds are needed to tell matchers from
// literals with confidence, judging by the parameter types of the calls
// made in the first round. Low-cardinality types need more rounds for
// their random placeholders to diverge from a literal.
func EstimateRounds(first CallRound, maxRounds int) int {
	n := 1
	for _, c := range first.Calls {
		if c.Method == nil {
			continue
		}
		for _, t := range c.Method.ParamTypes {
			n = max(n, typeRounds(t))
		}
	}
	if maxRounds > 0 && n > maxRounds {
		n = maxRounds
	}
	return n
}

func typeRounds(t reflect.Type) int {
	switch t.Kind() {
	case reflect.Bool:
		return 40
	case reflect.Int8, reflect.Uint8:
		return 8
	case reflect.Int16, reflect.Uint16:
		return 4
	}
	return 2
}
