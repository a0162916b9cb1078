package recording

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
)

// DetectedCall is the outcome of signature detection for one call index.
type DetectedCall struct {
	RetValue any
	RetType  reflect.Type
	Matcher  matcher.InvocationMatcher

	// ChainedFrom is the index of the call whose placeholder result is
	// this call's receiver, or -1.
	ChainedFrom int
}

// missing marks a round that has no value at some ordinal or position.
type missing struct{}

// Detector converts the rounds of one DSL block into invocation matchers.
//
// For every call index it builds a table from the per-round signature
// sequence of each matcher to the matcher itself, then looks up the
// per-round packed argument sequence of every position. A hit binds the
// matcher to the position; a miss means the argument was a literal.
// Composite matchers resolve their operands against the same table in a
// second pass. Every table entry must be consumed exactly once.
//
// The algorithm assumes every round takes the same path through the
// block. Blocks that choose matchers based on the placeholder values they
// receive are not supported.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a detector. A nil logger uses slog.Default().
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Detect runs detection over rounds.
func (d *Detector) Detect(rounds []CallRound) ([]DetectedCall, error) {
	if len(rounds) == 0 {
		return nil, nil
	}
	if err := checkRoundCounts(rounds); err != nil {
		return nil, err
	}

	first := rounds[0]
	if len(first.Trailing) > 0 {
		return nil, unconsumed(signedStrings(first.Trailing), first.Trace())
	}

	out := make([]DetectedCall, len(first.Calls))
	for i, c0 := range first.Calls {
		im, err := d.detectCall(rounds, i)
		if err != nil {
			return nil, err
		}
		out[i] = DetectedCall{
			RetValue:    c0.RetValue,
			RetType:     c0.RetType,
			Matcher:     im,
			ChainedFrom: chainedFrom(first.Calls, i),
		}
		d.logger.Debug("call detected",
			"index", i,
			"matcher", im.String(),
			"chained_from", out[i].ChainedFrom)
	}
	return out, nil
}

func checkRoundCounts(rounds []CallRound) error {
	n := len(rounds[0].Calls)
	for _, r := range rounds[1:] {
		if len(r.Calls) == n {
			continue
		}
		var b strings.Builder
		for i, r := range rounds {
			fmt.Fprintf(&b, "round %d: %d calls\n%s", i, len(r.Calls), r.Trace())
		}
		return &Error{
			Code:    ErrCodeRoundCountMismatch,
			Message: "every round of a block must make the same calls; the block's control flow depends on round-varying values",
			Trace:   strings.TrimRight(b.String(), "\n"),
		}
	}
	return nil
}

// signatureTable maps per-round signature sequences to matchers. Entries
// sharing a key are handed out in ordinal order.
type signatureTable struct {
	entries map[string][]*tableEntry
	all     []*tableEntry
}

type tableEntry struct {
	matcher *matcher.Matcher
	used    bool
}

func newSignatureTable(rounds []CallRound, index int) *signatureTable {
	t := &signatureTable{entries: make(map[string][]*tableEntry)}
	for o, sm := range rounds[0].Calls[index].Matchers {
		seq := make([]matcher.Signature, len(rounds))
		for r, round := range rounds {
			ms := round.Calls[index].Matchers
			if o < len(ms) {
				seq[r] = ms[o].Signature
			} else {
				seq[r] = missing{}
			}
		}
		e := &tableEntry{matcher: sm.Matcher}
		key := matcher.SequenceKey(seq)
		t.entries[key] = append(t.entries[key], e)
		t.all = append(t.all, e)
	}
	return t
}

// take removes and returns the first unused matcher registered under the
// sequence.
func (t *signatureTable) take(seq []matcher.Signature) (*matcher.Matcher, bool) {
	for _, e := range t.entries[matcher.SequenceKey(seq)] {
		if !e.used {
			e.used = true
			return e.matcher, true
		}
	}
	return nil, false
}

// checkDistinct fails when more argument positions or operands carry a
// sequence than matchers registered it: a literal then has the same value
// as a placeholder in every round and the binding cannot be decided.
func (t *signatureTable) checkDistinct(demand map[string]int, trace string) error {
	for key, entries := range t.entries {
		if demand[key] <= len(entries) {
			continue
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.matcher.String()
		}
		return &Error{
			Code: ErrCodeIndistinctPlaceholder,
			Message: fmt.Sprintf("placeholders of %s are indistinguishable from a literal argument; "+
				"the parameter type cannot carry distinct values (unexported fields or func), use a pointer or wrapper type",
				strings.Join(names, ", ")),
			Trace: strings.TrimRight(trace, "\n"),
		}
	}
	return nil
}

func (t *signatureTable) leftovers() []string {
	var out []string
	for _, e := range t.all {
		if !e.used {
			out = append(out, e.matcher.String())
		}
	}
	return out
}

func (d *Detector) detectCall(rounds []CallRound, index int) (matcher.InvocationMatcher, error) {
	c0 := rounds[0].Calls[index]
	table := newSignatureTable(rounds, index)

	im := matcher.InvocationMatcher{
		Self:   c0.Self,
		Method: c0.Method,
		Args:   make([]*matcher.Matcher, len(c0.Args)),
	}

	argSeqs := make([][]matcher.Signature, len(c0.Args))
	for p := range c0.Args {
		argSeqs[p] = make([]matcher.Signature, len(rounds))
		for r, round := range rounds {
			args := round.Calls[index].Args
			if p < len(args) {
				argSeqs[p][r] = matcher.Pack(args[p])
			} else {
				argSeqs[p][r] = missing{}
			}
		}
	}
	operandSeqs := make(map[int][][]matcher.Signature)
	for o, sm := range c0.Matchers {
		if !sm.Matcher.Kind.IsComposite() {
			continue
		}
		seqs := make([][]matcher.Signature, len(sm.Matcher.Operands))
		for k := range sm.Matcher.Operands {
			seqs[k] = make([]matcher.Signature, len(rounds))
			for r, round := range rounds {
				seqs[k][r] = missing{}
				ms := round.Calls[index].Matchers
				if o < len(ms) && k < len(ms[o].Matcher.Operands) {
					seqs[k][r] = matcher.Pack(ms[o].Matcher.Operands[k])
				}
			}
		}
		operandSeqs[o] = seqs
	}

	suspend := c0.Method != nil && c0.Method.Suspend
	demand := make(map[string]int)
	for p, seq := range argSeqs {
		if suspend && p == len(argSeqs)-1 {
			continue
		}
		demand[matcher.SequenceKey(seq)]++
	}
	for _, seqs := range operandSeqs {
		for _, seq := range seqs {
			demand[matcher.SequenceKey(seq)]++
		}
	}
	if err := table.checkDistinct(demand, rounds[0].Trace()); err != nil {
		return matcher.InvocationMatcher{}, err
	}

	for p, v0 := range c0.Args {
		if suspend && p == len(c0.Args)-1 {
			im.Args[p] = matcher.Const(true)
			continue
		}
		found, ok := table.take(argSeqs[p])

		switch {
		case ok:
			im.Args[p] = found
			if p == 0 && found.Kind == matcher.KindAllAny {
				im.AllAny = true
			}
		case im.AllAny:
			im.Args[p] = matcher.Const(true)
		default:
			im.Args[p] = literal(v0)
		}
	}

	// Second pass: bind composite operands.
	for o, sm := range c0.Matchers {
		m := sm.Matcher
		if !m.Kind.IsComposite() {
			continue
		}
		subs := make([]*matcher.Matcher, len(m.Operands))
		for k, operand := range m.Operands {
			if found, ok := table.take(operandSeqs[o][k]); ok {
				subs[k] = found
			} else {
				subs[k] = literal(operand)
			}
		}
		m.Subs = subs
	}

	if left := table.leftovers(); len(left) > 0 {
		return matcher.InvocationMatcher{}, unconsumed(left, rounds[0].Trace())
	}
	return im, nil
}

// literal infers the matcher for an argument that no matcher produced.
// Test doubles compare by reference, everything else by value.
func literal(v any) *matcher.Matcher {
	if _, ok := call.IdentityOf(v); ok {
		return matcher.Ref(v)
	}
	return matcher.Literal(v)
}

// chainedFrom returns the latest earlier call whose placeholder result is
// the receiver of call i.
func chainedFrom(calls []SignedCall, i int) int {
	for k := i - 1; k >= 0; k-- {
		if id, ok := call.IdentityOf(calls[k].RetValue); ok && id == calls[i].Self {
			return k
		}
	}
	return -1
}

func unconsumed(matchers []string, trace string) *Error {
	return &Error{
		Code: ErrCodeUnconsumedMatcher,
		Message: fmt.Sprintf("matchers not bound to any argument: %s; pass matcher results directly as call arguments",
			strings.Join(matchers, ", ")),
		Trace: strings.TrimRight(trace, "\n"),
	}
}

func signedStrings(sms []SignedMatcher) []string {
	out := make([]string, len(sms))
	for i, sm := range sms {
		out[i] = sm.Matcher.String()
	}
	return out
}
