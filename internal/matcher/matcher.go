package matcher

import (
	"cmp"
	"fmt"
	"reflect"
	"strings"

	"github.com/mockk/mockk-sub002/internal/call"
)

// Kind selects the Matcher variant.
type Kind int

const (
	KindEqual Kind = iota + 1
	KindReferenceEqual
	KindConstant
	KindComparing
	KindAnd
	KindOr
	KindNot
	KindNullCheck
	KindOfType
	KindCapture
	KindCaptureSlot
	KindAllAny
	KindAssertion
)

var kindNames = map[Kind]string{
	KindEqual:          "Equal",
	KindReferenceEqual: "ReferenceEqual",
	KindConstant:       "Constant",
	KindComparing:      "Comparing",
	KindAnd:            "And",
	KindOr:             "Or",
	KindNot:            "Not",
	KindNullCheck:      "NullCheck",
	KindOfType:         "OfType",
	KindCapture:        "Capture",
	KindCaptureSlot:    "CaptureSlot",
	KindAllAny:         "AllAny",
	KindAssertion:      "Assertion",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsComposite reports whether the kind holds sub-matchers.
func (k Kind) IsComposite() bool {
	return k == KindAnd || k == KindOr || k == KindNot
}

// Op is the comparison operator of a Comparing matcher.
type Op int

const (
	OpLess Op = iota + 1
	OpLessOrEqual
	OpEqual
	OpGreater
	OpGreaterOrEqual
)

var opNames = map[Op]string{
	OpLess:           "lt",
	OpLessOrEqual:    "le",
	OpEqual:          "cmpEq",
	OpGreater:        "gt",
	OpGreaterOrEqual: "ge",
}

// Sink receives captured argument values.
type Sink interface {
	Capture(v any)
}

// Matcher is a predicate bound to one argument position.
//
// Only the fields relevant to Kind are set:
//   - Equal, ReferenceEqual, Comparing: Value (and Op for Comparing)
//   - Constant: Constant
//   - And, Or, Not: Operands at DSL time, Subs after resolution
//   - NullCheck: Inverse (true means "not null")
//   - OfType: Type
//   - Capture, CaptureSlot: Sink
//   - Assertion: Predicate and Message
type Matcher struct {
	Kind      Kind
	Value     any
	Constant  bool
	Op        Op
	Inverse   bool
	Type      reflect.Type
	Operands  []any
	Subs      []*Matcher
	Sink      Sink
	Predicate func(any) bool
	Message   string
}

// Eq matches values deeply equal to v.
func Eq(v any) *Matcher { return &Matcher{Kind: KindEqual, Value: v} }

// Ref matches the very same reference as v.
func Ref(v any) *Matcher { return &Matcher{Kind: KindReferenceEqual, Value: v} }

// Const matches everything (true) or nothing (false).
func Const(b bool) *Matcher { return &Matcher{Kind: KindConstant, Constant: b} }

// Any matches every value.
func Any() *Matcher { return Const(true) }

// Cmp compares the argument against v with op.
func Cmp(op Op, v any) *Matcher { return &Matcher{Kind: KindComparing, Op: op, Value: v} }

// And matches when both operands match. Operands are DSL-time values.
func And(left, right any) *Matcher { return &Matcher{Kind: KindAnd, Operands: []any{left, right}} }

// Or matches when either operand matches. Operands are DSL-time values.
func Or(left, right any) *Matcher { return &Matcher{Kind: KindOr, Operands: []any{left, right}} }

// Not inverts its operand. The operand is a DSL-time value.
func Not(v any) *Matcher { return &Matcher{Kind: KindNot, Operands: []any{v}} }

// IsNull matches nil values.
func IsNull() *Matcher { return &Matcher{Kind: KindNullCheck} }

// NotNull matches non-nil values.
func NotNull() *Matcher { return &Matcher{Kind: KindNullCheck, Inverse: true} }

// OfType matches non-nil values assignable to t.
func OfType(t reflect.Type) *Matcher { return &Matcher{Kind: KindOfType, Type: t} }

// Capture matches anything and appends the value to sink on commit.
func Capture(sink Sink) *Matcher { return &Matcher{Kind: KindCapture, Sink: sink} }

// CaptureSlot matches anything and stores the value in sink on commit.
func CaptureSlot(sink Sink) *Matcher { return &Matcher{Kind: KindCaptureSlot, Sink: sink} }

// AllAny matches the remaining arguments when used at position 0.
func AllAny() *Matcher { return &Matcher{Kind: KindAllAny} }

// Assert matches values for which pred returns true.
func Assert(pred func(any) bool, msg string) *Matcher {
	return &Matcher{Kind: KindAssertion, Predicate: pred, Message: msg}
}

// Match reports whether v satisfies the matcher.
func (m *Matcher) Match(v any) bool {
	switch m.Kind {
	case KindEqual:
		return equalValues(m.Value, v)
	case KindReferenceEqual:
		return sameReference(m.Value, v)
	case KindConstant:
		return m.Constant
	case KindComparing:
		c, ok := compareValues(v, m.Value)
		if !ok {
			return false
		}
		switch m.Op {
		case OpLess:
			return c < 0
		case OpLessOrEqual:
			return c <= 0
		case OpEqual:
			return c == 0
		case OpGreater:
			return c > 0
		case OpGreaterOrEqual:
			return c >= 0
		}
		return false
	case KindAnd:
		for _, sub := range m.subs() {
			if !sub.Match(v) {
				return false
			}
		}
		return true
	case KindOr:
		for _, sub := range m.subs() {
			if sub.Match(v) {
				return true
			}
		}
		return false
	case KindNot:
		subs := m.subs()
		return len(subs) == 1 && !subs[0].Match(v)
	case KindNullCheck:
		return isNil(v) == !m.Inverse
	case KindOfType:
		if v == nil || m.Type == nil {
			return false
		}
		return reflect.TypeOf(v).AssignableTo(m.Type)
	case KindCapture, KindCaptureSlot, KindAllAny:
		return true
	case KindAssertion:
		return m.Predicate != nil && m.Predicate(v)
	}
	panic(fmt.Sprintf("matcher: unknown kind %v", m.Kind))
}

// subs returns the resolved sub-matchers, falling back to equality on the
// raw operands when resolution has not happened.
func (m *Matcher) subs() []*Matcher {
	if m.Subs != nil {
		return m.Subs
	}
	out := make([]*Matcher, len(m.Operands))
	for i, op := range m.Operands {
		out[i] = Literal(op)
	}
	return out
}

// Literal returns the matcher inferred for a literal argument value.
func Literal(v any) *Matcher {
	if isNil(v) {
		return IsNull()
	}
	return Eq(v)
}

// Capture writes v into the matcher's sink (recursing into composites).
// Verification calls this only after a successful outcome.
func (m *Matcher) Capture(v any) {
	switch m.Kind {
	case KindCapture, KindCaptureSlot:
		if m.Sink != nil {
			m.Sink.Capture(v)
		}
	case KindAnd, KindOr, KindNot:
		for _, sub := range m.Subs {
			if sub.Match(v) {
				sub.Capture(v)
			}
		}
	}
}

// Equivalent returns a copy with side-effecting kinds (captures,
// assertions) replaced by pass-through matchers, so that the copy can be
// used as a stable lookup key across repeated stubbing.
func (m *Matcher) Equivalent() *Matcher {
	switch m.Kind {
	case KindCapture, KindCaptureSlot, KindAssertion:
		return Const(true)
	case KindAnd, KindOr, KindNot:
		cp := *m
		cp.Subs = make([]*Matcher, len(m.subs()))
		for i, sub := range m.subs() {
			cp.Subs[i] = sub.Equivalent()
		}
		return &cp
	}
	return m
}

func (m *Matcher) String() string {
	switch m.Kind {
	case KindEqual:
		return "eq(" + call.FormatValue(m.Value) + ")"
	case KindReferenceEqual:
		return "refEq(" + call.FormatValue(m.Value) + ")"
	case KindConstant:
		if m.Constant {
			return "any()"
		}
		return "none()"
	case KindComparing:
		return opNames[m.Op] + "(" + call.FormatValue(m.Value) + ")"
	case KindAnd, KindOr, KindNot:
		parts := make([]string, 0, len(m.Operands))
		for _, sub := range m.subs() {
			parts = append(parts, sub.String())
		}
		return strings.ToLower(m.Kind.String()) + "(" + strings.Join(parts, ", ") + ")"
	case KindNullCheck:
		if m.Inverse {
			return "notNull()"
		}
		return "isNull()"
	case KindOfType:
		return fmt.Sprintf("ofType(%v)", m.Type)
	case KindCapture:
		return "capture()"
	case KindCaptureSlot:
		return "captureSlot()"
	case KindAllAny:
		return "allAny()"
	case KindAssertion:
		return "assert(" + m.Message + ")"
	}
	return m.Kind.String()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func equalValues(expected, actual any) bool {
	if isNil(expected) || isNil(actual) {
		return isNil(expected) && isNil(actual)
	}
	return reflect.DeepEqual(expected, actual)
}

// sameReference compares reference kinds by pointer and everything else
// with ==, guarding against incomparable dynamic values.
func sameReference(expected, actual any) (same bool) {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	ev, av := reflect.ValueOf(expected), reflect.ValueOf(actual)
	if ev.Type() != av.Type() {
		return false
	}
	switch ev.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ev.Pointer() == av.Pointer()
	case reflect.Slice:
		return ev.Pointer() == av.Pointer() && ev.Len() == av.Len()
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return expected == actual
}

// compareValues orders a against b when both belong to the same ordered
// kind family (signed, unsigned, float, string).
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isSigned(av.Kind()) && isSigned(bv.Kind()):
		return cmp.Compare(av.Int(), bv.Int()), true
	case isUnsigned(av.Kind()) && isUnsigned(bv.Kind()):
		return cmp.Compare(av.Uint(), bv.Uint()), true
	case isFloat(av.Kind()) && isFloat(bv.Kind()):
		return cmp.Compare(av.Float(), bv.Float()), true
	case av.Kind() == reflect.String && bv.Kind() == reflect.String:
		return cmp.Compare(av.String(), bv.String()), true
	}
	return 0, false
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUnsigned(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
