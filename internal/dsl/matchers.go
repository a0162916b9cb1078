package dsl

import (
	"cmp"
	"reflect"

	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/session"
)

// Match hands m to the recorder and returns the placeholder value of
// type t to pass where the matched argument goes. It is the untyped form
// of the matcher functions, for callers that only know t at run time.
func Match(s *session.Session, m *matcher.Matcher, t reflect.Type) any {
	v, err := s.Recorder().Matcher(m, t)
	if err != nil {
		panic(err)
	}
	return v
}

func register[T any](s *session.Session, m *matcher.Matcher) T {
	out, _ := Match(s, m, reflect.TypeFor[T]()).(T)
	return out
}

// Any matches every argument.
func Any[T any](s *session.Session) T { return register[T](s, matcher.Any()) }

// Eq matches arguments deeply equal to v.
func Eq[T any](s *session.Session, v T) T { return register[T](s, matcher.Eq(v)) }

// Ref matches the very same reference as v.
func Ref[T any](s *session.Session, v T) T { return register[T](s, matcher.Ref(v)) }

// Lt matches arguments less than v.
func Lt[T cmp.Ordered](s *session.Session, v T) T { return register[T](s, matcher.Cmp(matcher.OpLess, v)) }

// Le matches arguments less than or equal to v.
func Le[T cmp.Ordered](s *session.Session, v T) T {
	return register[T](s, matcher.Cmp(matcher.OpLessOrEqual, v))
}

// Gt matches arguments greater than v.
func Gt[T cmp.Ordered](s *session.Session, v T) T {
	return register[T](s, matcher.Cmp(matcher.OpGreater, v))
}

// Ge matches arguments greater than or equal to v.
func Ge[T cmp.Ordered](s *session.Session, v T) T {
	return register[T](s, matcher.Cmp(matcher.OpGreaterOrEqual, v))
}

// CmpEq matches arguments comparing equal to v, so 1.0 matches float32(1).
func CmpEq[T cmp.Ordered](s *session.Session, v T) T {
	return register[T](s, matcher.Cmp(matcher.OpEqual, v))
}

// And matches when both a and b match. Each operand is either a literal
// or the result of another matcher function.
func And[T any](s *session.Session, a, b T) T { return register[T](s, matcher.And(a, b)) }

// Or matches when a or b matches.
func Or[T any](s *session.Session, a, b T) T { return register[T](s, matcher.Or(a, b)) }

// Not matches when a does not.
func Not[T any](s *session.Session, a T) T { return register[T](s, matcher.Not(a)) }

// IsNull matches nil arguments.
func IsNull[T any](s *session.Session) T { return register[T](s, matcher.IsNull()) }

// NotNull matches non-nil arguments.
func NotNull[T any](s *session.Session) T { return register[T](s, matcher.NotNull()) }

// OfType matches non-nil arguments whose dynamic type is assignable to U.
func OfType[T, U any](s *session.Session) T {
	return register[T](s, matcher.OfType(reflect.TypeFor[U]()))
}

// Capture matches every argument and appends it to list once the stub
// answers or the verification succeeds.
func Capture[T any](s *session.Session, list *matcher.List[T]) T {
	return register[T](s, matcher.Capture(list))
}

// CaptureSlot is Capture keeping only the last value.
func CaptureSlot[T any](s *session.Session, slot *matcher.Slot[T]) T {
	return register[T](s, matcher.CaptureSlot(slot))
}

// AllAny, as the first argument, matches calls with any arguments.
func AllAny[T any](s *session.Session) T { return register[T](s, matcher.AllAny()) }

// Assert matches arguments of type T satisfying pred. msg names the
// predicate in diagnostics.
func Assert[T any](s *session.Session, pred func(T) bool, msg string) T {
	return register[T](s, matcher.Assert(func(v any) bool {
		t, ok := v.(T)
		return ok && pred(t)
	}, msg))
}
