package matcher

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mockk/mockk-sub002/internal/call"
)

// keyString renders m for InvocationMatcher.Key. Unlike String it loses
// nothing: values are written in Go syntax with their dynamic type,
// doubles by identity, and captures and assertions by matcher identity.
func (m *Matcher) keyString() string {
	switch m.Kind {
	case KindEqual:
		return "eq(" + valueKey(m.Value) + ")"
	case KindReferenceEqual:
		return "ref(" + referenceKey(m.Value) + ")"
	case KindConstant:
		return fmt.Sprintf("const(%t)", m.Constant)
	case KindComparing:
		return fmt.Sprintf("cmp(%d,%s)", m.Op, valueKey(m.Value))
	case KindAnd, KindOr, KindNot:
		subs := m.subs()
		parts := make([]string, len(subs))
		for i, sub := range subs {
			parts[i] = sub.keyString()
		}
		return fmt.Sprintf("%s(%s)", m.Kind, strings.Join(parts, ","))
	case KindNullCheck:
		return fmt.Sprintf("null(%t)", !m.Inverse)
	case KindOfType:
		return "type(" + typeKey(m.Type) + ")"
	case KindCapture, KindCaptureSlot, KindAssertion:
		return fmt.Sprintf("%s(%p)", m.Kind, m)
	case KindAllAny:
		return "allAny"
	}
	return m.Kind.String()
}

func valueKey(v any) string {
	if id, ok := call.IdentityOf(v); ok {
		return "mock:" + id.ID
	}
	return fmt.Sprintf("%T:%#v", v, v)
}

func referenceKey(v any) string {
	if id, ok := call.IdentityOf(v); ok {
		return "mock:" + id.ID
	}
	if v == nil {
		return "nil"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("%s@%x", typeKey(rv.Type()), rv.Pointer())
	case reflect.Slice:
		return fmt.Sprintf("%s@%x/%d", typeKey(rv.Type()), rv.Pointer(), rv.Len())
	}
	return valueKey(v)
}

func typeKey(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
