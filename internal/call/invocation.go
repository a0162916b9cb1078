package call

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// ErrNoOriginal is returned by CallOriginal when the interception layer did
// not supply a real implementation.
var ErrNoOriginal = errors.New("no original implementation available")

// stackDepth bounds the number of frames captured per invocation.
const stackDepth = 32

// Invocation is one intercepted call, created once by the interception
// layer and consumed immediately by the engine.
//
// Invocations are immutable. The real implementation thunk and the stack
// trace are evaluated lazily: program counters are captured at creation,
// frames are only symbolized when a diagnostic asks for them.
type Invocation struct {
	Self      Identity
	Method    *Method
	Args      []any
	Timestamp int64

	original func() ([]any, error)
	stack    *lazyStack
}

// NewInvocation creates an invocation stamped with the given timestamp.
// The caller's stack is captured (skipping NewInvocation itself).
func NewInvocation(self Identity, m *Method, ts int64, args ...any) Invocation {
	return Invocation{
		Self:      self,
		Method:    m,
		Args:      args,
		Timestamp: ts,
		stack:     captureStack(3),
	}
}

// WithOriginal returns a copy of the invocation carrying a real
// implementation thunk.
func (inv Invocation) WithOriginal(fn func() ([]any, error)) Invocation {
	inv.original = fn
	return inv
}

// CallOriginal invokes the real implementation.
func (inv Invocation) CallOriginal() ([]any, error) {
	if inv.original == nil {
		return nil, fmt.Errorf("%s: %w", inv.Method, ErrNoOriginal)
	}
	return inv.original()
}

// Stack returns the formatted call stack of the invocation site.
func (inv Invocation) Stack() []string {
	if inv.stack == nil {
		return nil
	}
	return inv.stack.frames()
}

// String renders the invocation as "name#id.Method(arg, arg)".
func (inv Invocation) String() string {
	name := "<nil>"
	if inv.Method != nil {
		name = inv.Method.Name
	}
	return fmt.Sprintf("%s.%s(%s)", inv.Self, name, FormatArgs(inv.Args))
}

// FormatArgs renders an argument list for diagnostics.
func FormatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}
	return strings.Join(parts, ", ")
}

// FormatValue renders one value for diagnostics. Strings are quoted and nil
// renders as "null".
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

type lazyStack struct {
	pcs  []uintptr
	once sync.Once
	text []string
}

func captureStack(skip int) *lazyStack {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip, pcs)
	return &lazyStack{pcs: pcs[:n]}
}

func (s *lazyStack) frames() []string {
	s.once.Do(func() {
		frames := runtime.CallersFrames(s.pcs)
		for {
			f, more := frames.Next()
			s.text = append(s.text, fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line))
			if !more {
				break
			}
		}
	})
	return s.text
}
