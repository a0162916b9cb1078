package verify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mockk/mockk-sub002/internal/call"
)

// StatementReport is one verification statement with its outcome.
type StatementReport struct {
	Text    string
	Matched bool
}

// AssertionError reports a failed verification.
//
// It is an expected outcome rather than an engine fault, so it is a
// distinct type from recording.Error. Test runners classify it as a test
// failure.
type AssertionError struct {
	Ordering   Ordering
	Inverse    bool
	Message    string
	Statements []StatementReport
	Calls      []call.Invocation

	// Timeout is the wait that elapsed before the final check, or zero.
	Timeout time.Duration

	// Stacks, when set, renders the stack of every call in the trace.
	Stacks bool
}

// Error renders the diagnostic, the statements with ✓/✗ markers and the
// call trace.
func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString("Verification failed")
	if e.Inverse {
		b.WriteString(" (inverse)")
	}
	if e.Ordering != 0 && e.Ordering != Unordered {
		fmt.Fprintf(&b, " [%s]", e.Ordering)
	}
	if e.Timeout > 0 {
		fmt.Fprintf(&b, " after timeout %s", e.Timeout)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	b.WriteString("\n")

	if len(e.Statements) > 0 {
		b.WriteString("\nVerification statements:\n")
		for _, s := range e.Statements {
			mark := "✗"
			if s.Matched {
				mark = "✓"
			}
			fmt.Fprintf(&b, "  %s %s\n", mark, s.Text)
		}
	}

	b.WriteString("\nCalls:\n")
	if len(e.Calls) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, inv := range e.Calls {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, inv)
	}

	if e.Stacks {
		b.WriteString("\nStack traces:\n")
		for i, inv := range e.Calls {
			fmt.Fprintf(&b, "  %d) %s\n", i+1, inv)
			for _, frame := range inv.Stack() {
				fmt.Fprintf(&b, "      %s\n", frame)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// IsAssertion returns true if the error is a verification failure.
// Uses errors.As to handle wrapped errors.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// IsTimeout returns true if the error is a verification failure that
// waited for its timeout.
func IsTimeout(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae) && ae.Timeout > 0
}
