package dsl

import (
	"time"

	"github.com/mockk/mockk-sub002/internal/session"
	"github.com/mockk/mockk-sub002/internal/verify"
)

// VerifyOption adjusts verification parameters.
type VerifyOption func(*verify.Params)

// Ordered checks the statements happened in order, other calls allowed
// in between.
func Ordered() VerifyOption {
	return func(p *verify.Params) { p.Ordering = verify.Ordered }
}

// InSequence checks the calls on the touched doubles are exactly the
// statements, in order.
func InSequence() VerifyOption {
	return func(p *verify.Params) { p.Ordering = verify.Sequence }
}

// All also requires every call on the touched doubles to be matched.
func All() VerifyOption {
	return func(p *verify.Params) { p.Ordering = verify.All }
}

// Exactly requires exactly n matching calls per statement.
func Exactly(n int) VerifyOption {
	return func(p *verify.Params) { p.Exactly = n }
}

// AtLeast requires at least n matching calls per statement.
func AtLeast(n int) VerifyOption {
	return func(p *verify.Params) { p.Min = n }
}

// AtMost requires at most n matching calls per statement.
func AtMost(n int) VerifyOption {
	return func(p *verify.Params) {
		p.Max = n
		if p.Min > n {
			p.Min = n
		}
	}
}

// Never requires no matching calls.
func Never() VerifyOption {
	return Exactly(0)
}

// Timeout waits up to d for the matching calls to happen.
func Timeout(d time.Duration) VerifyOption {
	return func(p *verify.Params) { p.Timeout = d }
}

// Inverse expects the verification to fail.
func Inverse() VerifyOption {
	return func(p *verify.Params) { p.Inverse = true }
}

// Verify records the statements made by block and verifies them against
// the call history. It returns a *verify.AssertionError when they do not
// hold and a *recording.Error when the block could not be recorded.
func Verify(s *session.Session, block func(), opts ...VerifyOption) error {
	p := s.DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return VerifyWith(s, p, block)
}

// VerifyWith is Verify with explicit parameters.
func VerifyWith(s *session.Session, p verify.Params, block func()) error {
	if err := s.Recorder().StartVerification(p); err != nil {
		return err
	}
	return run(s, block)
}
