package recording

import (
	"errors"
	"fmt"
)

// Error represents a fatal engine error raised while recording a stub or
// verification statement.
//
// Engine errors include:
//   - Illegal state: operation invoked outside its legal recorder state
//   - Round count mismatch: rounds of one block made different call counts
//   - Unconsumed matcher: a matcher was built but never bound to a position
//   - Empty verification block: a verify block made no calls
//   - Indistinct placeholder: a matcher's placeholder equals a literal
//
// Every engine error resets the recorder to Answering before it is
// returned. Verification failures are not engine errors; see
// verify.AssertionError.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// State is the recorder state the error was raised in.
	State State

	// Trace is the call trace of the offending block, if any.
	Trace string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeIllegalState indicates an operation outside its legal state.
	ErrCodeIllegalState ErrorCode = "ILLEGAL_STATE"

	// ErrCodeRoundCountMismatch indicates rounds made different call counts.
	ErrCodeRoundCountMismatch ErrorCode = "ROUND_COUNT_MISMATCH"

	// ErrCodeUnconsumedMatcher indicates a matcher bound to no position.
	ErrCodeUnconsumedMatcher ErrorCode = "UNCONSUMED_MATCHER"

	// ErrCodeEmptyVerificationBlock indicates a verify block with no calls.
	ErrCodeEmptyVerificationBlock ErrorCode = "EMPTY_VERIFICATION_BLOCK"

	// ErrCodeNoCalls indicates a stub block with no calls.
	ErrCodeNoCalls ErrorCode = "NO_CALLS"

	// ErrCodeRoundOutOfRange indicates a round index outside 1..n-1 or out
	// of sequence.
	ErrCodeRoundOutOfRange ErrorCode = "ROUND_OUT_OF_RANGE"

	// ErrCodeIndistinctPlaceholder indicates a matcher placeholder that
	// cannot be told apart from a literal argument in any round.
	ErrCodeIndistinctPlaceholder ErrorCode = "INDISTINCT_PLACEHOLDER"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.State != 0 {
		msg += fmt.Sprintf(" (state=%s)", e.State)
	}
	if e.Trace != "" {
		msg += "\n" + e.Trace
	}
	return msg
}

func codeOf(err error) (ErrorCode, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

// IsIllegalState returns true if the error is a state violation.
// Uses errors.As to handle wrapped errors.
func IsIllegalState(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeIllegalState
}

// IsRoundCountMismatch returns true if rounds disagreed on call count.
func IsRoundCountMismatch(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeRoundCountMismatch
}

// IsUnconsumedMatcher returns true if a matcher was left unbound.
func IsUnconsumedMatcher(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeUnconsumedMatcher
}

// IsEmptyVerificationBlock returns true if a verify block made no calls.
func IsEmptyVerificationBlock(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeEmptyVerificationBlock
}

// IsNoCalls returns true if a stub block made no calls.
func IsNoCalls(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeNoCalls
}

// IsRoundOutOfRange returns true if the round driver misbehaved.
func IsRoundOutOfRange(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeRoundOutOfRange
}

// IsIndistinctPlaceholder returns true if detection could not tell a
// matcher from a literal of the same value.
func IsIndistinctPlaceholder(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeIndistinctPlaceholder
}

func newIllegalState(state State, op string) *Error {
	msg := fmt.Sprintf("%s is not allowed while %s", op, state)
	if state == StubbingAwaitingAnswer {
		msg = fmt.Sprintf("%s is not allowed: the previous stub block never specified an answer", op)
	}
	return &Error{Code: ErrCodeIllegalState, Message: msg, State: state}
}
