package verify

import (
	"fmt"
	"math"
	"time"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
)

// Ordering selects the verification strategy.
type Ordering int

const (
	// Unordered checks each statement independently against call counts.
	Unordered Ordering = iota + 1
	// Ordered checks that statements happened in order, with unrelated
	// calls allowed in between.
	Ordered
	// Sequence checks that the calls are exactly the statements, in order.
	Sequence
	// All is Unordered plus full coverage of the touched doubles' calls.
	All
)

func (o Ordering) String() string {
	switch o {
	case Unordered:
		return "unordered"
	case Ordered:
		return "ordered"
	case Sequence:
		return "sequence"
	case All:
		return "all"
	}
	return fmt.Sprintf("Ordering(%d)", int(o))
}

// ParseOrdering parses the lower-case ordering names used by scenario
// files and the CLI.
func ParseOrdering(s string) (Ordering, error) {
	for _, o := range []Ordering{Unordered, Ordered, Sequence, All} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown ordering %q", s)
}

// Params parameterizes one verification statement.
type Params struct {
	Ordering Ordering

	// Inverse expects the verification to fail.
	Inverse bool

	// Min and Max bound the number of matching calls per statement
	// (Unordered and All only).
	Min int
	Max int

	// Exactly overrides Min and Max when not negative.
	Exactly int

	// Timeout makes verification wait for matching calls. Zero checks once.
	Timeout time.Duration
}

// DefaultParams returns unordered "at least once" parameters.
func DefaultParams() Params {
	return Params{
		Ordering: Unordered,
		Min:      1,
		Max:      math.MaxInt,
		Exactly:  -1,
	}
}

// Bounds returns the effective call count bounds.
func (p Params) Bounds() (lo, hi int) {
	if p.Exactly >= 0 {
		return p.Exactly, p.Exactly
	}
	return p.Min, p.Max
}

// Request is everything one verification attempt needs.
type Request struct {
	Params Params
	Calls  []matcher.RecordedCall

	// NotCalled lists doubles that must have no recorded calls at all.
	NotCalled []call.Identity
}
