package verify

import (
	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
)

// Match pairs a statement with an invocation it matched.
type Match struct {
	Statement  int
	Invocation call.Invocation
}

// Result is the outcome of one verification attempt.
type Result struct {
	OK      bool
	Message string

	// Matches lists the matched (statement, invocation) pairs. Captures
	// are committed from these on success.
	Matches []Match

	// Matched marks, per statement, whether the statement was satisfied.
	Matched []bool

	// Calls is the timestamp-sorted call trace the attempt looked at.
	Calls []call.Invocation
}

func ok(matches []Match, matched []bool, calls []call.Invocation) Result {
	return Result{OK: true, Matches: matches, Matched: matched, Calls: calls}
}

func failure(msg string, matched []bool, calls []call.Invocation) Result {
	return Result{Message: msg, Matched: matched, Calls: calls}
}

// Commit writes the captured arguments of every matched invocation into
// the statements' capture matchers. Call it only once the final outcome
// is known to be a success.
func Commit(calls []matcher.RecordedCall, res Result) {
	for _, m := range res.Matches {
		if m.Statement >= 0 && m.Statement < len(calls) {
			calls[m.Statement].Matcher.Capture(m.Invocation)
		}
	}
}
