package verify

import (
	"fmt"

	"github.com/mockk/mockk-sub002/internal/call"
)

// verifySequence succeeds when calls and statements have the same length
// and every statement matches the call at its position.
func verifySequence(stmts []statement, calls []call.Invocation) Result {
	matched := make([]bool, len(stmts))
	var matches []Match
	for i, s := range stmts {
		if i < len(calls) && s.match(calls[i]) {
			matched[i] = true
			matches = append(matches, Match{Statement: s.index, Invocation: calls[i]})
		}
	}

	if len(calls) != len(stmts) {
		return failure(fmt.Sprintf("number of calls happened not matching exact number of verification sequence: %d calls, %d statements",
			len(calls), len(stmts)), matched, calls)
	}
	for i, m := range matched {
		if !m {
			return failure(fmt.Sprintf("calls are not exactly matching verification sequence: call %d is %s", i+1, calls[i]),
				matched, calls)
		}
	}
	return ok(matches, matched, calls)
}
