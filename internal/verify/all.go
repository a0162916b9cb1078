package verify

import (
	"fmt"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/stub"
)

// verifyAll runs the unordered check, then requires every call on the
// touched doubles to be matched by at least one statement.
func verifyAll(repo *stub.Repository, stmts []statement, p Params, calls []call.Invocation) Result {
	res := verifyUnordered(repo, stmts, p, calls)
	if !res.OK {
		return res
	}

	var uncovered []call.Invocation
	for _, inv := range calls {
		covered := false
		for _, s := range stmts {
			if s.match(inv) {
				covered = true
				break
			}
		}
		if !covered {
			uncovered = append(uncovered, inv)
		}
	}
	if len(uncovered) > 0 {
		return failure(fmt.Sprintf("some calls were not matched by any statement:\n%s", formatCalls(uncovered)),
			res.Matched, calls)
	}
	return res
}
