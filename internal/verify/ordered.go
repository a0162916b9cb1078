package verify

import (
	"fmt"

	"github.com/mockk/mockk-sub002/internal/call"
)

// verifyOrdered succeeds when the longest common subsequence of calls and
// statements, where a pair is common when the statement matches the call,
// covers every statement.
func verifyOrdered(stmts []statement, calls []call.Invocation) Result {
	n, m := len(calls), len(stmts)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if stmts[j-1].match(calls[i-1]) {
				lcs[i][j] = lcs[i-1][j-1] + 1
			} else {
				lcs[i][j] = max(lcs[i-1][j], lcs[i][j-1])
			}
		}
	}

	matched := make([]bool, m)
	var matches []Match
	for i, j := n, m; i > 0 && j > 0; {
		switch {
		case stmts[j-1].match(calls[i-1]) && lcs[i][j] == lcs[i-1][j-1]+1:
			matched[j-1] = true
			matches = append(matches, Match{Statement: stmts[j-1].index, Invocation: calls[i-1]})
			i--
			j--
		case lcs[i-1][j] >= lcs[i][j-1]:
			i--
		default:
			j--
		}
	}
	// Backtracking collects pairs last to first.
	for l, r := 0, len(matches)-1; l < r; l, r = l+1, r-1 {
		matches[l], matches[r] = matches[r], matches[l]
	}

	if lcs[n][m] == m {
		return ok(matches, matched, calls)
	}
	return failure(fmt.Sprintf("calls are not in verification order: %d of %d statements matched in order",
		lcs[n][m], m), matched, calls)
}
