package verify

import (
	"fmt"
	"math"
	"strings"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/stub"
)

// verifyUnordered checks every statement independently: the number of
// matching calls on its receivers must lie within the bounds.
func verifyUnordered(repo *stub.Repository, stmts []statement, p Params, calls []call.Invocation) Result {
	lo, hi := p.Bounds()
	matched := make([]bool, len(stmts))
	var matches []Match
	var failures []string

	for i, s := range stmts {
		var hits []call.Invocation
		var forMock, forMethod []call.Invocation
		selves := identitySet(s.selves())
		for _, inv := range calls {
			if !selves[inv.Self] {
				continue
			}
			forMock = append(forMock, inv)
			if s.call.Matcher.Method.Equal(inv.Method) {
				forMethod = append(forMethod, inv)
			}
			if s.match(inv) {
				hits = append(hits, inv)
			}
		}

		if len(hits) >= lo && len(hits) <= hi {
			matched[i] = true
			for _, inv := range hits {
				matches = append(matches, Match{Statement: s.index, Invocation: inv})
			}
			continue
		}
		failures = append(failures, describeUnordered(repo, s, lo, hi, hits, forMock, forMethod))
	}

	if len(failures) > 0 {
		return failure(strings.Join(failures, "\n\n"), matched, calls)
	}
	return ok(matches, matched, calls)
}

func describeUnordered(repo *stub.Repository, s statement, lo, hi int, hits, forMock, forMethod []call.Invocation) string {
	name := s.String()
	method := s.call.Matcher.Method.Name

	if lo == 0 && hi == 0 {
		return fmt.Sprintf("%s should not be called, but %d matching calls found:\n%s",
			name, len(hits), formatCalls(hits))
	}

	var b strings.Builder
	switch {
	case len(forMock) == 0:
		fmt.Fprintf(&b, "%s was not called", receiverName(s))
	case len(forMethod) == 0:
		fmt.Fprintf(&b, "%s.%s was not called.\nCalls to same mock:\n%s", receiverName(s), method, formatCalls(forMock))
	case len(hits) == 0 && len(forMethod) == 1:
		fmt.Fprintf(&b, "Only one matching call to %s.%s happened, but arguments are not matching:\n%s",
			receiverName(s), method, matcher.FormatDescribe(s.call.Matcher.Describe(forMethod[0])))
	case len(hits) == 0:
		fmt.Fprintf(&b, "No matching calls found for %s.\nCalls to same method:\n%s", name, formatCalls(forMethod))
	default:
		atMost := ""
		if hi != math.MaxInt {
			atMost = fmt.Sprintf(" and at most %d", hi)
		}
		fmt.Fprintf(&b, "%d matching calls found, but needs at least %d%s calls for %s\nCalls:\n%s",
			len(hits), lo, atMost, name, formatCalls(hits))
	}

	if len(hits) == 0 {
		if other, found := matchingElsewhere(repo, s); found {
			fmt.Fprintf(&b, "\nA matching call was made on a different mock: %s", other)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// matchingElsewhere finds a call that would satisfy s if only it had been
// made on another double of the same type.
func matchingElsewhere(repo *stub.Repository, s statement) (call.Invocation, bool) {
	selves := identitySet(s.selves())
	for _, st := range repo.Stubs() {
		if selves[st.Identity()] {
			continue
		}
		for _, inv := range st.RecordedCallsFor(s.call.Matcher.Method) {
			if s.call.Matcher.WithSelf(inv.Self).Match(inv) {
				return inv, true
			}
		}
	}
	return call.Invocation{}, false
}

func receiverName(s statement) string {
	if !s.chained() {
		return s.call.Matcher.Self.String()
	}
	ancestors := s.call.Ancestors()
	return ancestors[0].String()
}

func identitySet(ids []call.Identity) map[call.Identity]bool {
	set := make(map[call.Identity]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func formatCalls(calls []call.Invocation) string {
	var b strings.Builder
	for i, inv := range calls {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, inv)
	}
	return b.String()
}
