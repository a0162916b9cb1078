package verify

import (
	"sort"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/stub"
)

// statement is one recorded call bound to the receivers it can match.
//
// Root statements match their own receiver. Chained statements were
// recorded on placeholder doubles; they match any double that a call
// matching their predecessor really returned.
type statement struct {
	index     int
	call      matcher.RecordedCall
	receivers map[call.Identity]bool
}

func (s statement) chained() bool {
	return s.receivers != nil
}

func (s statement) match(inv call.Invocation) bool {
	if s.receivers == nil {
		return s.call.Matcher.Match(inv)
	}
	return s.receivers[inv.Self] && s.call.Matcher.WithSelf(inv.Self).Match(inv)
}

// selves returns the receivers the statement can match, sorted by ID.
func (s statement) selves() []call.Identity {
	if s.receivers == nil {
		return []call.Identity{s.call.Matcher.Self}
	}
	out := make([]call.Identity, 0, len(s.receivers))
	for id := range s.receivers {
		out = append(out, id)
	}
	sortIdentities(out)
	return out
}

func (s statement) String() string {
	return s.call.String()
}

// bindStatements resolves the receivers of every statement against the
// current call history.
func bindStatements(repo *stub.Repository, calls []matcher.RecordedCall) []statement {
	out := make([]statement, len(calls))
	for i, rc := range calls {
		out[i] = statement{index: i, call: rc}
		if rc.Chained() {
			out[i].receivers = chainReceivers(repo, rc)
		}
	}
	return out
}

// chainReceivers walks the chain root first and collects, link by link,
// the doubles returned by calls matching the link.
func chainReceivers(repo *stub.Repository, rc matcher.RecordedCall) map[call.Identity]bool {
	ancestors := rc.Ancestors()

	root := ancestors[len(ancestors)-1]
	current := map[call.Identity]bool{root.Matcher.Self: true}
	currentIsRoot := true

	for i := len(ancestors) - 1; i >= 0; i-- {
		link := statement{call: ancestors[i]}
		if !currentIsRoot {
			link.receivers = current
		}
		next := make(map[call.Identity]bool)
		for id := range current {
			s, ok := repo.Lookup(id)
			if !ok {
				continue
			}
			for _, inv := range s.AllRecordedCalls() {
				if !link.match(inv) {
					continue
				}
				if child, ok := s.ReturnedMock(inv); ok {
					next[child] = true
				}
			}
		}
		current = next
		currentIsRoot = false
	}
	return current
}

// touched returns every receiver of the statements, sorted by ID.
func touched(stmts []statement) []call.Identity {
	seen := make(map[call.Identity]bool)
	var out []call.Identity
	for _, s := range stmts {
		for _, id := range s.selves() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sortIdentities(out)
	return out
}

// callsOf returns the recorded calls of the given doubles, sorted by
// timestamp.
func callsOf(repo *stub.Repository, ids []call.Identity) []call.Invocation {
	var out []call.Invocation
	for _, id := range ids {
		if s, ok := repo.Lookup(id); ok {
			out = append(out, s.AllRecordedCalls()...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

func sortIdentities(ids []call.Identity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].ID < ids[j].ID })
}
