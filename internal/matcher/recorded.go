package matcher

import (
	"reflect"
	"strings"
)

// RecordedCall is the final unit of a stub or verification statement: one
// invocation matcher plus return metadata.
//
// A call made on the result of an earlier call of the same statement
// carries a copy of that earlier call in SelfChain. The link is a value
// copy, never a live pointer into the statement list, so chains are
// acyclic and can be walked iteratively.
type RecordedCall struct {
	RetValue       any
	IsRetValueMock bool
	RetType        reflect.Type
	Matcher        InvocationMatcher
	SelfChain      *RecordedCall
}

// Chained reports whether the call's receiver is the result of an earlier
// call of the same statement.
func (rc RecordedCall) Chained() bool {
	return rc.SelfChain != nil
}

// Ancestors returns the chain predecessors, nearest first.
func (rc RecordedCall) Ancestors() []RecordedCall {
	var out []RecordedCall
	for p := rc.SelfChain; p != nil; p = p.SelfChain {
		out = append(out, *p)
	}
	return out
}

// String renders the call with its chain, root first:
// "repo#mock-0001.Find(eq(1)).Name()".
func (rc RecordedCall) String() string {
	ancestors := rc.Ancestors()
	parts := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		parts = append(parts, ancestors[i].Matcher.String())
	}
	parts = append(parts, rc.Matcher.String())
	if len(parts) == 1 {
		return parts[0]
	}
	// Chained receivers are implied by the previous link.
	for i := 1; i < len(parts); i++ {
		head := parts[i]
		if k := strings.Index(head, "("); k >= 0 {
			head = head[:k]
		}
		if j := strings.LastIndex(head, "."); j >= 0 {
			parts[i] = parts[i][j+1:]
		}
	}
	return strings.Join(parts, ".")
}
