package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mockk/mockk-sub002/internal/call"
)

// InvocationMatcher matches whole invocations: receiver, method, arity and
// then every positional argument.
type InvocationMatcher struct {
	Self   call.Identity
	Method *call.Method
	Args   []*Matcher

	// AllAny records that position 0 resolved to the wildcard-rest marker.
	AllAny bool
}

// Match reports whether inv satisfies the matcher.
func (im InvocationMatcher) Match(inv call.Invocation) bool {
	if inv.Self != im.Self {
		return false
	}
	if !im.Method.Equal(inv.Method) {
		return false
	}
	if len(inv.Args) != len(im.Args) {
		return false
	}
	for i, m := range im.Args {
		if !m.Match(inv.Args[i]) {
			return false
		}
	}
	return true
}

// Capture commits every capture matcher against the arguments of inv.
func (im InvocationMatcher) Capture(inv call.Invocation) {
	for i, m := range im.Args {
		if i < len(inv.Args) {
			m.Capture(inv.Args[i])
		}
	}
}

// Equivalent returns a copy whose argument matchers are equivalence
// normalized (see Matcher.Equivalent).
func (im InvocationMatcher) Equivalent() InvocationMatcher {
	cp := im
	cp.Args = make([]*Matcher, len(im.Args))
	for i, m := range im.Args {
		cp.Args[i] = m.Equivalent()
	}
	return cp
}

// WithSelf returns a copy bound to another receiver.
func (im InvocationMatcher) WithSelf(self call.Identity) InvocationMatcher {
	im.Self = self
	return im
}

// Key returns a canonical key for the matcher. Matchers that print the
// same but match differently get different keys; captures and assertions
// are keyed by identity, so compare Equivalent copies to ignore them.
func (im InvocationMatcher) Key() (string, error) {
	args := make([]string, len(im.Args))
	for i, m := range im.Args {
		// ASCII quoting keeps NFC normalization from merging strings.
		args[i] = strconv.QuoteToASCII(m.keyString())
	}
	method := ""
	if im.Method != nil {
		method = im.Method.Key()
	}
	return call.CanonicalKey(call.DomainMatcher, map[string]any{
		"self":    im.Self.ID,
		"method":  method,
		"args":    args,
		"all_any": im.AllAny,
	})
}

// ArgMatch is one row of a per-argument comparison.
type ArgMatch struct {
	Index   int
	Matcher string
	Value   string
	Matched bool
}

// Describe compares the matcher with inv argument by argument.
// Rows are produced for the longer of the two argument lists.
func (im InvocationMatcher) Describe(inv call.Invocation) []ArgMatch {
	n := max(len(im.Args), len(inv.Args))
	rows := make([]ArgMatch, 0, n)
	for i := 0; i < n; i++ {
		row := ArgMatch{Index: i, Matcher: "<missing>", Value: "<missing>"}
		if i < len(im.Args) {
			row.Matcher = im.Args[i].String()
		}
		if i < len(inv.Args) {
			row.Value = call.FormatValue(inv.Args[i])
		}
		if i < len(im.Args) && i < len(inv.Args) {
			row.Matched = im.Args[i].Match(inv.Args[i])
		}
		rows = append(rows, row)
	}
	return rows
}

// FormatDescribe renders Describe output, one line per argument.
func FormatDescribe(rows []ArgMatch) string {
	var b strings.Builder
	for _, r := range rows {
		mark := "+"
		rel := "=="
		if !r.Matched {
			mark = "-"
			rel = "!="
		}
		fmt.Fprintf(&b, "  [%s] #%d %s %s %s\n", mark, r.Index, r.Matcher, rel, r.Value)
	}
	return b.String()
}

func (im InvocationMatcher) String() string {
	args := make([]string, len(im.Args))
	for i, m := range im.Args {
		args[i] = m.String()
	}
	name := "<nil>"
	if im.Method != nil {
		name = im.Method.Name
	}
	return fmt.Sprintf("%s.%s(%s)", im.Self, name, strings.Join(args, ", "))
}
