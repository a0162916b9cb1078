package matcher

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockk/mockk-sub002/internal/call"
)

var (
	repoSelf  = call.Identity{ID: "mock-0001", Name: "repo"}
	otherSelf = call.Identity{ID: "mock-0002", Name: "other"}
	getMethod = call.NewMethod("Repo", "Get",
		[]reflect.Type{reflect.TypeFor[int](), reflect.TypeFor[string]()},
		[]reflect.Type{reflect.TypeFor[string]()})
	putMethod = call.NewMethod("Repo", "Put",
		[]reflect.Type{reflect.TypeFor[int]()}, nil)
)

func TestInvocationMatcher_Match(t *testing.T) {
	im := InvocationMatcher{Self: repoSelf, Method: getMethod, Args: []*Matcher{Eq(1), Any()}}

	assert.True(t, im.Match(call.NewInvocation(repoSelf, getMethod, 1, 1, "x")))
	assert.False(t, im.Match(call.NewInvocation(repoSelf, getMethod, 2, 2, "x")), "arg mismatch")
	assert.False(t, im.Match(call.NewInvocation(otherSelf, getMethod, 3, 1, "x")), "receiver mismatch")
	assert.False(t, im.Match(call.NewInvocation(repoSelf, putMethod, 4, 1)), "method mismatch")
	assert.False(t, im.Match(call.NewInvocation(repoSelf, getMethod, 5, 1)), "arity mismatch")
}

func TestInvocationMatcher_Capture(t *testing.T) {
	list := &List[string]{}
	im := InvocationMatcher{Self: repoSelf, Method: getMethod, Args: []*Matcher{Eq(1), Capture(list)}}

	im.Capture(call.NewInvocation(repoSelf, getMethod, 1, 1, "x"))
	assert.Equal(t, []string{"x"}, list.Values)
}

func TestInvocationMatcher_KeyStableUnderEquivalence(t *testing.T) {
	a := InvocationMatcher{Self: repoSelf, Method: getMethod, Args: []*Matcher{Eq(1), Capture(&List[string]{})}}
	b := InvocationMatcher{Self: repoSelf, Method: getMethod, Args: []*Matcher{Eq(1), Capture(&List[string]{})}}
	c := InvocationMatcher{Self: repoSelf, Method: getMethod, Args: []*Matcher{Eq(2), Any()}}

	ka, err := a.Equivalent().Key()
	require.NoError(t, err)
	kb, err := b.Equivalent().Key()
	require.NoError(t, err)
	kc, err := c.Equivalent().Key()
	require.NoError(t, err)

	assert.Equal(t, ka, kb)
	assert.NotEqual(t, ka, kc)
}

func TestInvocationMatcher_KeyIsLossless(t *testing.T) {
	key := func(args ...*Matcher) string {
		t.Helper()
		k, err := InvocationMatcher{Self: repoSelf, Method: getMethod, Args: args}.Key()
		require.NoError(t, err)
		return k
	}

	tests := []struct {
		name string
		a, b *Matcher
	}{
		{"joined vs split list", Eq([]string{"a b"}), Eq([]string{"a", "b"})},
		{"int vs int64", Eq(1), Eq(int64(1))},
		{"string vs number", Eq("1"), Eq(1)},
		{"composed vs decomposed", Eq("\u00e9"), Eq("e\u0301")},
		{"comparison operators", Cmp(OpLess, 3), Cmp(OpGreater, 3)},
		{"assertions sharing a message", Assert(func(any) bool { return true }, "key"), Assert(func(any) bool { return false }, "key")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, key(tt.a, Any()), key(tt.b, Any()))
		})
	}

	assert.Equal(t, key(Eq([]string{"a", "b"}), Any()), key(Eq([]string{"a", "b"}), Any()))
}

func TestInvocationMatcher_Describe(t *testing.T) {
	im := InvocationMatcher{Self: repoSelf, Method: getMethod, Args: []*Matcher{Eq(1), Eq("y")}}
	rows := im.Describe(call.NewInvocation(repoSelf, getMethod, 1, 1, "x"))

	require.Len(t, rows, 2)
	assert.True(t, rows[0].Matched)
	assert.False(t, rows[1].Matched)

	out := FormatDescribe(rows)
	assert.Contains(t, out, "[+] #0 eq(1) == 1")
	assert.Contains(t, out, `[-] #1 eq("y") != "x"`)
}

func TestInvocationMatcher_String(t *testing.T) {
	im := InvocationMatcher{Self: repoSelf, Method: getMethod, Args: []*Matcher{Eq(1), Any()}}
	assert.Equal(t, "repo#mock-0001.Get(eq(1), any())", im.String())
	assert.Equal(t, otherSelf, im.WithSelf(otherSelf).Self)
}
