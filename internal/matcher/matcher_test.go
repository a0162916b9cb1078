package matcher

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type point struct{ X, Y int }

func TestMatch_Kinds(t *testing.T) {
	p := &point{1, 2}
	other := &point{1, 2}

	testCases := []struct {
		name    string
		matcher *Matcher
		value   any
		want    bool
	}{
		{"eq int", Eq(5), 5, true},
		{"eq int mismatch", Eq(5), 6, false},
		{"eq deep struct ptr", Eq(p), other, true},
		{"eq nil nil", Eq(nil), (*point)(nil), true},
		{"ref same", Ref(p), p, true},
		{"ref other", Ref(p), other, false},
		{"ref value", Ref("x"), "x", true},
		{"const true", Const(true), "anything", true},
		{"const false", Const(false), "anything", false},
		{"lt", Cmp(OpLess, 10), 3, true},
		{"lt equal", Cmp(OpLess, 10), 10, false},
		{"le equal", Cmp(OpLessOrEqual, 10), 10, true},
		{"cmp eq", Cmp(OpEqual, "b"), "b", true},
		{"gt", Cmp(OpGreater, 2.5), 3.0, true},
		{"ge", Cmp(OpGreaterOrEqual, uint8(4)), uint8(4), true},
		{"cmp kind mismatch", Cmp(OpLess, 10), "3", false},
		{"cmp nil", Cmp(OpLess, 10), nil, false},
		{"is null", IsNull(), nil, true},
		{"is null typed nil", IsNull(), (*point)(nil), true},
		{"is null value", IsNull(), 0, false},
		{"not null", NotNull(), 0, true},
		{"of type", OfType(reflect.TypeFor[*point]()), p, true},
		{"of type interface", OfType(reflect.TypeFor[error]()), errors.New("x"), true},
		{"of type nil", OfType(reflect.TypeFor[*point]()), nil, false},
		{"of type other", OfType(reflect.TypeFor[string]()), 1, false},
		{"capture", Capture(&List[int]{}), 1, true},
		{"capture slot", CaptureSlot(&Slot[int]{}), 1, true},
		{"all any", AllAny(), nil, true},
		{"assert ok", Assert(func(v any) bool { return v.(int)%2 == 0 }, "even"), 4, true},
		{"assert fail", Assert(func(v any) bool { return v.(int)%2 == 0 }, "even"), 3, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.matcher.Match(tc.value))
		})
	}
}

func TestMatch_CompositesResolved(t *testing.T) {
	and := And(nil, nil)
	and.Subs = []*Matcher{Cmp(OpGreater, 1), Cmp(OpLess, 5)}
	assert.True(t, and.Match(3))
	assert.False(t, and.Match(7))

	or := Or(nil, nil)
	or.Subs = []*Matcher{Eq(1), Eq(2)}
	assert.True(t, or.Match(2))
	assert.False(t, or.Match(3))

	not := Not(nil)
	not.Subs = []*Matcher{Eq(1)}
	assert.True(t, not.Match(2))
	assert.False(t, not.Match(1))
}

func TestMatch_CompositesUnresolvedFallBackToOperands(t *testing.T) {
	or := Or(1, nil)
	assert.True(t, or.Match(1))
	assert.True(t, or.Match(nil))
	assert.False(t, or.Match(2))
	assert.Equal(t, "or(eq(1), isNull())", or.String())
}

func TestCapture_OnlyOnCommit(t *testing.T) {
	list := &List[string]{}
	m := Capture(list)

	assert.True(t, m.Match("a"))
	assert.Empty(t, list.Values, "matching must not capture")

	m.Capture("a")
	m.Capture("b")
	assert.Equal(t, []string{"a", "b"}, list.Values)

	last, ok := list.Last()
	assert.True(t, ok)
	assert.Equal(t, "b", last)
}

func TestCapture_SlotAndComposite(t *testing.T) {
	slot := &Slot[int]{}
	and := And(nil, nil)
	and.Subs = []*Matcher{CaptureSlot(slot), Cmp(OpGreater, 0)}

	and.Capture(9)
	assert.True(t, slot.Captured)
	assert.Equal(t, 9, slot.Value)

	slot.Clear()
	assert.False(t, slot.Captured)
	assert.Equal(t, 0, slot.Value)
}

func TestEquivalent_ReplacesSideEffects(t *testing.T) {
	and := And(nil, nil)
	and.Subs = []*Matcher{Capture(&List[int]{}), Eq(3)}

	eq := and.Equivalent()
	assert.Equal(t, "and(any(), eq(3))", eq.String())
	assert.Equal(t, KindCapture, and.Subs[0].Kind, "original untouched")

	assert.Equal(t, "any()", Assert(nil, "x").Equivalent().String())
	assert.Equal(t, "eq(1)", Eq(1).Equivalent().String())
}

func TestString(t *testing.T) {
	assert.Equal(t, `eq("a")`, Eq("a").String())
	assert.Equal(t, "lt(3)", Cmp(OpLess, 3).String())
	assert.Equal(t, "none()", Const(false).String())
	assert.Equal(t, "notNull()", NotNull().String())
	assert.Equal(t, "ofType(int)", OfType(reflect.TypeFor[int]()).String())
	assert.Equal(t, "assert(positive)", Assert(nil, "positive").String())
	assert.Equal(t, "Equal", KindEqual.String())
	assert.True(t, KindNot.IsComposite())
	assert.False(t, KindCapture.IsComposite())
}
