package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPack_ValuesPackToThemselves(t *testing.T) {
	assert.Equal(t, 5, Pack(5))
	assert.Equal(t, "x", Pack("x"))
	assert.Equal(t, point{1, 2}, Pack(point{1, 2}))
	assert.Nil(t, Pack(nil))
}

func TestPack_ReferencesPackByIdentity(t *testing.T) {
	a, b := &point{1, 2}, &point{1, 2}
	assert.Equal(t, Pack(a), Pack(a))
	assert.NotEqual(t, Pack(a), Pack(b))

	s := make([]int, 1)
	assert.Equal(t, Pack(s), Pack(s))
	assert.NotEqual(t, Pack(s), Pack(make([]int, 1)))
}

func TestPack_IncomparableStruct(t *testing.T) {
	type bag struct{ Items []int }
	packed := Pack(bag{Items: []int{1}})
	assert.IsType(t, "", packed)
	assert.Equal(t, packed, Pack(bag{Items: []int{1}}))
}

func TestSequenceKey(t *testing.T) {
	k1 := SequenceKey([]Signature{1, "a", nil})
	k2 := SequenceKey([]Signature{1, "a", nil})
	k3 := SequenceKey([]Signature{int64(1), "a", nil})

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3, "types are part of the key")
}
