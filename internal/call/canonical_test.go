package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"b": 1, "a": "x<y", "c": []any{true, nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x<y","b":1,"c":[true,null]}`, string(out))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "é" precomposed vs "e" + combining acute
	a, err := MarshalCanonical("caf\u00e9")
	require.NoError(t, err)
	b, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMarshalCanonical_RejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(3.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestCanonicalKey_StableAndDomainSeparated(t *testing.T) {
	v := map[string]any{"method": "Repo.Get(int)", "args": []string{"eq(1)"}}

	k1, err := CanonicalKey(DomainChildMock, v)
	require.NoError(t, err)
	k2, err := CanonicalKey(DomainChildMock, v)
	require.NoError(t, err)
	k3, err := CanonicalKey(DomainMatcher, v)
	require.NoError(t, err)

	assert.Len(t, k1, 64)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
