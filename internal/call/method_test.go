package call

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet(name string, times int) string
	Fetch(ctx context.Context, id int) (string, error)
	Log(format string, args ...any)
}

var greeterType = reflect.TypeFor[greeter]()

func TestMethodOf_Interface(t *testing.T) {
	m, err := MethodOf(greeterType, "Greet")
	require.NoError(t, err)

	assert.Equal(t, "greeter", m.DeclaringType)
	assert.Equal(t, 2, m.Arity())
	assert.False(t, m.Suspend)
	assert.False(t, m.ReturnsUnit())
	assert.Equal(t, reflect.TypeFor[string](), m.ReturnType())
	assert.Equal(t, "greeter.Greet(string, int) string", m.String())
}

func TestMethodOf_ContextMarksSuspend(t *testing.T) {
	m := MustMethodOf(greeterType, "Fetch")
	assert.False(t, m.Suspend, "context is first, not last")

	m2 := NewMethod("svc", "Run", []reflect.Type{reflect.TypeFor[int](), contextType}, nil)
	assert.True(t, m2.Suspend)
	assert.True(t, m2.ReturnsUnit())
	assert.Nil(t, m2.ReturnType())
}

func TestMethodOf_Variadic(t *testing.T) {
	m := MustMethodOf(greeterType, "Log")
	assert.True(t, m.Variadic)
	assert.Equal(t, "greeter.Log(string,[]interface {})", m.Key())
}

func TestMethodOf_Missing(t *testing.T) {
	_, err := MethodOf(greeterType, "Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no method")
}

func TestMethod_Equal(t *testing.T) {
	a := MustMethodOf(greeterType, "Greet")
	b := MustMethodOf(greeterType, "Greet")
	c := MustMethodOf(greeterType, "Fetch")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestMethod_Private(t *testing.T) {
	assert.True(t, NewMethod("x", "hidden", nil, nil).Private)
	assert.False(t, NewMethod("x", "Visible", nil, nil).Private)
}
