package call

import (
	"context"
	"fmt"
	"go/token"
	"reflect"
	"strings"
)

var contextType = reflect.TypeFor[context.Context]()

// Method describes an intercepted method.
//
// Two descriptors denote the same method when their declaring type, name and
// parameter types are equal (see Equal). Return types are carried for answer
// construction and chain resolution; they do not take part in identity.
type Method struct {
	Name          string
	DeclaringType string
	ParamTypes    []reflect.Type
	ReturnTypes   []reflect.Type

	// Suspend marks that the last parameter is a continuation-like marker
	// (a context.Context). Detection never infers a matcher for it.
	Suspend bool

	// ReturnsNothing marks methods that never return normally.
	ReturnsNothing bool

	// Private marks unexported methods.
	Private bool

	// Variadic marks that the last parameter is a variadic slice.
	Variadic bool
}

// NewMethod creates a method descriptor.
// Suspend is set automatically when the last parameter is context.Context.
func NewMethod(declaringType, name string, params, returns []reflect.Type) *Method {
	m := &Method{
		Name:          name,
		DeclaringType: declaringType,
		ParamTypes:    params,
		ReturnTypes:   returns,
		Private:       !token.IsExported(name),
	}
	if n := len(params); n > 0 && params[n-1] == contextType {
		m.Suspend = true
	}
	return m
}

// MethodOf builds a descriptor for the named method of an interface or
// concrete type. For concrete types the receiver parameter is dropped.
func MethodOf(t reflect.Type, name string) (*Method, error) {
	rm, ok := t.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("type %s has no method %q", t, name)
	}

	ft := rm.Type
	first := 0
	if t.Kind() != reflect.Interface {
		first = 1 // receiver
	}

	params := make([]reflect.Type, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}
	returns := make([]reflect.Type, 0, ft.NumOut())
	for i := 0; i < ft.NumOut(); i++ {
		returns = append(returns, ft.Out(i))
	}

	m := NewMethod(t.Name(), name, params, returns)
	m.Variadic = ft.IsVariadic()
	return m, nil
}

// MustMethodOf is like MethodOf but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMethodOf(t reflect.Type, name string) *Method {
	m, err := MethodOf(t, name)
	if err != nil {
		panic(err)
	}
	return m
}

// Arity returns the declared number of parameters.
func (m *Method) Arity() int {
	return len(m.ParamTypes)
}

// ReturnsUnit reports whether the method has no results.
func (m *Method) ReturnsUnit() bool {
	return len(m.ReturnTypes) == 0
}

// ReturnType returns the primary (first) result type, or nil for unit methods.
func (m *Method) ReturnType() reflect.Type {
	if len(m.ReturnTypes) == 0 {
		return nil
	}
	return m.ReturnTypes[0]
}

// Equal reports whether two descriptors denote the same method.
func (m *Method) Equal(o *Method) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil {
		return false
	}
	if m.Name != o.Name || m.DeclaringType != o.DeclaringType {
		return false
	}
	if len(m.ParamTypes) != len(o.ParamTypes) {
		return false
	}
	for i := range m.ParamTypes {
		if m.ParamTypes[i] != o.ParamTypes[i] {
			return false
		}
	}
	return true
}

// Key returns a stable string identifying the method.
func (m *Method) Key() string {
	var b strings.Builder
	b.WriteString(m.DeclaringType)
	b.WriteByte('.')
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.ParamTypes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(typeName(p))
	}
	b.WriteByte(')')
	return b.String()
}

// String renders the method as "Type.Name(p1, p2) r1".
func (m *Method) String() string {
	var b strings.Builder
	if m.DeclaringType != "" {
		b.WriteString(m.DeclaringType)
		b.WriteByte('.')
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.ParamTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(typeName(p))
	}
	b.WriteByte(')')
	switch len(m.ReturnTypes) {
	case 0:
	case 1:
		b.WriteByte(' ')
		b.WriteString(typeName(m.ReturnTypes[0]))
	default:
		names := make([]string, len(m.ReturnTypes))
		for i, r := range m.ReturnTypes {
			names[i] = typeName(r)
		}
		b.WriteString(" (" + strings.Join(names, ", ") + ")")
	}
	return b.String()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}
