package matcher

import (
	"fmt"
	"reflect"
	"strings"
)

// Signature is a packed, comparable form of a placeholder value.
type Signature = any

// ref packs reference kinds by identity.
type ref struct {
	typ string
	ptr uintptr
	n   int
}

// Pack converts a placeholder or argument value into a signature.
//
// Reference kinds (pointers, maps, channels, functions, slices) pack to
// their identity. Comparable values pack to themselves. Anything else
// packs to its printed form.
func Pack(v any) Signature {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ref{typ: rv.Type().String(), ptr: rv.Pointer()}
	case reflect.Slice:
		return ref{typ: rv.Type().String(), ptr: rv.Pointer(), n: rv.Len()}
	}
	if comparableValue(rv) {
		return v
	}
	return fmt.Sprintf("%T:%#v", v, v)
}

// comparableValue reports whether == on the value cannot panic.
func comparableValue(rv reflect.Value) bool {
	if !rv.Type().Comparable() {
		return false
	}
	switch rv.Kind() {
	case reflect.Interface:
		return rv.IsNil() || comparableValue(rv.Elem())
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if !comparableValue(rv.Field(i)) {
				return false
			}
		}
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !comparableValue(rv.Index(i)) {
				return false
			}
		}
	}
	return true
}

// SequenceKey renders a per-round sequence of signatures as a map key.
func SequenceKey(seq []Signature) string {
	var b strings.Builder
	for i, s := range seq {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%T=%#v", s, s)
	}
	return b.String()
}
