// Package double provides a dynamic test double: a double of no static
// Go type whose methods are looked up by name at call time.
//
// Scenario files and engine tests use it where generating a typed double
// per interface is not worth it. Typed doubles (see testutil) forward to
// session.Session.Invoke in exactly the same way.
package double

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/session"
)

// Type is the reflect type of every dynamic double. Methods returning
// Type produce child doubles when stubbed or verified in a chain.
var Type = reflect.TypeFor[*Double]()

// Double is a dynamic test double.
type Double struct {
	id call.Identity
	s  *session.Session

	mu      sync.RWMutex
	methods map[string]*call.Method
}

// Register teaches s to build dynamic doubles, so that placeholder and
// child doubles of Type can be created.
func Register(s *session.Session) {
	session.Register(s, func(id call.Identity) *Double {
		return &Double{id: id, s: s, methods: make(map[string]*call.Method)}
	})
}

// New creates a named dynamic double with the given methods. Register
// must have been called on s.
func New(s *session.Session, name string, methods ...*call.Method) (*Double, error) {
	d, err := session.Mock[*Double](s, name)
	if err != nil {
		return nil, err
	}
	d.Define(methods...)
	return d, nil
}

// MockIdentity implements call.Mock.
func (d *Double) MockIdentity() call.Identity {
	return d.id
}

// Define adds methods to the double's method table.
func (d *Double) Define(methods ...*call.Method) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range methods {
		d.methods[m.Name] = m
	}
}

// Method returns the descriptor of the named method.
func (d *Double) Method(name string) (*call.Method, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.methods[name]
	return m, ok
}

// Methods returns the method names in sorted order.
func (d *Double) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes the named method.
func (d *Double) Call(name string, args ...any) ([]any, error) {
	m, ok := d.Method(name)
	if !ok {
		return nil, fmt.Errorf("%s has no method %q", d.id, name)
	}
	return d.Invoke(m, args...)
}

// Invoke invokes m with args. The argument count must match m's arity.
func (d *Double) Invoke(m *call.Method, args ...any) ([]any, error) {
	if len(args) != m.Arity() {
		return nil, fmt.Errorf("%s.%s: %d arguments given, %d expected", d.id, m.Name, len(args), m.Arity())
	}
	return d.s.Invoke(d, m, args...)
}

// Child returns the first result of a call as a dynamic double, for
// following call chains.
func Child(results []any) (*Double, bool) {
	if len(results) == 0 {
		return nil, false
	}
	d, ok := results[0].(*Double)
	return d, ok && d != nil
}

func (d *Double) String() string {
	return d.id.String()
}
