package testutil

import (
	"reflect"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/session"
)

// Store is the sample interface the engine tests double.
type Store interface {
	Get(key int, name string) string
	Put(key int, value string) error
	Next(step int) Store
	Flag(on bool) bool
	Tag(labels []string) int
}

var (
	storeType = reflect.TypeFor[Store]()

	storeGet  = call.MustMethodOf(storeType, "Get")
	storePut  = call.MustMethodOf(storeType, "Put")
	storeNext = call.MustMethodOf(storeType, "Next")
	storeFlag = call.MustMethodOf(storeType, "Flag")
	storeTag  = call.MustMethodOf(storeType, "Tag")
)

// StoreMock is a hand-written typed double of Store.
// Engine errors on methods without an error result panic.
type StoreMock struct {
	id call.Identity
	s  *session.Session
}

var _ Store = (*StoreMock)(nil)

// RegisterStore teaches s to build Store doubles.
func RegisterStore(s *session.Session) {
	session.Register(s, func(id call.Identity) *StoreMock {
		return &StoreMock{id: id, s: s}
	})
}

// NewStore creates a named Store double.
func NewStore(s *session.Session, name string) *StoreMock {
	m, err := session.Mock[*StoreMock](s, name)
	if err != nil {
		panic(err)
	}
	return m
}

// MockIdentity implements call.Mock.
func (m *StoreMock) MockIdentity() call.Identity { return m.id }

func (m *StoreMock) Get(key int, name string) string {
	out := m.invoke(storeGet, key, name)
	v, _ := out[0].(string)
	return v
}

func (m *StoreMock) Put(key int, value string) error {
	out, err := m.s.Invoke(m, storePut, key, value)
	if err != nil {
		return err
	}
	e, _ := out[0].(error)
	return e
}

func (m *StoreMock) Next(step int) Store {
	out := m.invoke(storeNext, step)
	v, _ := out[0].(Store)
	return v
}

func (m *StoreMock) Flag(on bool) bool {
	out := m.invoke(storeFlag, on)
	v, _ := out[0].(bool)
	return v
}

func (m *StoreMock) Tag(labels []string) int {
	out := m.invoke(storeTag, labels)
	v, _ := out[0].(int)
	return v
}

func (m *StoreMock) String() string { return m.id.String() }

func (m *StoreMock) invoke(method *call.Method, args ...any) []any {
	out, err := m.s.Invoke(m, method, args...)
	if err != nil {
		panic(err)
	}
	return out
}
