package recording

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"sync"

	"github.com/mockk/mockk-sub002/internal/stub"
)

// token is the placeholder handed out for `any` parameters. Each value is
// a distinct allocation, so it packs to a unique identity.
type token struct {
	n uint64
}

func (t *token) String() string {
	return fmt.Sprintf("<signature %d>", t.n)
}

// signatureError is the placeholder handed out for error parameters.
type signatureError struct {
	n uint64
}

func (e *signatureError) Error() string {
	return fmt.Sprintf("<signature error %d>", e.n)
}

var (
	anyType   = reflect.TypeFor[any]()
	errorType = reflect.TypeFor[error]()
)

// SignatureGenerator produces distinguishable placeholder values of a
// requested static type.
//
// Values are drawn from a PCG source seeded at construction, so a fixed
// seed makes detection fully reproducible. Value kinds get random
// scalars, reference kinds get fresh allocations, `any` and error get
// opaque tokens. Other interface types are satisfied by the mock factory
// when one is configured and are nil otherwise; nil placeholders can only
// be told apart from literal nil arguments by position.
//
// Thread-safety: SignatureGenerator is safe for concurrent use.
type SignatureGenerator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	seq     uint64
	factory stub.Factory
}

// NewSignatureGenerator creates a generator seeded with seed.
func NewSignatureGenerator(seed uint64, factory stub.Factory) *SignatureGenerator {
	return &SignatureGenerator{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		factory: factory,
	}
}

// Generate returns a fresh placeholder assignable to t.
func (g *SignatureGenerator) Generate(t reflect.Type) any {
	if t == nil {
		return nil
	}
	g.mu.Lock()
	v, mock := g.value(t, 0)
	g.mu.Unlock()

	if mock && g.factory != nil {
		if m, _, ok := g.factory.NewMock(t, "signature"); ok {
			return m
		}
	}
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

// maxDepth bounds recursion through self-referential struct types.
const maxDepth = 4

// value builds a placeholder of t. The boolean reports that t is an
// interface only a mock can satisfy.
func (g *SignatureGenerator) value(t reflect.Type, depth int) (reflect.Value, bool) {
	g.seq++
	switch t.Kind() {
	case reflect.Bool:
		return reflect.ValueOf(g.rng.IntN(2) == 1).Convert(t), false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := reflect.New(t).Elem()
		v.SetInt(int64(g.rng.Uint64()))
		return v, false
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v := reflect.New(t).Elem()
		v.SetUint(g.rng.Uint64())
		return v, false
	case reflect.Float32, reflect.Float64:
		v := reflect.New(t).Elem()
		v.SetFloat(g.rng.Float64() * 1e9)
		return v, false
	case reflect.Complex64, reflect.Complex128:
		v := reflect.New(t).Elem()
		v.SetComplex(complex(g.rng.Float64(), g.rng.Float64()))
		return v, false
	case reflect.String:
		v := reflect.New(t).Elem()
		v.SetString(fmt.Sprintf("sig-%016x", g.rng.Uint64()))
		return v, false
	case reflect.Pointer:
		p := reflect.New(t.Elem())
		if depth < maxDepth {
			if inner, _ := g.value(t.Elem(), depth+1); inner.IsValid() {
				p.Elem().Set(inner)
			}
		}
		return p, false
	case reflect.Slice:
		return reflect.MakeSlice(t, 1, 1), false
	case reflect.Map:
		return reflect.MakeMap(t), false
	case reflect.Chan:
		return reflect.MakeChan(t, 0), false
	case reflect.Func:
		return reflect.MakeFunc(t, func([]reflect.Value) []reflect.Value {
			out := make([]reflect.Value, t.NumOut())
			for i := range out {
				out[i] = reflect.Zero(t.Out(i))
			}
			return out
		}), false
	case reflect.Array:
		v := reflect.New(t).Elem()
		for i := 0; i < v.Len() && depth < maxDepth; i++ {
			if inner, _ := g.value(t.Elem(), depth+1); inner.IsValid() {
				v.Index(i).Set(inner)
			}
		}
		return v, false
	case reflect.Struct:
		v := reflect.New(t).Elem()
		for i := 0; i < t.NumField() && depth < maxDepth; i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if inner, _ := g.value(t.Field(i).Type, depth+1); inner.IsValid() {
				v.Field(i).Set(inner)
			}
		}
		return v, false
	case reflect.Interface:
		switch {
		case t == anyType:
			return reflect.ValueOf(&token{n: g.seq}), false
		case t == errorType:
			return reflect.ValueOf(error(&signatureError{n: g.seq})), false
		case reflect.TypeFor[*token]().Implements(t):
			return reflect.ValueOf(&token{n: g.seq}), false
		case reflect.TypeFor[*signatureError]().Implements(t):
			return reflect.ValueOf(&signatureError{n: g.seq}), false
		}
		return reflect.Value{}, true
	}
	return reflect.Value{}, false
}
