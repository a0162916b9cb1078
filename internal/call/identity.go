package call

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Identity identifies the receiver of an invocation (a test double).
//
// Identities are comparable and are used as keys in the stub repository.
// The ID is unique per double; Name is a human readable label used in
// diagnostics only.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.ID == ""
}

// String renders the identity as "name#shortid". IDs longer than 12
// characters (UUIDs) are shortened to their last 8.
func (id Identity) String() string {
	short := id.ID
	if len(short) > 12 {
		short = short[len(short)-8:]
	}
	if id.Name == "" {
		return "#" + short
	}
	return id.Name + "#" + short
}

// IdentityGenerator produces unique identity IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IdentityGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identity IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predictable sequential IDs for tests.
//
// IDs have the form "<prefix>-0001", "<prefix>-0002", ... so diagnostics
// and golden files stay byte-identical across runs.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedGenerator creates a generator emitting IDs with the given prefix.
// An empty prefix defaults to "mock".
func NewFixedGenerator(prefix string) *FixedGenerator {
	if prefix == "" {
		prefix = "mock"
	}
	return &FixedGenerator{prefix: prefix}
}

// Generate returns the next sequential ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// NewIdentity creates an identity with a freshly generated ID.
func NewIdentity(gen IdentityGenerator, name string) Identity {
	return Identity{ID: gen.Generate(), Name: name}
}

// Mock is implemented by every test double. The engine uses it to tell
// doubles apart from ordinary argument and return values.
type Mock interface {
	MockIdentity() Identity
}

// IdentityOf returns the identity of v when v is a test double.
func IdentityOf(v any) (Identity, bool) {
	if m, ok := v.(Mock); ok && !isNilMock(m) {
		return m.MockIdentity(), true
	}
	return Identity{}, false
}

func isNilMock(m Mock) bool {
	rv := reflect.ValueOf(m)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
