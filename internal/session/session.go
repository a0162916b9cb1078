// Package session wires the engine components into one explicit per-test
// context: a stub repository, a call recording state machine and a
// verification engine sharing one clock, one identity generator and one
// configuration.
//
// Test doubles hold a *Session and forward every intercepted call to
// Deliver. Sessions replace ambient (thread-local) engine state: create
// one per test, use it, and Reset or discard it afterwards.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/config"
	"github.com/mockk/mockk-sub002/internal/recording"
	"github.com/mockk/mockk-sub002/internal/stub"
	"github.com/mockk/mockk-sub002/internal/verify"
)

// ErrNotRegistered is returned by Mock when no constructor is registered
// for the requested type.
var ErrNotRegistered = errors.New("no double constructor registered")

// Constructor builds a double of one type for the given identity.
// The returned value must implement call.Mock and report id.
type Constructor func(id call.Identity) any

type registration struct {
	t    reflect.Type
	ctor Constructor
}

// Session is the per-test engine context.
//
// Thread-safety: doubles may call Deliver from any goroutine. The
// recording entry points (used by the dsl package) belong to the
// goroutine that owns the session.
type Session struct {
	cfg    config.Config
	logger *slog.Logger
	gen    call.IdentityGenerator
	clock  *call.Clock
	sink   stub.CallSink

	repo     *stub.Repository
	engine   *verify.Engine
	recorder *recording.Recorder

	mu    sync.RWMutex
	ctors []registration
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the engine configuration. Default: config.Default().
func WithConfig(cfg config.Config) Option {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithIdentityGenerator sets the generator for double identities.
// Default: call.UUIDv7Generator
func WithIdentityGenerator(gen call.IdentityGenerator) Option {
	return func(s *Session) {
		s.gen = gen
	}
}

// WithClock sets the invocation clock.
func WithClock(clock *call.Clock) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithJournal tees every recorded call into sink (see journal.Run).
func WithJournal(sink stub.CallSink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// New creates a session.
func New(opts ...Option) *Session {
	s := &Session{
		cfg:    config.Default(),
		logger: slog.Default(),
		gen:    call.UUIDv7Generator{},
		clock:  call.NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	repoOpts := []stub.Option{
		stub.WithFactory(s),
		stub.WithRelaxed(s.cfg.Relaxed),
		stub.WithLogger(s.logger),
	}
	if s.sink != nil {
		repoOpts = append(repoOpts, stub.WithJournal(s.sink))
	}
	s.repo = stub.NewRepository(repoOpts...)

	s.engine = verify.NewEngine(s.repo,
		verify.WithLogger(s.logger),
		verify.WithStackTraces(s.cfg.StackTraces))

	s.recorder = recording.NewRecorder(s.repo,
		recording.WithRounds(s.cfg.Rounds),
		recording.WithMaxRounds(s.cfg.MaxRounds),
		recording.WithSeed(s.cfg.Seed),
		recording.WithFactory(s),
		recording.WithVerifier(s.engine),
		recording.WithLogger(s.logger))
	s.engine.SetSafeFormatter(s.recorder.SafeToString)

	s.logger.Debug("session created",
		"relaxed", s.cfg.Relaxed,
		"rounds", s.cfg.Rounds,
		"seed", s.cfg.Seed)
	return s
}

// Config returns the session configuration.
func (s *Session) Config() config.Config { return s.cfg }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Repository returns the stub repository.
func (s *Session) Repository() *stub.Repository { return s.repo }

// Recorder returns the call recording state machine.
func (s *Session) Recorder() *recording.Recorder { return s.recorder }

// Clock returns the invocation clock.
func (s *Session) Clock() *call.Clock { return s.clock }

// Register makes the session able to build doubles of type t, for
// Mock, for placeholder doubles while recording, and for child doubles
// of call chains. A later registration for the same type replaces the
// earlier one.
func (s *Session) Register(t reflect.Type, ctor Constructor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.ctors {
		if r.t == t {
			s.ctors[i].ctor = ctor
			return
		}
	}
	s.ctors = append(s.ctors, registration{t: t, ctor: ctor})
}

// Register is the typed form of Session.Register.
func Register[T any](s *Session, ctor func(id call.Identity) T) {
	s.Register(reflect.TypeFor[T](), func(id call.Identity) any { return ctor(id) })
}

// Mock builds a new named double of type T.
func Mock[T any](s *Session, name string) (T, error) {
	var zero T
	v, _, ok := s.NewMock(reflect.TypeFor[T](), name)
	if !ok {
		return zero, fmt.Errorf("mock %s: %w for %s", name, ErrNotRegistered, reflect.TypeFor[T]())
	}
	return v.(T), nil
}

// NewMock implements stub.Factory. Exact registrations win; otherwise the
// first registered type implementing a non-empty interface t is used.
func (s *Session) NewMock(t reflect.Type, name string) (any, call.Identity, bool) {
	ctor, ok := s.constructor(t)
	if !ok {
		return nil, call.Identity{}, false
	}
	id := call.NewIdentity(s.gen, name)
	v := ctor(id)
	if v == nil {
		return nil, call.Identity{}, false
	}
	return v, id, true
}

func (s *Session) constructor(t reflect.Type) (Constructor, bool) {
	if t == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.ctors {
		if r.t == t {
			return r.ctor, true
		}
	}
	if t.Kind() != reflect.Interface || t.NumMethod() == 0 {
		return nil, false
	}
	for _, r := range s.ctors {
		if r.t.Implements(t) {
			return r.ctor, true
		}
	}
	return nil, false
}

// Deliver is the invocation source: every double forwards its intercepted
// calls here.
//
// While a stub or verify block is being recorded the call is recorded and
// answered with placeholders. While diagnostics are being formatted it is
// answered with zero values. Otherwise the stub answers it and it joins
// the call history.
func (s *Session) Deliver(inv call.Invocation) ([]any, error) {
	if s.recorder.Intercepts() {
		return s.recorder.Record(inv)
	}
	if s.recorder.State() == recording.SafeLogging {
		return stub.ZeroResults(inv.Method), nil
	}

	st := s.repo.StubFor(inv.Self)
	results, err := st.Answer(inv)
	st.RecordCall(inv)
	if err != nil {
		s.logger.Debug("call answered with error", "call", inv.String(), "error", err)
	}
	return results, err
}

// Invoke stamps a call on self and delivers it.
func (s *Session) Invoke(self call.Mock, m *call.Method, args ...any) ([]any, error) {
	return s.Deliver(call.NewInvocation(self.MockIdentity(), m, s.clock.Next(), args...))
}

// InvokeWithOriginal is Invoke for doubles that wrap a real
// implementation reachable through stub.CallOriginal answers.
func (s *Session) InvokeWithOriginal(self call.Mock, m *call.Method, original func() ([]any, error), args ...any) ([]any, error) {
	inv := call.NewInvocation(self.MockIdentity(), m, s.clock.Next(), args...)
	return s.Deliver(inv.WithOriginal(original))
}

// DefaultParams returns verification parameters carrying the configured
// default timeout.
func (s *Session) DefaultParams() verify.Params {
	p := verify.DefaultParams()
	p.Timeout = s.cfg.DefaultTimeout
	return p
}

// Clear clears stubs without resetting the recorder.
func (s *Session) Clear(opts stub.ClearOptions) {
	s.repo.Clear(opts)
}

// Reset abandons any block being recorded and clears every stub.
func (s *Session) Reset() {
	s.recorder.Reset()
	s.repo.Clear(stub.ClearAll)
	s.logger.Debug("session reset")
}
