package recording

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/stub"
	"github.com/mockk/mockk-sub002/internal/verify"
)

// DefaultMaxRounds caps the estimated number of rounds per block.
const DefaultMaxRounds = 64

// Verifier runs one verification attempt. Implemented by verify.Engine.
type Verifier interface {
	Verify(req verify.Request) error
}

// Recorder is the call recording state machine.
//
// The round driver uses it as follows:
//
//	StartStubbing() or StartVerification(p)
//	run block                         (round 0)
//	n := Rounds()
//	for i := 1; i < n; i++ { Round(i, n); run block }
//	Done()
//	Answer(a)                         (stubbing only)
//
// Any operation outside its legal state resets the recorder to Answering
// and returns an ILLEGAL_STATE error.
//
// Thread-safety: a recorder belongs to one test session and is driven from
// one goroutine. The state is atomic so that doubles called from other
// goroutines can check it without locking; Record and Matcher lock the
// round data. Calls made from other goroutines while a block is being
// recorded are recorded into the block.
type Recorder struct {
	state atomic.Int32

	repo      *stub.Repository
	factory   stub.Factory
	verifier  Verifier
	logger    *slog.Logger
	rounds    int
	maxRounds int
	seed      uint64

	gen      *SignatureGenerator
	detector *Detector
	chains   *ChainResolver

	mu        sync.Mutex
	builder   RoundBuilder
	finished  []CallRound
	planned   int
	params    verify.Params
	notCalled []call.Identity
	pending   []matcher.RecordedCall
	temps     map[reflect.Type]any // verify-time placeholder doubles by type
	resume    State                // state to restore after SafeLogging
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithRounds fixes the number of rounds per block. Zero estimates it from
// the argument types of the first round.
func WithRounds(n int) Option {
	return func(r *Recorder) {
		r.rounds = n
	}
}

// WithMaxRounds caps the estimated number of rounds.
// Default: 64 (DefaultMaxRounds)
func WithMaxRounds(n int) Option {
	return func(r *Recorder) {
		r.maxRounds = n
	}
}

// WithSeed seeds the signature generator.
func WithSeed(seed uint64) Option {
	return func(r *Recorder) {
		r.seed = seed
	}
}

// WithFactory sets the factory used for placeholder doubles.
func WithFactory(f stub.Factory) Option {
	return func(r *Recorder) {
		r.factory = f
	}
}

// WithVerifier sets the verification engine.
func WithVerifier(v Verifier) Option {
	return func(r *Recorder) {
		r.verifier = v
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder creates a recorder in the Answering state.
func NewRecorder(repo *stub.Repository, opts ...Option) *Recorder {
	r := &Recorder{
		repo:      repo,
		maxRounds: DefaultMaxRounds,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.verifier == nil {
		r.verifier = verify.NewEngine(repo, verify.WithLogger(r.logger))
	}
	r.gen = NewSignatureGenerator(r.seed, r.factory)
	r.detector = NewDetector(r.logger)
	r.chains = NewChainResolver(repo)
	r.state.Store(int32(Answering))
	return r
}

// State returns the current state.
func (r *Recorder) State() State {
	return State(r.state.Load())
}

// Intercepts reports whether calls on doubles must go to Record rather
// than to the stubs.
func (r *Recorder) Intercepts() bool {
	s := r.State()
	return s.Recording() || s == StubbingAwaitingAnswer
}

// StartStubbing begins recording a stub block.
func (r *Recorder) StartStubbing() error {
	if err := r.require("StartStubbing", Answering); err != nil {
		return err
	}
	r.mu.Lock()
	r.clearLocked()
	r.mu.Unlock()
	r.state.Store(int32(Stubbing))
	r.logger.Debug("stubbing started")
	return nil
}

// StartVerification begins recording a verify block.
func (r *Recorder) StartVerification(p verify.Params) error {
	if err := r.require("StartVerification", Answering); err != nil {
		return err
	}
	r.mu.Lock()
	r.clearLocked()
	r.params = p
	r.temps = make(map[reflect.Type]any)
	r.mu.Unlock()
	r.state.Store(int32(Verifying))
	r.logger.Debug("verification started", "ordering", p.Ordering.String())
	return nil
}

// Matcher registers m and returns a fresh placeholder of type t for the
// DSL to pass where the matched argument goes.
func (r *Recorder) Matcher(m *matcher.Matcher, t reflect.Type) (any, error) {
	if err := r.require("Matcher", Stubbing, Verifying); err != nil {
		return nil, err
	}
	v := r.gen.Generate(t)
	r.mu.Lock()
	r.builder.AddMatcher(m, matcher.Pack(v))
	r.mu.Unlock()
	return v, nil
}

// Record adds inv to the current round and returns placeholder results.
// The first result is a placeholder double when the return type is
// mockable, so calls chained on it can be recognized.
func (r *Recorder) Record(inv call.Invocation) ([]any, error) {
	state := r.State()
	if err := r.require("Record", Stubbing, Verifying); err != nil {
		return nil, err
	}

	results := stub.ZeroResults(inv.Method)
	retType := inv.Method.ReturnType()

	r.mu.Lock()
	defer r.mu.Unlock()

	retValue := r.placeholderLocked(state, retType, inv)
	if retValue != nil {
		results[0] = retValue
	} else if len(results) > 0 {
		retValue = results[0]
	}
	r.builder.AddSignedCall(retValue, retType, inv)
	return results, nil
}

func (r *Recorder) placeholderLocked(state State, t reflect.Type, inv call.Invocation) any {
	if t == nil || r.factory == nil {
		return nil
	}
	if state == Verifying {
		if v, ok := r.temps[t]; ok {
			return v
		}
	}
	v, _, ok := r.factory.NewMock(t, inv.Self.Name+"."+inv.Method.Name)
	if !ok {
		return nil
	}
	if state == Verifying {
		r.temps[t] = v
	}
	return v
}

// Rounds returns the number of rounds the block must run, fixed by
// configuration or estimated from the first round.
func (r *Recorder) Rounds() (int, error) {
	if err := r.require("Rounds", Stubbing, Verifying); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.planned == 0 {
		if r.rounds > 0 {
			r.planned = r.rounds
		} else {
			r.planned = EstimateRounds(CallRound{Calls: r.builder.calls}, r.maxRounds)
		}
	}
	return r.planned, nil
}

// Round closes the previous round and opens round i of n.
func (r *Recorder) Round(i, n int) error {
	if err := r.require("Round", Stubbing, Verifying); err != nil {
		return err
	}
	r.mu.Lock()
	expected := len(r.finished) + 1
	if i != expected || i >= n || (r.planned != 0 && n != r.planned) {
		r.mu.Unlock()
		return r.fail(&Error{
			Code:    ErrCodeRoundOutOfRange,
			Message: fmt.Sprintf("round %d of %d requested, expected round %d of %d", i, n, expected, r.planned),
			State:   r.State(),
		})
	}
	if r.planned == 0 {
		r.planned = n
	}
	r.finished = append(r.finished, r.builder.Build())
	r.mu.Unlock()
	return nil
}

// Done finishes the block. Stub blocks move on to awaiting their answer;
// verify blocks return to Answering and run verification, returning a
// verify.AssertionError on failure.
func (r *Recorder) Done() error {
	state := r.State()
	if err := r.require("Done", Stubbing, Verifying); err != nil {
		return err
	}

	r.mu.Lock()
	rounds := append(r.finished, r.builder.Build())
	r.finished = nil
	params, notCalled := r.params, r.notCalled
	r.mu.Unlock()

	detected, err := r.detector.Detect(rounds)
	if err != nil {
		return r.fail(withState(err, state))
	}

	if state == Stubbing {
		if len(detected) == 0 {
			return r.fail(&Error{Code: ErrCodeNoCalls, Message: "stub block made no calls on any double", State: state})
		}
		calls, err := r.chains.ResolveStub(detected)
		if err != nil {
			return r.fail(err)
		}
		r.mu.Lock()
		r.pending = calls
		r.mu.Unlock()
		r.state.Store(int32(StubbingAwaitingAnswer))
		r.logger.Debug("stub block recorded", "calls", len(calls), "rounds", len(rounds))
		return nil
	}

	if len(detected) == 0 && len(notCalled) == 0 {
		return r.fail(&Error{Code: ErrCodeEmptyVerificationBlock, Message: "verify block made no calls on any double", State: state})
	}
	calls := r.chains.ResolveVerify(detected)

	// Back to Answering first: the verifier may wait for calls made by
	// other goroutines, which must be answered rather than recorded.
	r.Reset()

	err = r.verifier.Verify(verify.Request{Params: params, Calls: calls, NotCalled: notCalled})
	r.logger.Debug("verification finished",
		"ordering", params.Ordering.String(),
		"statements", len(calls),
		"ok", err == nil)
	return err
}

// Answer installs a for the recorded stub block. Every call of a chain
// except the last answers the child double that the next call was
// recorded on.
func (r *Recorder) Answer(a stub.Answer) error {
	if err := r.require("Answer", StubbingAwaitingAnswer); err != nil {
		return err
	}
	r.mu.Lock()
	calls := r.pending
	r.mu.Unlock()

	for i, rc := range calls {
		ans := a
		if feedsChain(calls, i) {
			ans = stub.Constant(rc.RetValue)
		}
		if err := r.repo.StubFor(rc.Matcher.Self).AddAnswer(rc.Matcher, ans); err != nil {
			return r.fail(err)
		}
	}
	r.Reset()
	r.logger.Debug("stub answer installed", "calls", len(calls))
	return nil
}

// feedsChain reports whether some later call is chained on call i.
func feedsChain(calls []matcher.RecordedCall, i int) bool {
	if !calls[i].IsRetValueMock {
		return false
	}
	id, ok := call.IdentityOf(calls[i].RetValue)
	if !ok {
		return false
	}
	for _, later := range calls[i+1:] {
		if later.Chained() && later.Matcher.Self == id {
			return true
		}
	}
	return false
}

// WasNotCalled adds "no calls at all" checks for whole doubles to the
// verify block being recorded.
func (r *Recorder) WasNotCalled(ids ...call.Identity) error {
	if err := r.require("WasNotCalled", Verifying); err != nil {
		return err
	}
	r.mu.Lock()
	// Only the first round contributes; every round repeats the same checks.
	if len(r.finished) == 0 {
		r.notCalled = append(r.notCalled, ids...)
	}
	r.mu.Unlock()
	return nil
}

// Pending returns the recorded calls awaiting an answer.
func (r *Recorder) Pending() []matcher.RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]matcher.RecordedCall, len(r.pending))
	copy(out, r.pending)
	return out
}

// SafeToString runs format in the SafeLogging state, so that doubles
// reached while formatting answer zero values instead of recording.
func (r *Recorder) SafeToString(format func() string) string {
	prev := r.State()
	if prev == SafeLogging {
		return format()
	}
	r.mu.Lock()
	r.resume = prev
	r.mu.Unlock()
	r.state.Store(int32(SafeLogging))
	defer func() {
		r.mu.Lock()
		resume := r.resume
		r.mu.Unlock()
		r.state.Store(int32(resume))
	}()
	return format()
}

// Reset abandons any block in progress and returns to Answering.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.clearLocked()
	r.mu.Unlock()
	r.state.Store(int32(Answering))
}

func (r *Recorder) clearLocked() {
	r.builder.Build()
	r.finished = nil
	r.planned = 0
	r.params = verify.Params{}
	r.notCalled = nil
	r.pending = nil
	r.temps = nil
}

// require checks that the recorder is in one of the legal states.
func (r *Recorder) require(op string, legal ...State) error {
	state := r.State()
	for _, s := range legal {
		if s == state {
			return nil
		}
	}
	return r.fail(newIllegalState(state, op))
}

// fail resets the recorder and returns err.
func (r *Recorder) fail(err error) error {
	r.Reset()
	r.logger.Warn("recording aborted", "error", err)
	return err
}

func withState(err error, state State) error {
	if e, ok := err.(*Error); ok && e.State == 0 {
		e.State = state
	}
	return err
}
