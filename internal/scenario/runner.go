package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/config"
	"github.com/mockk/mockk-sub002/internal/double"
	"github.com/mockk/mockk-sub002/internal/dsl"
	"github.com/mockk/mockk-sub002/internal/journal"
	"github.com/mockk/mockk-sub002/internal/session"
	"github.com/mockk/mockk-sub002/internal/stub"
	"github.com/mockk/mockk-sub002/internal/verify"
)

// Runner executes scenarios. Every scenario runs in a fresh session with
// deterministic identities.
//
// Thread-safety: Runner is safe for concurrent use; Run may be called
// from several goroutines at once.
type Runner struct {
	base    config.Config
	logger  *slog.Logger
	journal *journal.Journal
}

// Option configures a Runner.
type Option func(*Runner)

// WithBaseConfig sets the configuration scenario config blocks overlay.
// Default: config.Default().
func WithBaseConfig(cfg config.Config) Option {
	return func(r *Runner) {
		r.base = cfg
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithJournal records every scenario's calls as a journal run labeled
// with the scenario name.
func WithJournal(j *journal.Journal) Option {
	return func(r *Runner) {
		r.journal = j
	}
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		base:   config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes sc and reports the outcome of every step and check.
//
// Failed steps and checks are reported, not returned. An error means the
// scenario itself is broken: an unknown type, mock or method, an
// argument that does not convert, or a block the engine refuses to
// record.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	cfg := r.configFor(sc)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	logger := r.logger.With("scenario", sc.Name)
	opts := []session.Option{
		session.WithConfig(cfg),
		session.WithLogger(logger),
		session.WithIdentityGenerator(call.NewFixedGenerator("mock")),
	}

	report := &Report{Scenario: sc.Name, Passed: true}
	if r.journal != nil {
		run, err := r.journal.StartRun(ctx, "", sc.Name)
		if err != nil {
			return nil, err
		}
		report.RunID = run.ID
		opts = append(opts, session.WithJournal(run))
	}

	s := session.New(opts...)
	defer s.Reset()
	double.Register(s)

	e := newEnv(s)
	if err := e.declareTypes(sc.Types); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if err := e.createMocks(sc.Mocks); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	for i, st := range sc.Stubs {
		if err := e.stub(ctx, st); err != nil {
			return nil, fmt.Errorf("scenario %s: stub %d: %w", sc.Name, i+1, err)
		}
	}

	for i, step := range sc.Script {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.step(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: step %d: %w", sc.Name, i+1, err)
		}
		report.addStep(res)
	}

	for i, chk := range sc.Verify {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.check(ctx, chk)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: check %d (%s): %w", sc.Name, i+1, chk.Name, err)
		}
		report.addCheck(res)
	}

	for _, name := range e.captureNames {
		values := e.captures[name].Values
		texts := make([]string, len(values))
		for i, v := range values {
			texts[i] = formatValue(v)
		}
		report.Captures = append(report.Captures, CaptureResult{Name: name, Values: texts})
	}

	logger.Info("scenario finished",
		"passed", report.Passed,
		"steps", len(report.Steps),
		"checks", len(report.Checks))
	return report, nil
}

func (r *Runner) configFor(sc *Scenario) config.Config {
	cfg := r.base
	if sc.Config == nil {
		return cfg
	}
	if sc.Config.Rounds != nil {
		cfg.Rounds = *sc.Config.Rounds
	}
	if sc.Config.MaxRounds != nil {
		cfg.MaxRounds = *sc.Config.MaxRounds
	}
	if sc.Config.Seed != nil {
		cfg.Seed = *sc.Config.Seed
	}
	if sc.Config.Relaxed != nil {
		cfg.Relaxed = *sc.Config.Relaxed
	}
	return cfg
}

// replay makes the call inside a recording block. Matcher expressions
// register their matchers; chained calls go to the placeholder children.
func (e *env) replay(ctx context.Context, cc *compiledCall) error {
	target := e.mocks[cc.mock]
	for i, l := range cc.links {
		if target == nil {
			return fmt.Errorf("%s: chain broken before %s", cc.mock, l.method.m.Name)
		}
		results, err := target.Invoke(l.method.m, e.argValues(ctx, l)...)
		if err != nil {
			return err
		}
		if i < len(cc.links)-1 {
			target, _ = double.Child(results)
		}
	}
	return nil
}

func (e *env) argValues(ctx context.Context, l compiledLink) []any {
	m := l.method.m
	args := make([]any, 0, m.Arity())
	for i, x := range l.args {
		args = append(args, x.eval(e, m.ParamTypes[i]))
	}
	if m.Suspend {
		args = append(args, ctx)
	}
	return args
}

func (e *env) stub(ctx context.Context, st Stub) error {
	cc, err := e.compileCall(st.Call, true)
	if err != nil {
		return err
	}
	last := cc.links[len(cc.links)-1].method.m

	var answer stub.Answer
	switch {
	case st.Throws != "":
		answer = stub.Throw(errors.New(st.Throws))
	case len(st.ReturnsMany) > 0:
		if last.ReturnsUnit() {
			return fmt.Errorf("%s returns nothing", last.Name)
		}
		answers := make([]stub.Answer, len(st.ReturnsMany))
		for i, raw := range st.ReturnsMany {
			v, err := e.compileValue(raw, last.ReturnType())
			if err != nil {
				return fmt.Errorf("returns_many %d: %w", i+1, err)
			}
			answers[i] = stub.Constant(v)
		}
		answer = stub.Sequence(answers...)
	default:
		values, err := e.compileResults(last, st.Returns)
		if err != nil {
			return err
		}
		answer = stub.Constant(values...)
	}

	var replayErr error
	stubbing := dsl.Every(e.s, func() {
		if err := e.replay(ctx, cc); err != nil && replayErr == nil {
			replayErr = err
		}
	})
	if replayErr != nil {
		e.s.Recorder().Reset()
		return replayErr
	}
	return stubbing.Answers(answer)
}

func (e *env) compileResults(m *call.Method, raw []any) ([]any, error) {
	if len(raw) > len(m.ReturnTypes) {
		return nil, fmt.Errorf("%s: %d results given, %d declared", m.Name, len(raw), len(m.ReturnTypes))
	}
	out := make([]any, len(raw))
	for i, r := range raw {
		v, err := e.compileValue(r, m.ReturnTypes[i])
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *env) step(ctx context.Context, step Step) (StepResult, error) {
	cc, err := e.compileCall(step.Call, false)
	if err != nil {
		return StepResult{}, err
	}
	last := cc.links[len(cc.links)-1].method.m
	expected, err := e.compileResults(last, step.Expect)
	if err != nil {
		return StepResult{}, err
	}

	res := StepResult{Call: cc.String(), Passed: true}
	target := e.mocks[cc.mock]
	var results []any
	var callErr error
	for i, l := range cc.links {
		if target == nil {
			callErr = fmt.Errorf("chain broken before %s", l.method.m.Name)
			break
		}
		results, callErr = target.Invoke(l.method.m, e.argValues(ctx, l)...)
		if callErr != nil {
			break
		}
		if i < len(cc.links)-1 {
			target, _ = double.Child(results)
		}
	}

	for _, v := range results {
		res.Results = append(res.Results, formatValue(v))
	}
	if callErr != nil {
		res.Error = callErr.Error()
	}

	switch {
	case step.Error != "" && callErr == nil:
		res.fail(fmt.Sprintf("expected error containing %q", step.Error))
	case step.Error != "" && !strings.Contains(callErr.Error(), step.Error):
		res.fail(fmt.Sprintf("expected error containing %q, got %q", step.Error, callErr.Error()))
	case step.Error == "" && callErr != nil:
		res.fail("unexpected error: " + callErr.Error())
	}
	for i, want := range expected {
		var got any
		if i < len(results) {
			got = results[i]
		}
		if !sameResult(want, got) {
			res.fail(fmt.Sprintf("result %d: expected %s, got %s", i+1, formatValue(want), formatValue(got)))
		}
	}
	return res, nil
}

func sameResult(want, got any) bool {
	if isNil(want) && isNil(got) {
		return true
	}
	if wm, ok := want.(call.Mock); ok {
		gm, ok := got.(call.Mock)
		return ok && !isNil(gm) && wm.MockIdentity() == gm.MockIdentity()
	}
	return reflect.DeepEqual(want, got)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (e *env) check(ctx context.Context, chk Check) (CheckResult, error) {
	p, err := e.params(chk)
	if err != nil {
		return CheckResult{}, err
	}
	calls := make([]*compiledCall, len(chk.Calls))
	for i, c := range chk.Calls {
		if calls[i], err = e.compileCall(c, true); err != nil {
			return CheckResult{}, err
		}
	}
	var notCalled []*double.Double
	for _, name := range chk.NotCalled {
		d, err := e.mockOperand(name)
		if err != nil {
			return CheckResult{}, err
		}
		notCalled = append(notCalled, d)
	}

	var replayErr error
	verr := dsl.VerifyWith(e.s, p, func() {
		for _, cc := range calls {
			if err := e.replay(ctx, cc); err != nil && replayErr == nil {
				replayErr = err
			}
		}
		if len(notCalled) > 0 {
			mocks := make([]call.Mock, len(notCalled))
			for i, d := range notCalled {
				mocks[i] = d
			}
			dsl.WasNotCalled(e.s, mocks...)
		}
	})
	if replayErr != nil {
		e.s.Recorder().Reset()
		return CheckResult{}, replayErr
	}
	if verr != nil && !verify.IsAssertion(verr) {
		return CheckResult{}, verr
	}

	expect := chk.Expect
	if expect == "" {
		expect = "pass"
	}
	res := CheckResult{Name: chk.Name, Expected: expect, Outcome: "pass", Passed: true}
	if verr != nil {
		res.Outcome = "fail"
		res.Message = verr.Error()
	}
	switch {
	case res.Outcome != expect:
		res.Passed = false
	case expect == "fail" && chk.Message != "" && !strings.Contains(res.Message, chk.Message):
		res.Passed = false
		res.Problem = fmt.Sprintf("failure message does not contain %q", chk.Message)
	}
	return res, nil
}

func (e *env) params(chk Check) (verify.Params, error) {
	p := e.s.DefaultParams()
	if chk.Ordering != "" {
		o, err := verify.ParseOrdering(chk.Ordering)
		if err != nil {
			return p, err
		}
		p.Ordering = o
	}
	if chk.AtLeast != nil {
		p.Min = *chk.AtLeast
	}
	if chk.AtMost != nil {
		p.Max = *chk.AtMost
		if p.Min > p.Max {
			p.Min = p.Max
		}
	}
	if chk.Exactly != nil {
		p.Exactly = *chk.Exactly
	}
	p.Inverse = chk.Inverse
	if chk.Timeout != "" {
		d, err := time.ParseDuration(chk.Timeout)
		if err != nil {
			return p, fmt.Errorf("timeout: %w", err)
		}
		p.Timeout = d
	}
	return p, nil
}

func (cc *compiledCall) String() string {
	var b strings.Builder
	b.WriteString(cc.mock)
	for _, l := range cc.links {
		parts := make([]string, len(l.args))
		for i, x := range l.args {
			parts[i] = x.String()
		}
		if l.method.m.Suspend {
			parts = append(parts, "ctx")
		}
		fmt.Fprintf(&b, ".%s(%s)", l.method.m.Name, strings.Join(parts, ", "))
	}
	return b.String()
}

// formatValue renders a value for reports. Doubles render by name only,
// so reports do not depend on generated identities.
func formatValue(v any) string {
	if m, ok := v.(call.Mock); ok && !isNil(m) {
		return "<" + m.MockIdentity().Name + ">"
	}
	if isNil(v) {
		return "null"
	}
	return call.FormatValue(v)
}
