package verify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/stub"
)

// Engine runs verification attempts against a stub repository.
//
// Thread-safety: Engine is safe for concurrent use; each Verify call works
// on its own snapshot of the call history.
type Engine struct {
	repo   *stub.Repository
	logger *slog.Logger
	stacks bool
	safe   func(func() string) string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStackTraces includes per-call stack traces in assertion errors.
func WithStackTraces(enabled bool) Option {
	return func(e *Engine) {
		e.stacks = enabled
	}
}

// NewEngine creates an engine backed by repo.
func NewEngine(repo *stub.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		logger: slog.Default(),
		safe:   func(f func() string) string { return f() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetSafeFormatter routes diagnostic formatting through format, which
// the recorder uses to keep doubles reached by String methods from
// recording.
func (e *Engine) SetSafeFormatter(format func(func() string) string) {
	if format != nil {
		e.safe = format
	}
}

// Verify runs req, waiting up to its timeout for matching calls. On
// success the captured arguments are committed; on failure an
// *AssertionError is returned.
func (e *Engine) Verify(req Request) error {
	res, waited := e.attempt(req)
	if res.OK {
		if !req.Params.Inverse {
			Commit(req.Calls, res)
		}
		e.logger.Info("verification passed",
			"ordering", req.Params.Ordering.String(),
			"statements", len(req.Calls))
		return nil
	}

	err := &AssertionError{
		Ordering: req.Params.Ordering,
		Inverse:  req.Params.Inverse,
		Calls:    res.Calls,
		Stacks:   e.stacks,
	}
	if waited {
		err.Timeout = req.Params.Timeout
	}
	err.Message = e.safe(func() string { return res.Message })
	err.Statements = make([]StatementReport, len(req.Calls))
	for i, rc := range req.Calls {
		text := e.safe(rc.String)
		matched := i < len(res.Matched) && res.Matched[i]
		err.Statements[i] = StatementReport{Text: text, Matched: matched}
	}
	e.logger.Info("verification failed",
		"ordering", req.Params.Ordering.String(),
		"statements", len(req.Calls),
		"timeout", req.Params.Timeout)
	return err
}

// attempt applies the timeout decorator: check, then wait for a call on a
// touched double and check again until the deadline passes. The boolean
// reports that the deadline passed.
func (e *Engine) attempt(req Request) (Result, bool) {
	if req.Params.Timeout <= 0 {
		res, _ := e.check(req)
		return res, false
	}

	deadline := time.Now().Add(req.Params.Timeout)
	timer := time.NewTimer(req.Params.Timeout)
	defer timer.Stop()

	ids := rootReceivers(req)
	for {
		// Watch before checking, so a call landing between the check and
		// the wait still wakes us.
		w := e.repo.Watch(ids...)
		res, seen := e.check(req)
		if res.OK {
			w.Close()
			return res, false
		}
		ids = mergeIdentities(ids, seen)

		select {
		case <-w.C():
			w.Close()
			e.logger.Debug("verification retry", "remaining", time.Until(deadline))
		case <-timer.C:
			w.Close()
			final, _ := e.check(req)
			return final, !final.OK
		}
	}
}

// check is one verification attempt, inverted when requested. It also
// returns the receivers it looked at.
func (e *Engine) check(req Request) (Result, []call.Identity) {
	stmts := bindStatements(e.repo, req.Calls)
	ids := touched(stmts)
	calls := callsOf(e.repo, ids)

	res := e.run(req, stmts, calls)
	if req.Params.Inverse {
		res = invert(res, req)
	}
	return res, ids
}

func (e *Engine) run(req Request, stmts []statement, calls []call.Invocation) Result {
	if res := e.checkNotCalled(req.NotCalled); !res.OK {
		return res
	}
	if len(stmts) == 0 {
		return ok(nil, nil, calls)
	}

	switch req.Params.Ordering {
	case Ordered:
		return verifyOrdered(stmts, calls)
	case Sequence:
		return verifySequence(stmts, calls)
	case All:
		return verifyAll(e.repo, stmts, req.Params, calls)
	default:
		return verifyUnordered(e.repo, stmts, req.Params, calls)
	}
}

func (e *Engine) checkNotCalled(ids []call.Identity) Result {
	var failures []string
	var trace []call.Invocation
	for _, id := range ids {
		s, ok := e.repo.Lookup(id)
		if !ok {
			continue
		}
		calls := s.AllRecordedCalls()
		if len(calls) > 0 {
			failures = append(failures, fmt.Sprintf("%s should not be called, but was called:\n%s", id, formatCalls(calls)))
			trace = append(trace, calls...)
		}
	}
	if len(failures) > 0 {
		return failure(strings.TrimRight(strings.Join(failures, "\n"), "\n"), nil, trace)
	}
	return Result{OK: true}
}

func invert(res Result, req Request) Result {
	if !res.OK {
		return Result{OK: true, Calls: res.Calls, Matched: res.Matched}
	}
	msg := "statements matched, but the verification was inverted"
	if len(req.Calls) == 0 {
		msg = "no forbidden calls happened, but the verification was inverted"
	}
	return Result{Message: msg, Matched: res.Matched, Calls: res.Calls}
}

func rootReceivers(req Request) []call.Identity {
	var ids []call.Identity
	for _, rc := range req.Calls {
		root := rc
		if anc := rc.Ancestors(); len(anc) > 0 {
			root = anc[len(anc)-1]
		}
		ids = append(ids, root.Matcher.Self)
	}
	return mergeIdentities(ids, req.NotCalled)
}

func mergeIdentities(a, b []call.Identity) []call.Identity {
	seen := make(map[call.Identity]bool, len(a)+len(b))
	var out []call.Identity
	for _, ids := range [][]call.Identity{a, b} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
