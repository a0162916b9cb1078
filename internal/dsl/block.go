package dsl

import (
	"errors"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/recording"
	"github.com/mockk/mockk-sub002/internal/session"
)

// run executes block through all recording rounds and finishes it.
// Engine errors raised by matcher functions inside the block are
// recovered and returned.
func run(s *session.Session, block func()) (err error) {
	rec := s.Recorder()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		rec.Reset()
		if e, ok := r.(error); ok {
			var re *recording.Error
			if errors.As(e, &re) {
				err = e
				return
			}
		}
		panic(r)
	}()

	block()
	n, err := rec.Rounds()
	if err != nil {
		return err
	}
	for i := 1; i < n; i++ {
		if err := rec.Round(i, n); err != nil {
			return err
		}
		block()
	}
	return rec.Done()
}

// WasNotCalled, inside a Verify block, checks that the doubles received
// no calls at all.
func WasNotCalled(s *session.Session, doubles ...call.Mock) {
	ids := make([]call.Identity, len(doubles))
	for i, d := range doubles {
		ids[i] = d.MockIdentity()
	}
	if err := s.Recorder().WasNotCalled(ids...); err != nil {
		panic(err)
	}
}
