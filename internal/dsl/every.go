package dsl

import (
	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/session"
	"github.com/mockk/mockk-sub002/internal/stub"
)

// Stubbing is a recorded stub block waiting for its answer.
type Stubbing struct {
	s   *session.Session
	err error
}

// Every records the calls made by block. Finish it with exactly one of
// the answer methods; recording another block first is an error.
func Every(s *session.Session, block func()) *Stubbing {
	st := &Stubbing{s: s}
	if err := s.Recorder().StartStubbing(); err != nil {
		st.err = err
		return st
	}
	st.err = run(s, block)
	return st
}

// Err returns the recording error, if any.
func (st *Stubbing) Err() error {
	return st.err
}

// Answers installs a.
func (st *Stubbing) Answers(a stub.Answer) error {
	if st.err != nil {
		return st.err
	}
	return st.s.Recorder().Answer(a)
}

// AnswersWith installs fn as the answer.
func (st *Stubbing) AnswersWith(fn func(inv call.Invocation) ([]any, error)) error {
	return st.Answers(stub.AnswerFunc(fn))
}

// Returns answers the given results.
func (st *Stubbing) Returns(values ...any) error {
	return st.Answers(stub.Constant(values...))
}

// ReturnsMany answers each value in turn as the first result, repeating
// the last one.
func (st *Stubbing) ReturnsMany(values ...any) error {
	answers := make([]stub.Answer, len(values))
	for i, v := range values {
		answers[i] = stub.Constant(v)
	}
	return st.Answers(stub.Sequence(answers...))
}

// Throws answers err.
func (st *Stubbing) Throws(err error) error {
	return st.Answers(stub.Throw(err))
}

// CallsOriginal answers by calling the real implementation.
func (st *Stubbing) CallsOriginal() error {
	return st.Answers(stub.CallOriginal())
}

// JustRuns answers zero values, for methods called only for effect.
func (st *Stubbing) JustRuns() error {
	return st.Answers(stub.Constant())
}
