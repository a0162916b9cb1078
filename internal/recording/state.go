package recording

import "fmt"

// State is the recorder state.
type State int32

const (
	// Answering is the idle state: calls are answered from the stubs.
	Answering State = iota + 1
	// Stubbing collects the rounds of a stub block.
	Stubbing
	// StubbingAwaitingAnswer waits for the answer of a finished stub block.
	StubbingAwaitingAnswer
	// Verifying collects the rounds of a verify block.
	Verifying
	// SafeLogging answers calls with zero values while diagnostics are
	// being formatted, so formatting never records or stubs.
	SafeLogging
)

var stateNames = map[State]string{
	Answering:              "answering",
	Stubbing:               "stubbing",
	StubbingAwaitingAnswer: "stubbing (awaiting answer)",
	Verifying:              "verifying",
	SafeLogging:            "safe logging",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Recording reports whether calls in this state belong to a DSL block.
func (s State) Recording() bool {
	return s == Stubbing || s == Verifying
}
