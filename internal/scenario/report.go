package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Report is the outcome of one scenario run.
type Report struct {
	Scenario string `json:"scenario"`

	// RunID is the journal run holding the scenario's calls, if journaled.
	RunID string `json:"run_id,omitempty"`

	// Passed is true when every step and check behaved as expected.
	Passed bool `json:"passed"`

	Steps    []StepResult    `json:"steps"`
	Checks   []CheckResult   `json:"checks"`
	Captures []CaptureResult `json:"captures,omitempty"`
}

// StepResult is the outcome of one script step.
type StepResult struct {
	Call    string   `json:"call"`
	Results []string `json:"results,omitempty"`
	Error   string   `json:"error,omitempty"`
	Passed  bool     `json:"passed"`
	Problem string   `json:"problem,omitempty"`
}

func (r *StepResult) fail(problem string) {
	r.Passed = false
	if r.Problem != "" {
		r.Problem += "; "
	}
	r.Problem += problem
}

// CheckResult is the outcome of one verification block.
type CheckResult struct {
	Name string `json:"name"`

	// Expected and Outcome are "pass" or "fail".
	Expected string `json:"expected"`
	Outcome  string `json:"outcome"`

	Passed bool `json:"passed"`

	// Message is the verification failure, when the block failed.
	Message string `json:"message,omitempty"`

	Problem string `json:"problem,omitempty"`
}

// CaptureResult lists the values captured under one name, in order.
type CaptureResult struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

func (r *Report) addStep(s StepResult) {
	r.Steps = append(r.Steps, s)
	r.Passed = r.Passed && s.Passed
}

func (r *Report) addCheck(c CheckResult) {
	r.Checks = append(r.Checks, c)
	r.Passed = r.Passed && c.Passed
}

// Failures returns one line per failed step or check.
func (r *Report) Failures() []string {
	var out []string
	for i, s := range r.Steps {
		if !s.Passed {
			out = append(out, fmt.Sprintf("step %d %s: %s", i+1, s.Call, s.Problem))
		}
	}
	for _, c := range r.Checks {
		if c.Passed {
			continue
		}
		line := fmt.Sprintf("check %s: expected %s, got %s", c.Name, c.Expected, c.Outcome)
		if c.Problem != "" {
			line = fmt.Sprintf("check %s: %s", c.Name, c.Problem)
		}
		if c.Message != "" {
			line += "\n" + indent(c.Message, "    ")
		}
		out = append(out, line)
	}
	return out
}

// Text renders the report in a stable plain-text form. Verification
// messages are left out; see Failures.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)
	for i, s := range r.Steps {
		fmt.Fprintf(&b, "  step %d: %s", i+1, s.Call)
		switch {
		case s.Error != "":
			fmt.Fprintf(&b, " -> error %q", s.Error)
		case len(s.Results) > 0:
			fmt.Fprintf(&b, " -> %s", strings.Join(s.Results, ", "))
		}
		fmt.Fprintf(&b, " [%s]\n", mark(s.Passed))
	}
	for _, c := range r.Checks {
		fmt.Fprintf(&b, "  check %s: %s (expected %s) [%s]\n", c.Name, c.Outcome, c.Expected, mark(c.Passed))
	}
	for _, c := range r.Captures {
		fmt.Fprintf(&b, "  capture %s: [%s]\n", c.Name, strings.Join(c.Values, ", "))
	}
	fmt.Fprintf(&b, "result: %s\n", strings.ToUpper(mark(r.Passed)))
	return b.String()
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func mark(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
