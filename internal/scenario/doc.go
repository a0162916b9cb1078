// Package scenario runs YAML call scenarios through the full engine.
//
// A scenario declares interface-like types, creates dynamic doubles of
// them, stubs calls, runs a script of calls against the stubs and checks
// the resulting call history with verification blocks. Stub and verify
// blocks go through the real recording rounds and signature detection,
// so scenarios exercise the engine exactly as Go test code does.
//
// Scenario documents are validated against an embedded CUE schema before
// they are decoded (see Validate).
//
// # Argument expressions
//
// Scalars and lists are literals converted to the parameter type. A
// single-key map is a matcher or a reference:
//
//	{any: true}          any value
//	{eq: v}              equal to v
//	{lt|le|gt|ge: v}     ordered comparison
//	{and: [a, b]}        both match; operands are expressions
//	{or: [a, b]}         either matches
//	{not: a}             a does not match
//	{null: true}         nil; {null: false} for non-nil
//	{capture: name}      any value, captured under name
//	{all_any: true}      first argument only: any arguments at all
//	{mock: name}         literal: the named double
//	{ref: name}          the very same double as name
//
// A trailing "context" parameter is filled in by the runner and never
// matched.
package scenario
