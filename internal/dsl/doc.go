// Package dsl is the user-facing entry point: it drives the recording
// rounds of stub and verify blocks and provides the generic matcher
// functions used inside them.
//
// A block is ordinary Go code calling test doubles:
//
//	dsl.Every(s, func() {
//		repo.Get(dsl.Gt(s, 0), "x")
//	}).Returns("found")
//
//	err := dsl.Verify(s, func() {
//		repo.Get(dsl.Any[int](s), dsl.Capture(s, &keys))
//	}, dsl.AtLeast(2))
//
// Blocks run several times. Matcher functions return fresh placeholder
// values each round, which is how the engine tells matched arguments from
// literal ones. Blocks must therefore take the same path on every run and
// must not branch on the values matcher functions return.
//
// Matcher functions panic with a *recording.Error when used outside a
// block; Every and Verify recover that panic and report it as their error.
package dsl
