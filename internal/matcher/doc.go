// Package matcher implements the value predicates bound to argument
// positions, and the invocation matchers assembled from them.
//
// Matcher is a closed tagged union: the Kind field selects the variant and
// Match dispatches with an exhaustive switch. Composite kinds (And, Or, Not)
// are built in two steps. At DSL time they only remember their operand
// values; signature detection later binds the real sub-matchers into Subs.
//
// Capture kinds never write into their container while matching. Writing
// happens through Capture, which verification calls only after the overall
// outcome is known to be successful.
package matcher
