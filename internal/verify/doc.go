// Package verify implements the verification engine.
//
// Verification compares the statements recorded from a verify block with
// every call recorded on the doubles those statements touch, sorted by
// timestamp. Four strategies are available:
//
//   - Unordered: each statement must match a bounded number of calls
//   - Ordered: statements must match calls in order (longest common
//     subsequence), unrelated calls may come in between
//   - Sequence: calls must be exactly the statements, in order
//   - All: Unordered plus every call on the touched doubles must be
//     matched by some statement
//
// Any strategy can wait for calls with a timeout. Capture matchers are
// only written to after the final outcome is known to be a success (see
// Commit).
package verify
