// Package call provides the data model shared by every other package of the
// call recording core.
//
// This package contains type definitions only: receiver identities, method
// descriptors, intercepted invocations, the logical clock used to stamp them,
// and canonical key computation. All other internal packages import call;
// call imports nothing internal.
//
// Key design constraints:
//   - Invocations are immutable once created by the interception layer
//   - Ordering uses the logical clock (Timestamp), never wall-clock time
//   - Method identity is structural (declaring type, name, parameter types)
//   - Canonical keys are stable across runs for the same logical input
package call
