// Package stub implements the in-memory stub repository.
//
// A Repository owns one Stub per test double identity. A Stub holds three
// tables, each guarded by the stub's own mutex:
//   - the answer table: invocation matcher to Answer, newest entry wins
//   - the call history: every invocation delivered while answering
//   - the child mocks: persistent doubles returned by stubbed call chains
//
// Stubs may be shared across goroutines. Recording a call signals every
// Watcher registered on the stub, which is what timeout verification
// blocks on.
package stub
