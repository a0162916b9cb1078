// Package testutil provides deterministic sessions and a sample typed
// test double for package tests.
//
// Sessions built here use sequential identities ("mock-0001", ...), a
// fixed generator seed and a discarding logger, so that diagnostics and
// golden files are stable from run to run.
package testutil
