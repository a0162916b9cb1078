package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/config"
	"github.com/mockk/mockk-sub002/internal/double"
	"github.com/mockk/mockk-sub002/internal/session"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestConfig returns the configuration deterministic sessions use.
func TestConfig() config.Config {
	cfg := config.Default()
	cfg.Seed = 42
	return cfg
}

// NewSession creates a deterministic session with Store doubles and
// dynamic doubles registered. The session is reset when the test ends.
func NewSession(t testing.TB, opts ...session.Option) *session.Session {
	t.Helper()
	base := []session.Option{
		session.WithConfig(TestConfig()),
		session.WithLogger(DiscardLogger()),
		session.WithIdentityGenerator(call.NewFixedGenerator("mock")),
	}
	s := session.New(append(base, opts...)...)
	RegisterStore(s)
	double.Register(s)
	t.Cleanup(s.Reset)
	return s
}
