package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one scenario document.
type Scenario struct {
	// Name identifies the scenario in reports and golden files.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	// Config overlays the runner's base configuration.
	Config *Config `yaml:"config,omitempty"`

	// Types declares the method sets doubles are made of, by type name.
	Types map[string]TypeDecl `yaml:"types"`

	Mocks  []MockDecl `yaml:"mocks"`
	Stubs  []Stub     `yaml:"stubs,omitempty"`
	Script []Step     `yaml:"script,omitempty"`
	Verify []Check    `yaml:"verify,omitempty"`
}

// Config holds per-scenario engine settings.
type Config struct {
	Rounds    *int    `yaml:"rounds,omitempty"`
	MaxRounds *int    `yaml:"max_rounds,omitempty"`
	Seed      *uint64 `yaml:"seed,omitempty"`
	Relaxed   *bool   `yaml:"relaxed,omitempty"`
}

// TypeDecl is a declared double type.
type TypeDecl struct {
	Methods []MethodDecl `yaml:"methods"`
}

// MethodDecl declares one method. Params and Returns name built-in types
// or declared types.
type MethodDecl struct {
	Name    string   `yaml:"name"`
	Params  []string `yaml:"params,omitempty"`
	Returns []string `yaml:"returns,omitempty"`
}

// MockDecl creates a named double of a declared type.
type MockDecl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Link is one call in a chain, made on the double the previous call
// returned.
type Link struct {
	Method string `yaml:"method"`
	Args   []any  `yaml:"args,omitempty"`
}

// Call is a call on a named double, optionally followed by chained calls.
type Call struct {
	Mock   string `yaml:"mock"`
	Method string `yaml:"method"`
	Args   []any  `yaml:"args,omitempty"`
	Then   []Link `yaml:"then,omitempty"`
}

// Stub installs an answer for a call pattern. At most one of Returns,
// ReturnsMany and Throws is set; none answers zero values.
type Stub struct {
	Call        Call   `yaml:"call"`
	Returns     []any  `yaml:"returns,omitempty"`
	ReturnsMany []any  `yaml:"returns_many,omitempty"`
	Throws      string `yaml:"throws,omitempty"`
}

// Step makes a call and optionally checks its results or error.
type Step struct {
	Call   Call   `yaml:"call"`
	Expect []any  `yaml:"expect,omitempty"`
	Error  string `yaml:"error,omitempty"`
}

// Check is one verification block.
type Check struct {
	Name      string   `yaml:"name"`
	Ordering  string   `yaml:"ordering,omitempty"`
	Exactly   *int     `yaml:"exactly,omitempty"`
	AtLeast   *int     `yaml:"at_least,omitempty"`
	AtMost    *int     `yaml:"at_most,omitempty"`
	Inverse   bool     `yaml:"inverse,omitempty"`
	Timeout   string   `yaml:"timeout,omitempty"`
	Calls     []Call   `yaml:"calls,omitempty"`
	NotCalled []string `yaml:"not_called,omitempty"`

	// Expect is "pass" (default) or "fail".
	Expect string `yaml:"expect,omitempty"`

	// Message must appear in the failure text when Expect is "fail".
	Message string `yaml:"message,omitempty"`
}

// Load reads, validates and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse validates data against the scenario schema and decodes it.
func Parse(data []byte) (*Scenario, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &sc, nil
}
