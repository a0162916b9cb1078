package journal

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mockk/mockk-sub002/internal/call"
)

// Arg is one journaled argument.
type Arg struct {
	// Value is the decoded value, or nil when it had no portable
	// encoding. Integers decode as int64 or uint64, floats as float64.
	Value any `msgpack:"value" json:"value,omitempty"`

	// Text is the printed form at record time.
	Text string `msgpack:"text" json:"text"`

	// Mock is the identity of a double passed as the argument.
	Mock string `msgpack:"mock,omitempty" json:"mock,omitempty"`
}

func (a Arg) String() string {
	return a.Text
}

// encodeArgs converts invocation arguments into a msgpack blob.
// Values msgpack cannot encode keep only their text.
func encodeArgs(args []any) ([]byte, error) {
	out := make([]Arg, len(args))
	for i, v := range args {
		out[i] = Arg{Text: call.FormatValue(v)}
		if id, ok := call.IdentityOf(v); ok {
			out[i].Mock = id.ID
			continue
		}
		if _, err := msgpack.Marshal(v); err == nil {
			out[i].Value = v
		}
	}
	data, err := msgpack.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return data, nil
}

func decodeArgs(data []byte) ([]Arg, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var out []Arg
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	if out == nil {
		out = []Arg{}
	}
	return out, nil
}
