package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/mockk/mockk-sub002/internal/call"
)

// Run appends calls under one run ID. It implements stub.CallSink.
type Run struct {
	j  *Journal
	ID string
}

// StartRun registers a run and returns its writer. An empty id generates
// a UUIDv7. Starting an existing run again reuses it.
func (j *Journal) StartRun(ctx context.Context, id, label string) (*Run, error) {
	if id == "" {
		id = call.UUIDv7Generator{}.Generate()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, label, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, label, time.Now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return &Run{j: j, ID: id}, nil
}

// Append journals inv. Uses ON CONFLICT DO NOTHING for idempotency:
// a call with the same timestamp in the same run is ignored.
func (r *Run) Append(inv call.Invocation) error {
	return r.AppendContext(context.Background(), inv)
}

// AppendContext is Append with a caller context.
func (r *Run) AppendContext(ctx context.Context, inv call.Invocation) error {
	args, err := encodeArgs(inv.Args)
	if err != nil {
		return fmt.Errorf("append call: %w", err)
	}

	var typeName, method, key string
	if inv.Method != nil {
		typeName, method, key = inv.Method.DeclaringType, inv.Method.Name, inv.Method.Key()
	}

	_, err = r.j.db.ExecContext(ctx, `
		INSERT INTO calls
		(run_id, seq, mock_id, mock_name, type_name, method, method_key, args, args_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		r.ID,
		inv.Timestamp,
		inv.Self.ID,
		inv.Self.Name,
		typeName,
		method,
		key,
		args,
		call.FormatArgs(inv.Args),
	)
	if err != nil {
		return fmt.Errorf("append call: %w", err)
	}
	return nil
}
