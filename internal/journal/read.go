package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RunInfo describes one journaled run.
type RunInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Calls int    `json:"calls"`
}

// Entry is one journaled call.
type Entry struct {
	RunID     string `json:"run_id"`
	Seq       int64  `json:"seq"`
	MockID    string `json:"mock_id"`
	MockName  string `json:"mock_name"`
	TypeName  string `json:"type_name"`
	Method    string `json:"method"`
	MethodKey string `json:"method_key"`
	Args      []Arg  `json:"args"`
	ArgsText  string `json:"args_text"`
}

// String renders the entry like call.Invocation does.
func (e Entry) String() string {
	self := e.MockID
	if e.MockName != "" {
		self = e.MockName + "#" + e.MockID
	}
	return fmt.Sprintf("%s.%s(%s)", self, e.Method, e.ArgsText)
}

// Filter narrows Calls. Zero fields match everything.
type Filter struct {
	MockID string
	Method string
}

// Runs returns every run in creation order.
// Returns an empty slice (not nil) if the journal is empty.
func (j *Journal) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.label, COUNT(c.seq)
		FROM runs r
		LEFT JOIN calls c ON c.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at ASC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.Label, &r.Calls); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Calls returns the calls of a run matching f, ordered by seq.
// Returns an empty slice (not nil) if nothing matches.
func (j *Journal) Calls(ctx context.Context, runID string, f Filter) ([]Entry, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT run_id, seq, mock_id, mock_name, type_name, method, method_key, args, args_text
		FROM calls
		WHERE run_id = ?`)
	args := []any{runID}
	if f.MockID != "" {
		query.WriteString(` AND mock_id = ?`)
		args = append(args, f.MockID)
	}
	if f.Method != "" {
		query.WriteString(` AND method = ?`)
		args = append(args, f.Method)
	}
	query.WriteString(`
		ORDER BY seq ASC`)

	rows, err := j.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return entries, nil
}

// LatestRun returns the ID of the most recently created run.
// Returns sql.ErrNoRows (wrapped) if the journal has no runs.
func (j *Journal) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := j.db.QueryRowContext(ctx, `
		SELECT id FROM runs
		ORDER BY created_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var blob []byte
	if err := rows.Scan(&e.RunID, &e.Seq, &e.MockID, &e.MockName, &e.TypeName,
		&e.Method, &e.MethodKey, &blob, &e.ArgsText); err != nil {
		return Entry{}, fmt.Errorf("scan call: %w", err)
	}
	args, err := decodeArgs(blob)
	if err != nil {
		return Entry{}, fmt.Errorf("scan call %s/%d: %w", e.RunID, e.Seq, err)
	}
	e.Args = args
	return e, nil
}
