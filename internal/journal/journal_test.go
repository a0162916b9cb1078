package journal

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockk/mockk-sub002/internal/call"
)

var (
	repoID = call.Identity{ID: "mock-0001", Name: "repo"}
	getM   = call.NewMethod("Repo", "Get", []reflect.Type{reflect.TypeFor[int](), reflect.TypeFor[string]()}, nil)
	putM   = call.NewMethod("Repo", "Put", []reflect.Type{reflect.TypeFor[any]()}, nil)
)

// createTestJournal creates a journal in a temporary directory.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calls.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

type fakeMock struct{ id call.Identity }

func (f *fakeMock) MockIdentity() call.Identity { return f.id }

func TestOpen_Pragmas(t *testing.T) {
	j := createTestJournal(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"user_version": "1",
	} {
		got, err := j.pragma(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")
	j1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j2.Close())
}

func TestOpen_MigratesOldJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")
	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.db.Exec("DROP INDEX idx_calls_mock")
	require.NoError(t, err)
	_, err = j.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	version, err := j.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	var name string
	err = j.db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_calls_mock'").Scan(&name)
	require.NoError(t, err)
}

func TestAppendAndRead(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)

	run, err := j.StartRun(ctx, "run-1", "unit")
	require.NoError(t, err)

	require.NoError(t, run.Append(call.NewInvocation(repoID, getM, 2, 7, "x")))
	require.NoError(t, run.Append(call.NewInvocation(repoID, putM, 1, &fakeMock{id: call.Identity{ID: "mock-0002"}})))
	require.NoError(t, run.Append(call.NewInvocation(repoID, putM, 3, func() {})))

	entries, err := j.Calls(ctx, "run-1", Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(1), entries[0].Seq, "ordered by seq")
	assert.Equal(t, "mock-0002", entries[0].Args[0].Mock)

	get := entries[1]
	assert.Equal(t, "Repo", get.TypeName)
	assert.Equal(t, "Get", get.Method)
	assert.Equal(t, getM.Key(), get.MethodKey)
	assert.Equal(t, int64(7), get.Args[0].Value)
	assert.Equal(t, "x", get.Args[1].Value)
	assert.Equal(t, `repo#mock-0001.Get(7, "x")`, get.String())

	fn := entries[2].Args[0]
	assert.Nil(t, fn.Value, "funcs keep only their text")
	assert.NotEmpty(t, fn.Text)
}

func TestAppend_Idempotent(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)
	run, err := j.StartRun(ctx, "run-1", "")
	require.NoError(t, err)

	inv := call.NewInvocation(repoID, getM, 1, 1, "a")
	require.NoError(t, run.Append(inv))
	require.NoError(t, run.Append(inv))

	entries, err := j.Calls(ctx, "run-1", Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCalls_Filter(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)
	run, err := j.StartRun(ctx, "run-1", "")
	require.NoError(t, err)

	other := call.Identity{ID: "mock-0003", Name: "other"}
	require.NoError(t, run.Append(call.NewInvocation(repoID, getM, 1, 1, "a")))
	require.NoError(t, run.Append(call.NewInvocation(other, getM, 2, 2, "b")))
	require.NoError(t, run.Append(call.NewInvocation(repoID, putM, 3, "c")))

	byMock, err := j.Calls(ctx, "run-1", Filter{MockID: "mock-0001"})
	require.NoError(t, err)
	assert.Len(t, byMock, 2)

	byMethod, err := j.Calls(ctx, "run-1", Filter{MockID: "mock-0001", Method: "Put"})
	require.NoError(t, err)
	require.Len(t, byMethod, 1)
	assert.Equal(t, int64(3), byMethod[0].Seq)

	none, err := j.Calls(ctx, "missing", Filter{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = j.LatestRun(ctx)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	first, err := j.StartRun(ctx, "", "first")
	require.NoError(t, err)
	assert.Len(t, first.ID, 36, "generated run IDs are UUIDs")
	require.NoError(t, first.Append(call.NewInvocation(repoID, getM, 1, 1, "a")))

	second, err := j.StartRun(ctx, "run-2", "second")
	require.NoError(t, err)

	runs, err = j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, RunInfo{ID: first.ID, Label: "first", Calls: 1}, runs[0])
	assert.Equal(t, RunInfo{ID: "run-2", Label: "second", Calls: 0}, runs[1])

	latest, err := j.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest)
}
