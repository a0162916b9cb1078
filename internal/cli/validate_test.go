package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeScenario(t, dir, "good.yaml", passScenario)

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS "+good)
}

func TestValidateCommandInvalid(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "good.yaml", passScenario)
	bad := writeScenario(t, dir, "bad.yaml", "name: bad\nmocks: []\ntypes: {}\n")

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL "+bad)
	assert.Contains(t, out, "invalid scenario")
}

func TestValidateCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "good.yaml", passScenario)

	out, err := execute(t, "validate", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 1)
}
