package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCmd(t *testing.T, format, path string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(testRoot(format))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})
	return buf, cmd.Execute()
}

func writeBrokenMeta(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(testMeta)
	require.NoError(t, err)
	broken := strings.Replace(string(data), "step: 1", "step: 0", 1)
	path := filepath.Join(t.TempDir(), "meta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))
	return path
}

func TestValidateValidMeta(t *testing.T) {
	buf, err := runValidateCmd(t, "text", testMeta)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Meta file valid (2 query-sets)")
}

func TestValidateValidMetaJSON(t *testing.T) {
	buf, err := runValidateCmd(t, "json", testMeta)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.QuerySets)
}

func TestValidateInvalidMeta(t *testing.T) {
	buf, err := runValidateCmd(t, "text", writeBrokenMeta(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Validation failed")
	assert.Contains(t, buf.String(), "INVALID_DOCUMENT: ")
	assert.Contains(t, buf.String(), "step")
}

func TestValidateInvalidMetaJSON(t *testing.T) {
	buf, err := runValidateCmd(t, "json", writeBrokenMeta(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Issues)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_DOCUMENT", resp.Error.Code)
}

func TestValidateNonExistentFile(t *testing.T) {
	buf, err := runValidateCmd(t, "text", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]")
}
