package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, verbose = "", false
	financeDir, csvDir = "", ""

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regnex.json")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Default configuration saved to: "+path)
	assert.FileExists(t, path)

	out, err = execute(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid!")

	out, err = execute(t, "config", "show", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"finance_dir": "financeAgent/data"`)
}

func TestConfigValidateMissingFile(t *testing.T) {
	_, err := execute(t, "config", "validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestSetupWithFolders(t *testing.T) {
	root := t.TempDir()
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("REGNEX_DATA_FINANCE_DIR", filepath.Join(root, "finance"))
	t.Setenv("REGNEX_DATA_CSV_DIR", filepath.Join(root, "csv"))
	reports := filepath.Join(root, "reports")
	quotes := filepath.Join(root, "quotes")
	require.NoError(t, os.MkdirAll(reports, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reports, "q1.txt"), []byte("Revenue grew."), 0o644))

	path := filepath.Join(root, "regnex.json")
	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)

	out, err := execute(t, "setup", "-c", path, "--finance-dir", reports, "--csv-dir", quotes)
	require.NoError(t, err)
	assert.Contains(t, out, "Finance Documents Loaded: 1")
	assert.Contains(t, out, "CSV Files Loaded: 0")
	assert.DirExists(t, quotes)
}

func TestAskRequiresQuery(t *testing.T) {
	_, err := execute(t, "ask")
	assert.Error(t, err)
}
