package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoCmd_PersistsSessionDatabase(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "session.db")

	run := func() string {
		t.Helper()
		root := NewRootCmd("test", "none", "today")
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs([]string{"demo", "--settle", "20ms", "--db", dbPath})
		require.NoError(t, root.Execute())
		return out.String()
	}

	first := run()
	assert.Contains(t, first, "vistagrid demo")
	assert.Contains(t, first, "final layout")

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	// A second run restores its session from the same database.
	second := run()
	assert.Contains(t, second, "final layout")
}

func TestDemoCmd_DefaultsToConfiguredDatabasePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	root := NewRootCmd("test", "none", "today")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"demo", "--settle", "20ms"})
	require.NoError(t, root.Execute())

	_, err := os.Stat(filepath.Join(dataHome, "vistagrid", "vistagrid.db"))
	require.NoError(t, err)
}
