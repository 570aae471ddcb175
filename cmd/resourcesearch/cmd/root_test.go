package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: root command
	cmd := NewRootCmd()

	// When: listing subcommands
	names := make(map[string]bool)
	for _, sc := range cmd.Commands() {
		names[sc.Name()] = true
	}

	// Then: every command is registered
	for _, want := range []string{"search", "watch", "config", "version"} {
		assert.True(t, names[want], "should have %s command", want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	debug := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, debug)
	assert.Equal(t, "false", debug.DefValue)

	dir := cmd.PersistentFlags().Lookup("config-dir")
	require.NotNil(t, dir)
	assert.Equal(t, ".", dir.DefValue)
}

func TestRootCmd_ProfilesWritten(t *testing.T) {
	// Given: a search run with CPU and heap profiling
	dir := isolate(t)
	data := writeFile(t, dir, "docs.yaml", documentsYAML)
	cpu := filepath.Join(dir, "cpu.prof")
	mem := filepath.Join(dir, "mem.prof")

	// When: the command completes
	_, err := execute(t, "--config-dir", dir, "--cpuprofile", cpu, "--memprofile", mem,
		"search", "--data", data, "first")

	// Then: both profiles were flushed
	require.NoError(t, err)
	for _, path := range []string{cpu, mem} {
		info, statErr := os.Stat(path)
		require.NoError(t, statErr)
		assert.Positive(t, info.Size(), path)
	}
}

func TestRootCmd_InvalidConfigFailsCommands(t *testing.T) {
	// Given: a project config with an unknown index mode
	dir := isolate(t)
	writeFile(t, dir, ".resourcesearch.yaml", "engine:\n  index_mode: fuzzy\n")
	data := writeFile(t, dir, "docs.yaml", documentsYAML)

	// When: running a search
	_, err := execute(t, "--config-dir", dir, "search", "--data", data, "first")

	// Then: the configuration error is reported
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index_mode")
}

func TestIsConfigCmd(t *testing.T) {
	root := NewRootCmd()

	show, _, err := root.Find([]string{"config", "show"})
	require.NoError(t, err)
	search, _, err := root.Find([]string{"search"})
	require.NoError(t, err)

	assert.True(t, isConfigCmd(show))
	assert.False(t, isConfigCmd(search))
}
