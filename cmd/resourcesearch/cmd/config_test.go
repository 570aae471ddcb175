package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resourcesearch/internal/config"
)

func TestConfigCmd_HasSubcommands(t *testing.T) {
	// Given: root command
	cmd := NewRootCmd()

	// When: finding config command
	configCmd, _, err := cmd.Find([]string{"config"})
	require.NoError(t, err)

	// Then: config command has init, show and path
	names := make(map[string]bool)
	for _, sc := range configCmd.Commands() {
		names[sc.Name()] = true
	}
	assert.True(t, names["init"], "should have init command")
	assert.True(t, names["show"], "should have show command")
	assert.True(t, names["path"], "should have path command")
}

func TestConfigInit_WritesDefaults(t *testing.T) {
	// Given: an empty config directory
	dir := isolate(t)

	// When: running config init
	out, err := execute(t, "--config-dir", dir, "config", "init")

	// Then: the project file holds the defaults
	require.NoError(t, err)
	assert.Contains(t, out, "Created project configuration")

	path := filepath.Join(dir, config.ProjectConfigName)
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig(), cfg)
	assert.FileExists(t, path)
}

func TestConfigInit_KeepsExistingWithoutForce(t *testing.T) {
	// Given: an existing project file
	dir := isolate(t)
	path := writeFile(t, dir, config.ProjectConfigName, "engine:\n  index_mode: prefixes\n")

	// When: running config init without --force
	out, err := execute(t, "--config-dir", dir, "config", "init")

	// Then: the file is untouched
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "engine:\n  index_mode: prefixes\n", string(data))
}

func TestConfigInit_ForceBacksUp(t *testing.T) {
	// Given: an existing project file
	dir := isolate(t)
	path := writeFile(t, dir, config.ProjectConfigName, "engine:\n  index_mode: prefixes\n")

	// When: running config init --force
	out, err := execute(t, "--config-dir", dir, "config", "init", "--force")

	// Then: the old file is backed up and replaced by the defaults
	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")

	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Contains(t, string(old), "prefixes")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.IndexModeAllSubstrings, cfg.Engine.IndexMode)
}

func TestConfigShow_MergesProjectFile(t *testing.T) {
	// Given: a project file overriding the namespace
	dir := isolate(t)
	writeFile(t, dir, config.ProjectConfigName, "store:\n  namespace: search\n")

	// When: showing the config as JSON
	out, err := execute(t, "--config-dir", dir, "config", "show", "--json")

	// Then: the override is merged over the defaults
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "search", cfg.Store.Namespace)
	assert.Equal(t, config.IndexModeAllSubstrings, cfg.Engine.IndexMode)
}

func TestConfigShow_YAML(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "--config-dir", dir, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "index_mode: all_substrings")
}

func TestConfigShow_ReportsInvalidFile(t *testing.T) {
	// Given: an invalid project file
	dir := isolate(t)
	writeFile(t, dir, config.ProjectConfigName, "engine:\n  cache_size: -1\n")

	// When: showing the config
	_, err := execute(t, "--config-dir", dir, "config", "show")

	// Then: the validation error is returned
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache_size")
}

func TestConfigPath_PrintsBothPaths(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "--config-dir", dir, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, ".config", "resourcesearch", "config.yaml"))
	assert.Contains(t, out, filepath.Join(dir, config.ProjectConfigName))
}
