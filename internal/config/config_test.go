package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir so the developer's
// own ~/.config does not leak into tests.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, IndexModeAllSubstrings, cfg.Engine.IndexMode)
	assert.Equal(t, `\s+`, cfg.Engine.TokenizePattern)
	assert.False(t, cfg.Engine.CaseSensitive)
	assert.Equal(t, 128, cfg.Engine.CacheSize)
	assert.Equal(t, "resourceSearch", cfg.Store.Namespace)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_UsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	// Given: a project config with engine and watch settings
	isolate(t)
	dir := t.TempDir()
	content := `
engine:
  index_mode: prefixes
  case_sensitive: true
watch:
  delay: 25ms
store:
  namespace: catalog
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(content), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: set values override, unset keep defaults
	require.NoError(t, err)
	assert.Equal(t, IndexModePrefixes, cfg.Engine.IndexMode)
	assert.True(t, cfg.Engine.CaseSensitive)
	assert.Equal(t, `\s+`, cfg.Engine.TokenizePattern)
	assert.Equal(t, "catalog", cfg.Store.Namespace)

	delay, err := cfg.WatchDelay()
	require.NoError(t, err)
	assert.Equal(t, 25*time.Millisecond, delay)
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".resourcesearch.yml"), []byte("engine:\n  index_mode: exact_words\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, IndexModeExactWords, cfg.Engine.IndexMode)
}

func TestLoad_UserConfigThenProjectConfig(t *testing.T) {
	// Given: user config sets case sensitivity, project config sets the mode
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	userDir := filepath.Join(xdg, "resourcesearch")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("engine:\n  case_sensitive: true\n  index_mode: exact_words\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName),
		[]byte("engine:\n  index_mode: prefixes\n"), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: project wins where set, user config survives elsewhere
	require.NoError(t, err)
	assert.Equal(t, IndexModePrefixes, cfg.Engine.IndexMode)
	assert.True(t, cfg.Engine.CaseSensitive)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName),
		[]byte("engine:\n  index_mode: prefixes\n"), 0o644))

	t.Setenv("RESOURCESEARCH_INDEX_MODE", "exact_words")
	t.Setenv("RESOURCESEARCH_CASE_SENSITIVE", "1")
	t.Setenv("RESOURCESEARCH_CACHE_SIZE", "0")
	t.Setenv("RESOURCESEARCH_NAMESPACE", "ns")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, IndexModeExactWords, cfg.Engine.IndexMode)
	assert.True(t, cfg.Engine.CaseSensitive)
	assert.Equal(t, 0, cfg.Engine.CacheSize)
	assert.Equal(t, "ns", cfg.Store.Namespace)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("engine: [unclosed"), 0o644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown index mode", func(c *Config) { c.Engine.IndexMode = "fuzzy" }, "engine.index_mode"},
		{"bad pattern", func(c *Config) { c.Engine.TokenizePattern = "([" }, "tokenize_pattern"},
		{"empty pattern", func(c *Config) { c.Engine.TokenizePattern = "" }, "tokenize_pattern"},
		{"negative cache", func(c *Config) { c.Engine.CacheSize = -1 }, "cache_size"},
		{"bad delay", func(c *Config) { c.Watch.Delay = "soon" }, "watch.delay"},
		{"negative debounce", func(c *Config) { c.Watch.FileDebounce = "-1s" }, "watch.file_debounce"},
		{"empty namespace", func(c *Config) { c.Store.Namespace = " " }, "store.namespace"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Engine.IndexMode = IndexModePrefixes

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, IndexModePrefixes, loaded.Engine.IndexMode)
}

func TestBackupFile(t *testing.T) {
	// Given: an existing config file
	path := filepath.Join(t.TempDir(), ProjectConfigName)
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	// When: backing it up more times than MaxBackups
	for i := 0; i < MaxBackups+2; i++ {
		backup, err := BackupFile(path)
		require.NoError(t, err)
		require.NotEmpty(t, backup)
		time.Sleep(2 * time.Millisecond)
	}

	// Then: only MaxBackups remain
	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}

func TestBackupFile_MissingFile(t *testing.T) {
	backup, err := BackupFile(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Empty(t, backup)
}
