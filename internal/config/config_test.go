package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfig(t *testing.T) {
	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("MissingFileKeepsDefaults", func(t *testing.T) {
		require.NoError(t, LoadClientConfig("/nonexistent/config.json"))

		cfg := GetClientConfig()
		assert.Equal(t, DefaultConfigScan.RescanIntervalMinutes, cfg.Scan.RescanIntervalMinutes)
		assert.True(t, cfg.Tagging.Enabled)
		assert.Zero(t, cfg.Audit.RetentionDays)
	})

	t.Run("PartialFileKeepsUnsetSections", func(t *testing.T) {
		path := writeConfig(t, `{"audit": {"retentionDays": 14}}`)
		require.NoError(t, LoadClientConfig(path))

		cfg := GetClientConfig()
		assert.Equal(t, 14, cfg.Audit.RetentionDays)
		// 未出现的配置段保持默认值
		assert.True(t, cfg.Tagging.Enabled)
		assert.Equal(t, DefaultConfigScan.MaxFileCount, cfg.Scan.MaxFileCount)
		assert.NotEmpty(t, cfg.Scan.FolderIgnorePatterns)
	})

	t.Run("ExplicitValuesWin", func(t *testing.T) {
		path := writeConfig(t, `{
			"scan": {"rescanIntervalMinutes": 5, "maxFileCount": 100},
			"tagging": {"enabled": false},
			"watchers": [{"name": "docs", "path": "/watch/docs", "filter": "*.txt", "includeSub": true, "enabled": true}]
		}`)
		require.NoError(t, LoadClientConfig(path))

		cfg := GetClientConfig()
		assert.Equal(t, 5, cfg.Scan.RescanIntervalMinutes)
		assert.Equal(t, 100, cfg.Scan.MaxFileCount)
		assert.False(t, cfg.Tagging.Enabled)
		require.Len(t, cfg.Watchers, 1)
		assert.Equal(t, "/watch/docs", cfg.Watchers[0].Path)
	})

	t.Run("InvalidValuesFallBack", func(t *testing.T) {
		path := writeConfig(t, `{"scan": {"rescanIntervalMinutes": -1}, "audit": {"retentionDays": -5}}`)
		require.NoError(t, LoadClientConfig(path))

		cfg := GetClientConfig()
		assert.Equal(t, DefaultConfigScan.RescanIntervalMinutes, cfg.Scan.RescanIntervalMinutes)
		assert.Zero(t, cfg.Audit.RetentionDays)
	})

	t.Run("MalformedJSONIsAnError", func(t *testing.T) {
		path := writeConfig(t, `{not json`)
		assert.Error(t, LoadClientConfig(path))
	})
}
