// config.go - Client configuration management

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type ConfigScan struct {
	RescanIntervalMinutes int      `json:"rescanIntervalMinutes"`
	MaxFileCount          int      `json:"maxFileCount"`
	FolderIgnorePatterns  []string `json:"folderIgnorePatterns"`
}

type ConfigTagging struct {
	Enabled bool `json:"enabled"`
}

type ConfigAudit struct {
	RetentionDays int `json:"retentionDays"` // 0 keeps entries until explicitly purged
}

// ConfigWatcher bootstrap definition for a watched root; persisted into the
// watchers table on first start when the table is empty
type ConfigWatcher struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Filter     string `json:"filter"`
	IncludeSub bool   `json:"includeSub"`
	BufferSize int    `json:"bufferSize"`
	Enabled    bool   `json:"enabled"`
}

// Client configuration file structure
type ClientConfig struct {
	Scan     ConfigScan      `json:"scan"`
	Tagging  ConfigTagging   `json:"tagging"`
	Audit    ConfigAudit     `json:"audit"`
	Watchers []ConfigWatcher `json:"watchers"`
}

var DefaultFolderIgnorePatterns = []string{
	// Filter all directories starting with dot
	".*",
	// Keep other transient directories
	"logs/", "temp/", "tmp/", "node_modules/",
	"bin/", "dist/", "build/", "out/",
	"__pycache__/", "venv/", "target/", "vendor/",
}

var DefaultConfigScan = ConfigScan{
	RescanIntervalMinutes: 30,     // Default rescan interval in minutes
	MaxFileCount:          100000, // Default maximum file count per watcher
	FolderIgnorePatterns:  DefaultFolderIgnorePatterns,
}

var DefaultConfigTagging = ConfigTagging{
	Enabled: true,
}

var DefaultConfigAudit = ConfigAudit{
	RetentionDays: 0, // Keep audit entries until explicitly purged
}

// Default client configuration
var DefaultClientConfig = ClientConfig{
	Scan:    DefaultConfigScan,
	Tagging: DefaultConfigTagging,
	Audit:   DefaultConfigAudit,
}

// Global client configuration
var clientConfig ClientConfig

// GetClientConfig gets the current client configuration
func GetClientConfig() ClientConfig {
	return clientConfig
}

// SetClientConfig sets the client configuration
func SetClientConfig(config ClientConfig) {
	clientConfig = config
}

// AppInfo holds application metadata
type AppInfo struct {
	AppName  string `json:"appName"`
	Version  string `json:"version"`
	OSName   string `json:"osName"`
	ArchName string `json:"archName"`
}

var appInfo AppInfo

func GetAppInfo() AppInfo {
	return appInfo
}

func SetAppInfo(info AppInfo) {
	appInfo = info
}

// LoadClientConfig loads the client configuration from a JSON file, filling
// unset sections with defaults; a missing file is not an error
func LoadClientConfig(configFilePath string) error {
	clientConfig = DefaultClientConfig

	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFilePath, err)
	}

	fileConfig := DefaultClientConfig
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configFilePath, err)
	}

	if fileConfig.Scan.RescanIntervalMinutes <= 0 {
		fileConfig.Scan.RescanIntervalMinutes = DefaultConfigScan.RescanIntervalMinutes
	}
	if fileConfig.Scan.MaxFileCount <= 0 {
		fileConfig.Scan.MaxFileCount = DefaultConfigScan.MaxFileCount
	}
	if len(fileConfig.Scan.FolderIgnorePatterns) == 0 {
		fileConfig.Scan.FolderIgnorePatterns = DefaultConfigScan.FolderIgnorePatterns
	}
	if fileConfig.Audit.RetentionDays < 0 {
		fileConfig.Audit.RetentionDays = 0
	}

	clientConfig = fileConfig
	return nil
}
