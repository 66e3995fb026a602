// utils/path.go - Path handling utilities
package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	AppRootDir = "./.filetag"
	LogsDir    = "./.filetag/logs"
	DbDir      = "./.filetag/db"
)

// GetRootDir gets cross-platform root directory
// Returns paths like Windows: %USERPROFILE%/.appname, Linux/macOS: ~/.appname
func GetRootDir(appName string) (string, error) {
	var rootDir string

	switch runtime.GOOS {
	case "windows":
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			rootDir = filepath.Join(userProfile, "."+appName)
		} else if appData := os.Getenv("APPDATA"); appData != "" {
			rootDir = filepath.Join(appData, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			rootDir = filepath.Join(homeDir, "."+appName)
		}
	default:
		// Linux/macOS: XDG_CONFIG_HOME if set, otherwise hidden home directory
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			rootDir = filepath.Join(xdgConfig, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			rootDir = filepath.Join(homeDir, "."+appName)
		}
	}

	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return "", err
	}

	AppRootDir = rootDir

	return rootDir, nil
}

// GetLogDir gets log directory under the root path
func GetLogDir(rootPath string) (string, error) {
	logDir := filepath.Join(rootPath, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", err
	}

	LogsDir = logDir

	return logDir, nil
}

// GetDbDir gets database directory under the root path
func GetDbDir(rootPath string) (string, error) {
	dbDir := filepath.Join(rootPath, "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}

	DbDir = dbDir

	return dbDir, nil
}

// SplitFullPath splits a full file path into its parent directory and base name
func SplitFullPath(fullPath string) (dir, name string) {
	cleaned := filepath.Clean(fullPath)
	return filepath.Dir(cleaned), filepath.Base(cleaned)
}

// JoinFullPath rebuilds the full path from a record's directory and base name
func JoinFullPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// FileExt returns the file extension including the leading dot
func FileExt(name string) string {
	return filepath.Ext(name)
}

// IsHiddenName reports whether the base name denotes a hidden file
func IsHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}
