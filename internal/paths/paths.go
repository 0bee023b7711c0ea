package paths

import (
	"os"
	"path/filepath"
)

const (
	configName   = "config"
	cacheName    = "tools_cache.json"
	sessionsName = "sessions"
)

// Home returns the user's home directory, preferring $HOME and then
// $USERPROFILE so tests and Windows hosts resolve the same way.
func Home() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	if h := os.Getenv("USERPROFILE"); h != "" {
		return h
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}
	return "."
}

// Dir returns the ask state directory (~/.ask).
func Dir() string {
	return filepath.Join(Home(), ".ask")
}

// ConfigFile returns the path to the JSON config document.
func ConfigFile() string {
	return filepath.Join(Dir(), configName)
}

// CacheFile returns the path to the tool schema cache.
func CacheFile() string {
	return filepath.Join(Dir(), cacheName)
}

// SessionsDir returns the directory holding saved conversations.
func SessionsDir() string {
	return filepath.Join(Dir(), sessionsName)
}

// EnsureDir creates a directory and parents if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
