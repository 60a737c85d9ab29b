package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the path to the Ocrway data directory.
// - OCRWAY_DATA_DIR if set
// - Windows: %APPDATA%\ocrway
// - Other OS: ~/.ocrway
func DataDir() string {
	if dir := os.Getenv("OCRWAY_DATA_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "ocrway")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".ocrway"
	}
	return filepath.Join(home, ".ocrway")
}

// DBPath returns the path to the SQLite database file.
func DBPath() string {
	return filepath.Join(DataDir(), "ocrway.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0700)
}
