package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/n0rdy/approvals/common"
)

const (
	appDir = "approvals"
	dbFile = "listings.db"
)

// ResolveDBPath returns the listings database location, creating its directory if needed.
// An explicit path wins; otherwise an existing database in one of the OS data directories is reused
// before falling back to the preferred one.
func ResolveDBPath(explicitPath string) (string, error) {
	if explicitPath != "" {
		return ensureDir(explicitPath)
	}

	candidates := dataDirs()
	var existing []string
	for _, dir := range candidates {
		path := filepath.Join(dir, appDir, dbFile)
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}

	switch len(existing) {
	case 0:
		if len(candidates) == 0 {
			return ensureDir(filepath.Join(appDir, dbFile))
		}
		return ensureDir(filepath.Join(candidates[0], appDir, dbFile))
	case 1:
		return existing[0], nil
	default:
		return "", fmt.Errorf("multiple database files found at: %v, remove the duplicates or set APPROVALS_DB_PATH", existing)
	}
}

// dataDirs lists the OS data directories, the preferred one first
func dataDirs() []string {
	var dirs []string
	homeDir, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case common.WindowsOS:
		for _, env := range []string{"APPDATA", "LOCALAPPDATA"} {
			if dir := os.Getenv(env); dir != "" {
				dirs = append(dirs, dir)
			}
		}
	case common.MacOS:
		if homeDir != "" {
			dirs = append(dirs, filepath.Join(homeDir, "Library", "Application Support"))
		}
	case common.LinuxOS:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			dirs = append(dirs, xdgData)
		}
		if homeDir != "" {
			dirs = append(dirs, filepath.Join(homeDir, ".local", "share"))
		}
	}

	if homeDir != "" {
		dirs = append(dirs, homeDir)
	}
	return dirs
}

func ensureDir(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return path, nil
}
