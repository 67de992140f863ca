package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveDBPathUsesExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "listings.db")

	resolved, err := ResolveDBPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected %s, got %s", path, resolved)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected the directory to be created: %v", err)
	}
}

func TestResolveDBPathPrefersXdgDataHome(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_DATA_HOME is only used on linux")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	t.Setenv("HOME", t.TempDir())

	resolved, err := ResolveDBPath("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != filepath.Join(xdg, appDir, dbFile) {
		t.Fatalf("unexpected path: %s", resolved)
	}
}

func TestResolveDBPathRefusesDuplicates(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_DATA_HOME is only used on linux")
	}
	xdg := t.TempDir()
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	t.Setenv("HOME", home)

	for _, dir := range []string{xdg, home} {
		path := filepath.Join(dir, appDir, dbFile)
		os.MkdirAll(filepath.Dir(path), 0755)
		os.WriteFile(path, nil, 0644)
	}

	if _, err := ResolveDBPath(""); err == nil {
		t.Fatalf("expected an error for duplicate database files")
	}
}
