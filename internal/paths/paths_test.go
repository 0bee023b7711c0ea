package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirPrefersHome(t *testing.T) {
	t.Setenv("HOME", "/tmp/home")
	t.Setenv("USERPROFILE", "/tmp/profile")

	got := Dir()
	want := filepath.Join("/tmp/home", ".ask")
	if got != want {
		t.Fatalf("Dir() = %q, want %q", got, want)
	}
}

func TestDirFallsBackToUserProfile(t *testing.T) {
	t.Setenv("HOME", "")
	t.Setenv("USERPROFILE", "/tmp/profile")

	got := Dir()
	want := filepath.Join("/tmp/profile", ".ask")
	if got != want {
		t.Fatalf("Dir() = %q, want %q", got, want)
	}
}

func TestFileLayout(t *testing.T) {
	t.Setenv("HOME", "/tmp/home")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigFile", ConfigFile(), filepath.Join("/tmp/home", ".ask", "config")},
		{"CacheFile", CacheFile(), filepath.Join("/tmp/home", ".ask", "tools_cache.json")},
		{"SessionsDir", SessionsDir(), filepath.Join("/tmp/home", ".ask", "sessions")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestEnsureDirCreatesParents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", dir)
	}
}
