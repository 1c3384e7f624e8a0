package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetOrDefault(t *testing.T) {
	t.Setenv("STORAGE_TEST_SET", "value")
	t.Setenv("STORAGE_TEST_EMPTY", "")

	tests := []struct {
		key      string
		expected string
	}{
		{"STORAGE_TEST_SET", "value"},
		{"STORAGE_TEST_EMPTY", "default"},
		{"STORAGE_TEST_MISSING", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := GetOrDefault(tt.key, "default"); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestIsLocal(t *testing.T) {
	t.Setenv("ENVIRONMENT", "local")
	if !IsLocal() {
		t.Error("expected local environment")
	}

	t.Setenv("ENVIRONMENT", "production")
	if IsLocal() {
		t.Error("expected non-local environment")
	}
}

func TestLoadKeepsExistingValues(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(file, []byte("STORAGE_TEST_LOADED=fromfile\nSTORAGE_TEST_KEPT=fromfile\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STORAGE_TEST_KEPT", "fromenv")
	t.Setenv("STORAGE_TEST_LOADED", "")
	os.Unsetenv("STORAGE_TEST_LOADED")

	Load(file, filepath.Join(t.TempDir(), "missing.env"))

	if got := os.Getenv("STORAGE_TEST_LOADED"); got != "fromfile" {
		t.Errorf("expected value from file, got %q", got)
	}
	if got := os.Getenv("STORAGE_TEST_KEPT"); got != "fromenv" {
		t.Errorf("expected existing value to win, got %q", got)
	}
}
