// ABOUTME: Tests for agora configuration
// ABOUTME: Verifies config load, save, defaults and env precedence

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	path := GetConfigPath()
	if path != filepath.Join("/tmp/cfg", "agora", "config.json") {
		t.Errorf("unexpected config path: %s", path)
	}
}

func TestLoadNonExistent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed on non-existent config: %v", err)
	}
	if cfg.Site.MinTopicTitleLength != 15 {
		t.Errorf("expected default min title length 15, got %d", cfg.Site.MinTopicTitleLength)
	}
	if cfg.GetJobSchedule() != DefaultJobSchedule {
		t.Errorf("expected default schedule, got %s", cfg.GetJobSchedule())
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.DBPath = "/srv/agora/forum.db"
	cfg.Site.AllowDuplicateTopicTitles = true
	cfg.Site.MinTopicTitleLength = 5

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DBPath != cfg.DBPath {
		t.Errorf("DBPath mismatch: got %s, want %s", loaded.DBPath, cfg.DBPath)
	}
	if !loaded.Site.AllowDuplicateTopicTitles {
		t.Error("expected duplicate titles to be allowed")
	}
	if loaded.Site.MinTopicTitleLength != 5 {
		t.Errorf("expected min title length 5, got %d", loaded.Site.MinTopicTitleLength)
	}
	if loaded.Site.MaxTopicTitleLength != 255 {
		t.Errorf("expected untouched default max 255, got %d", loaded.Site.MaxTopicTitleLength)
	}
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"job_schedule":"every now and then"}`), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("expected invalid schedule to fail")
	}
}

func TestEnvironmentPrecedence(t *testing.T) {
	cfg := &Config{DBPath: "/from/config.db", LogLevel: "warn"}

	t.Setenv("AGORA_DB", "")
	if got := cfg.GetDBPath(); got != "/from/config.db" {
		t.Errorf("expected config path, got %s", got)
	}

	t.Setenv("AGORA_DB", "/from/env.db")
	t.Setenv("AGORA_LOG_LEVEL", "debug")
	if got := cfg.GetDBPath(); got != "/from/env.db" {
		t.Errorf("expected env path, got %s", got)
	}
	if got := cfg.GetLogLevel(); got != "debug" {
		t.Errorf("expected env level, got %s", got)
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("AGORA_DB", "")
	t.Setenv("AGORA_QUEUE", "")

	cfg := Default()
	if got := cfg.GetDBPath(); got != filepath.Join("/data", "agora", "agora.db") {
		t.Errorf("unexpected db path %s", got)
	}
	if got := cfg.GetQueuePath(); got != filepath.Join("/data", "agora", "jobs") {
		t.Errorf("unexpected queue path %s", got)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "agora"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(GetEnvPath(), []byte("AGORA_TEST_QUEUE=/srv/agora/jobs\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("AGORA_TEST_QUEUE") })

	if _, err := Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("AGORA_TEST_QUEUE"); got != "/srv/agora/jobs" {
		t.Errorf("expected env file value, got %q", got)
	}
}

func TestEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("AGORA_LOG_LEVEL", "debug")
	if err := os.MkdirAll(filepath.Join(dir, "agora"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(GetEnvPath(), []byte("AGORA_LOG_LEVEL=error\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GetLogLevel() != "debug" {
		t.Errorf("expected environment to win, got %s", cfg.GetLogLevel())
	}
}
