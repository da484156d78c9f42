package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	// Create temporary directory for test
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nested", "test.toml")

	// Test creating new manager
	manager, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	// Verify defaults
	cfg := manager.Get()
	if cfg.Metadata.RequestDelay.Duration != 2*time.Second {
		t.Errorf("Expected RequestDelay to default to 2s, got %v", cfg.Metadata.RequestDelay)
	}
	if cfg.Metadata.BatchSize != 10 {
		t.Errorf("Expected BatchSize to default to 10, got %d", cfg.Metadata.BatchSize)
	}
	if cfg.Art.PosterWidth != 300 || cfg.Art.PosterHeight != 450 {
		t.Errorf("Unexpected poster size %dx%d", cfg.Art.PosterWidth, cfg.Art.PosterHeight)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
	if manager.Path() != configPath {
		t.Errorf("Path() = %q", manager.Path())
	}
}

func TestLoadAndSave(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test.toml")

	// Create manager with defaults
	manager, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	// Modify config
	metadata := manager.Get().Metadata
	metadata.RequestDelay = Duration{500 * time.Millisecond}
	metadata.BatchSize = 4
	if err := manager.SetMetadata(metadata); err != nil {
		t.Fatalf("Failed to set metadata: %v", err)
	}

	// Create new manager and load saved config
	manager2, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("Failed to create second manager: %v", err)
	}

	cfg := manager2.Get()
	if cfg.Metadata.RequestDelay.Duration != 500*time.Millisecond {
		t.Errorf("Expected RequestDelay 500ms after save/load, got %v", cfg.Metadata.RequestDelay)
	}
	if cfg.Metadata.BatchSize != 4 {
		t.Errorf("Expected BatchSize 4 after save/load, got %d", cfg.Metadata.BatchSize)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if !strings.Contains(string(raw), `requestDelay = "500ms"`) {
		t.Errorf("Durations should be written as strings:\n%s", raw)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test.toml")
	content := "[metadata]\nbatchSize = 3\n\n[steam]\npath = \"/opt/steam\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	manager, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	cfg := manager.Get()
	if cfg.Metadata.BatchSize != 3 || cfg.Steam.Path != "/opt/steam" {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.Metadata.RequestDelay.Duration != 2*time.Second {
		t.Errorf("Missing key lost its default: %v", cfg.Metadata.RequestDelay)
	}
}

func TestInvalidDuration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test.toml")
	if err := os.WriteFile(configPath, []byte("[metadata]\nrequestDelay = \"soon\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := NewManager(configPath); err == nil {
		t.Error("Expected invalid duration to fail")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if path == "" {
		t.Error("DefaultConfigPath returned empty string")
	}
	if !strings.HasSuffix(path, filepath.Join("gentro", "config", "gentro.toml")) {
		t.Errorf("Expected path to end in 'gentro/config/gentro.toml', got: %s", path)
	}
}

func TestLoadCredentials(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "STEAM_API_KEY=file-key\nSTEAM_ID= 76561 \n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	t.Setenv(EnvSteamAPIKey, "env-key")
	t.Setenv(EnvSteamID, "")
	os.Unsetenv(EnvSteamID)

	creds, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.env"), envFile)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.APIKey != "env-key" {
		t.Errorf("Environment should win over the file, got %q", creds.APIKey)
	}
	if creds.SteamID != "76561" {
		t.Errorf("SteamID = %q, want 76561", creds.SteamID)
	}
	if !creds.Complete() {
		t.Error("Expected complete credentials")
	}
}
