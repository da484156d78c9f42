package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rhythmerc/gentro-library/services/games/apppaths"
)

// Manager handles loading and saving application configuration
type Manager struct {
	path string
	data *Config
	mu   sync.RWMutex
}

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Metadata MetadataConfig `toml:"metadata"`
	Steam    SteamConfig    `toml:"steam"`
	Epic     EpicConfig     `toml:"epic"`
	Art      ArtConfig      `toml:"art"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig locates the library database
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// MetadataConfig tunes the store lookups
type MetadataConfig struct {
	// RequestDelay is the minimum spacing between two store requests
	RequestDelay   Duration `toml:"requestDelay"`
	RequestTimeout Duration `toml:"requestTimeout"`
	BatchSize      int      `toml:"batchSize"`
	BatchDelay     Duration `toml:"batchDelay"`
	StoreURL       string   `toml:"storeUrl"`
	WebAPIURL      string   `toml:"webApiUrl"`
}

// SteamConfig contains Steam client settings
type SteamConfig struct {
	// Path overrides Steam install detection
	Path string `toml:"path"`
}

// EpicConfig contains Epic launcher settings
type EpicConfig struct {
	// ManifestDir holds the launcher's *.item files
	ManifestDir string `toml:"manifestDir"`
}

// ArtConfig controls the poster cache
type ArtConfig struct {
	Dir          string `toml:"dir"`
	PosterWidth  int    `toml:"posterWidth"`
	PosterHeight int    `toml:"posterHeight"`
}

// LogConfig controls logging output. An empty File logs to stderr.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"maxSizeMb"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
	Compress   bool   `toml:"compress"`
}

// Duration is a time.Duration written as a string such as "2s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration written on first run
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path: apppaths.DatabasePath,
		},
		Metadata: MetadataConfig{
			RequestDelay:   Duration{2 * time.Second},
			RequestTimeout: Duration{5 * time.Second},
			BatchSize:      10,
			BatchDelay:     Duration{2 * time.Second},
			StoreURL:       "https://store.steampowered.com",
			WebAPIURL:      "https://api.steampowered.com",
		},
		Art: ArtConfig{
			Dir:          apppaths.ArtCache,
			PosterWidth:  300,
			PosterHeight: 450,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			File:       apppaths.LogPath,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// NewManager creates a new configuration manager
func NewManager(configPath string) (*Manager, error) {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	defaults := Default()
	manager := &Manager{
		path: configPath,
		data: &defaults,
	}

	// Try to load existing config
	if err := manager.Load(); err != nil {
		// If file doesn't exist, save defaults
		if os.IsNotExist(err) {
			if err := manager.Save(); err != nil {
				return nil, fmt.Errorf("failed to save default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	return manager, nil
}

// Load reads configuration from disk. Keys missing from the file keep
// their current values.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := toml.DecodeFile(m.path, m.data); err != nil {
		return err
	}

	return nil
}

// Save writes configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(m.data); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.data
}

// Path returns the file backing the manager
func (m *Manager) Path() string {
	return m.path
}

// SetMetadata updates the metadata section
func (m *Manager) SetMetadata(metadata MetadataConfig) error {
	m.mu.Lock()
	m.data.Metadata = metadata
	m.mu.Unlock()

	return m.Save()
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	return apppaths.ConfigPath
}
