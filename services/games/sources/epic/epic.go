package epic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

// Source implements GameSource for the Epic Games launcher
type Source struct {
	manifestDir string
	logger      *slog.Logger
}

// Manifest is the part of a launcher *.item file the library uses
type Manifest struct {
	AppName          string `json:"AppName"`
	DisplayName      string `json:"DisplayName"`
	AppID            string `json:"AppId"`
	CatalogItemID    string `json:"CatalogItemId"`
	InstallLocation  string `json:"InstallLocation"`
	LaunchExecutable string `json:"LaunchExecutable"`
}

// NewSource creates an Epic source. Init must be called before use.
func NewSource(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{logger: logger}
}

// Name returns the source identifier
func (s *Source) Name() string {
	return string(models.GameTypeEpic)
}

// Init locates the launcher manifest directory
func (s *Source) Init(config map[string]any) error {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if config != nil {
		if dir, ok := config["manifestDir"].(string); ok && dir != "" {
			s.manifestDir = dir
		}
	}

	if s.manifestDir == "" {
		dir, err := defaultManifestDir()
		if err != nil {
			return err
		}
		s.manifestDir = dir
	}

	if _, err := os.Stat(s.manifestDir); os.IsNotExist(err) {
		return fmt.Errorf("Epic manifests not found at %s", s.manifestDir)
	}

	return nil
}

func defaultManifestDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		programData := os.Getenv("ProgramData")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		return filepath.Join(programData, "Epic", "EpicGamesLauncher", "Data", "Manifests"), nil
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Epic", "EpicGamesLauncher", "Data", "Manifests"), nil
	default:
		return "", fmt.Errorf("no default Epic manifest directory on %s", runtime.GOOS)
	}
}

// GetGames returns one entry per *.item manifest
func (s *Source) GetGames(ctx context.Context) ([]models.Game, error) {
	entries, err := os.ReadDir(s.manifestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	var games []models.Game
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".item") {
			continue
		}

		manifest, err := ParseManifest(filepath.Join(s.manifestDir, entry.Name()))
		if err != nil {
			s.logger.Warn("failed to read epic manifest", "file", entry.Name(), "error", err)
			continue
		}
		games = append(games, manifest.Game())
	}

	s.logger.Info("scanned epic manifests", "games", len(games))
	return games, nil
}

// IsInstalled reports whether the game's install location still exists
func (s *Source) IsInstalled(game models.Game) bool {
	if game.InstallPath == "" {
		return false
	}
	_, err := os.Stat(game.InstallPath)
	return err == nil
}

// ParseManifest reads a launcher *.item file
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.AppID == "" && m.AppName == "" {
		return nil, fmt.Errorf("manifest has no AppId or AppName")
	}
	return &m, nil
}

// LaunchCommand returns the launcher URL that starts the game
func (m Manifest) LaunchCommand() string {
	id := m.AppID
	if id == "" {
		id = m.AppName
	}
	return "epic://launch/" + id
}

// Game converts the manifest into a library entry
func (m Manifest) Game() models.Game {
	name := m.DisplayName
	if name == "" {
		name = m.AppName
	}
	if name == "" {
		name = "Unknown"
	}

	installed := false
	if m.InstallLocation != "" {
		_, err := os.Stat(m.InstallLocation)
		installed = err == nil
	}

	return models.Game{
		Name:          name,
		Type:          models.GameTypeEpic,
		EpicAppID:     m.AppID,
		InstallPath:   m.InstallLocation,
		LaunchCommand: m.LaunchCommand(),
		IsInstalled:   installed,
	}
}
