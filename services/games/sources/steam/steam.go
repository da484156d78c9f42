package steam

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	vdf "github.com/andygrunwald/vdf"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

// StateFullyInstalled is the appmanifest StateFlags value of a complete install
const StateFullyInstalled = "4"

// Source implements GameSource for Steam games
type Source struct {
	installPath string
	logger      *slog.Logger
}

// NewSource creates a Steam source. Init must be called before use.
func NewSource(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{logger: logger}
}

// Name returns the source identifier
func (s *Source) Name() string {
	return string(models.GameTypeSteam)
}

// Init initializes the Steam source
func (s *Source) Init(config map[string]any) error {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if config != nil {
		if path, ok := config["installPath"].(string); ok && path != "" {
			s.installPath = path
		}
	}

	// Auto-detect if not configured
	if s.installPath == "" {
		path, err := s.detectSteamPath()
		if err != nil {
			return fmt.Errorf("failed to detect Steam installation: %w", err)
		}
		s.installPath = path
	}

	// Verify Steam exists
	if _, err := os.Stat(s.installPath); os.IsNotExist(err) {
		return fmt.Errorf("Steam not found at %s", s.installPath)
	}

	return nil
}

// InstallPath returns the Steam root in use
func (s *Source) InstallPath() string {
	return s.installPath
}

// LibraryFolders returns the Steam root followed by every extra library
// listed in steamapps/libraryfolders.vdf
func (s *Source) LibraryFolders() []string {
	folders := []string{s.installPath}
	seen := map[string]bool{filepath.Clean(s.installPath): true}

	extra, err := ParseLibraryFolders(filepath.Join(s.installPath, "steamapps", "libraryfolders.vdf"))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read library folders", "error", err)
		}
		return folders
	}

	for _, folder := range extra {
		key := filepath.Clean(folder)
		if seen[key] {
			continue
		}
		seen[key] = true
		folders = append(folders, folder)
	}
	return folders
}

// GetGames returns the installed Steam games across all library folders.
// Steam tools such as Proton are skipped.
func (s *Source) GetGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	seen := make(map[string]bool)

	for _, library := range s.LibraryFolders() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		steamappsDir := filepath.Join(library, "steamapps")
		entries, err := os.ReadDir(steamappsDir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("failed to read steamapps directory", "path", steamappsDir, "error", err)
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !isAppManifest(entry.Name()) {
				continue
			}

			manifest, err := ParseAppManifest(filepath.Join(steamappsDir, entry.Name()))
			if err != nil {
				s.logger.Warn("failed to parse app manifest", "file", entry.Name(), "error", err)
				continue
			}
			if manifest.IsTool || seen[manifest.AppID] {
				continue
			}
			seen[manifest.AppID] = true
			games = append(games, manifest.Game())
		}
	}

	s.logger.Info("scanned steam libraries", "games", len(games))
	return games, nil
}

// IsInstalled reports whether some library holds a fully installed
// appmanifest for the game
func (s *Source) IsInstalled(game models.Game) bool {
	appID := game.AppID
	if appID == "" {
		appID = models.SteamAppIDFromLaunchCommand(game.LaunchCommand)
	}
	if appID == "" {
		return false
	}

	for _, library := range s.LibraryFolders() {
		path := filepath.Join(library, "steamapps", "appmanifest_"+appID+".acf")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		manifest, err := ParseAppManifest(path)
		if err != nil {
			s.logger.Warn("failed to parse app manifest", "path", path, "error", err)
			continue
		}
		if manifest.StateFlags == StateFullyInstalled {
			return true
		}
	}
	return false
}

// isAppManifest checks if a filename is an appmanifest file
func isAppManifest(filename string) bool {
	return filepath.Ext(filename) == ".acf" && len(filename) > 12 && filename[:12] == "appmanifest_"
}

// isTool reports whether an install directory belongs to a Steam tool
func isTool(installPath string) bool {
	_, err := os.Stat(filepath.Join(installPath, "toolmanifest.vdf"))
	return err == nil
}

// detectSteamPath auto-detects Steam installation path
func (s *Source) detectSteamPath() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return s.detectSteamLinux()
	case "windows":
		return s.detectSteamWindows()
	case "darwin":
		return s.detectSteamMac()
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectSteamLinux finds Steam on Linux
func (s *Source) detectSteamLinux() (string, error) {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam"), // Flatpak
	}
	return firstExisting(candidates, "Linux")
}

// detectSteamWindows finds Steam in its default install locations
func (s *Source) detectSteamWindows() (string, error) {
	var candidates []string
	for _, env := range []string{"ProgramFiles(x86)", "ProgramFiles"} {
		if dir := os.Getenv(env); dir != "" {
			candidates = append(candidates, filepath.Join(dir, "Steam"))
		}
	}
	return firstExisting(candidates, "Windows")
}

// detectSteamMac finds Steam on macOS
func (s *Source) detectSteamMac() (string, error) {
	home, _ := os.UserHomeDir()
	return firstExisting([]string{filepath.Join(home, "Library", "Application Support", "Steam")}, "macOS")
}

func firstExisting(candidates []string, platform string) (string, error) {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("Steam not found on %s", platform)
}

// Manifest is the part of an appmanifest_*.acf file the library uses
type Manifest struct {
	AppID       string
	Name        string
	InstallDir  string
	InstallPath string
	StateFlags  string
	SizeOnDisk  int64
	IsTool      bool
}

// Game converts the manifest into a library entry
func (m Manifest) Game() models.Game {
	name := m.Name
	if name == "" {
		name = m.InstallDir
	}
	return models.Game{
		Name:          name,
		Type:          models.GameTypeSteam,
		AppID:         m.AppID,
		InstallPath:   m.InstallPath,
		LaunchCommand: models.SteamLaunchCommand(m.AppID),
		IsInstalled:   m.StateFlags == StateFullyInstalled,
	}
}

// ParseAppManifest parses a Steam appmanifest_*.acf file
func ParseAppManifest(path string) (*Manifest, error) {
	appState, err := parseRoot(path)
	if err != nil {
		return nil, err
	}

	appID := getString(appState, "appid")
	if appID == "" {
		return nil, fmt.Errorf("no appid found in manifest")
	}

	// path is like: /path/to/steam/steamapps/appmanifest_*.acf
	// the game lives in: /path/to/steam/steamapps/common/<installDir>
	installDir := getString(appState, "installdir")
	installPath := ""
	if installDir != "" {
		installPath = filepath.Join(filepath.Dir(path), "common", installDir)
	}

	return &Manifest{
		AppID:       appID,
		Name:        getString(appState, "name"),
		InstallDir:  installDir,
		InstallPath: installPath,
		StateFlags:  getString(appState, "StateFlags"),
		SizeOnDisk:  getInt64(appState, "SizeOnDisk"),
		IsTool:      installPath != "" && isTool(installPath),
	}, nil
}

// ParseLibraryFolders returns the library paths listed in a
// libraryfolders.vdf file, in index order. Both the current nested layout
// and the old "index" "path" layout are understood.
func ParseLibraryFolders(path string) ([]string, error) {
	root, err := parseRoot(path)
	if err != nil {
		return nil, err
	}

	type folder struct {
		index int
		path  string
	}
	var found []folder
	for key, value := range root {
		index, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		switch v := value.(type) {
		case string:
			found = append(found, folder{index, v})
		case map[string]any:
			if p := getString(v, "path"); p != "" {
				found = append(found, folder{index, p})
			}
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })
	folders := make([]string, len(found))
	for i, f := range found {
		folders[i] = f.path
	}
	return folders, nil
}

// parseRoot returns the single top-level object of a VDF file
func parseRoot(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := vdf.NewParser(f).Parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse VDF: %w", err)
	}

	for _, value := range m {
		if v, ok := value.(map[string]any); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no root object in %s", filepath.Base(path))
}

// getString extracts a string value from a map[string]any
func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getInt64 extracts an int64 value from a map[string]any (VDF stores numbers as strings)
func getInt64(m map[string]any, key string) int64 {
	if v, ok := m[key].(string); ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return 0
}
