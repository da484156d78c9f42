package games

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rhythmerc/gentro-library/services/config"
	"github.com/rhythmerc/gentro-library/services/games/apppaths"
	"github.com/rhythmerc/gentro-library/services/games/art"
	"github.com/rhythmerc/gentro-library/services/games/database"
	"github.com/rhythmerc/gentro-library/services/games/events"
	"github.com/rhythmerc/gentro-library/services/games/metadata"
	"github.com/rhythmerc/gentro-library/services/games/models"
	"github.com/rhythmerc/gentro-library/services/games/sources/epic"
	"github.com/rhythmerc/gentro-library/services/games/sources/steam"
)

// GamesService manages the local game library
type GamesService struct {
	db          *database.DB
	registry    *SourceRegistry
	fetcher     *metadata.Fetcher
	webAPI      *metadata.WebAPI
	events      *events.Events
	artComposer *art.Composer
	settings    config.Config
	sources     []GameSource
	sourcesUp   bool
	logger      *slog.Logger
}

// GamesServiceConfig holds service configuration
type GamesServiceConfig struct {
	DatabasePath string
	Settings     config.Config
	Credentials  config.Credentials
	// Sources replaces the default Steam and Epic sources when set
	Sources []GameSource
	Logger  *slog.Logger
}

// ScanResult summarises a library scan
type ScanResult struct {
	Found int
	Added int
}

// Status is a snapshot of the library and the launchers around it
type Status struct {
	Games        int
	Fetched      int
	Installed    int
	Steam        int
	Epic         int
	Manual       int
	SteamRunning bool
	Running      []string
}

// NewGamesService creates a new GamesService
func NewGamesService(cfg GamesServiceConfig) (*GamesService, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = cfg.Settings.Database.Path
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = apppaths.DatabasePath
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	meta := cfg.Settings.Metadata
	client := metadata.NewClient(metadata.ClientConfig{
		BaseURL:    meta.StoreURL,
		Timeout:    meta.RequestTimeout.Duration,
		BatchSize:  meta.BatchSize,
		BatchDelay: meta.BatchDelay.Duration,
		Limiter:    metadata.NewRateLimiter(meta.RequestDelay.Duration),
		Logger:     cfg.Logger,
	})
	webAPI := metadata.NewWebAPI(metadata.WebAPIConfig{
		APIKey:  cfg.Credentials.APIKey,
		SteamID: cfg.Credentials.SteamID,
		BaseURL: meta.WebAPIURL,
		Logger:  cfg.Logger,
	})

	ev := events.NewEvents(cfg.Logger)
	fetcher := metadata.NewFetcher(metadata.FetcherConfig{
		Store:   db,
		Details: client,
		Owned:   webAPI,
		Events:  ev,
		Logger:  cfg.Logger,
	})

	artDir := cfg.Settings.Art.Dir
	if artDir == "" {
		artDir = apppaths.ArtCache
	}

	return &GamesService{
		db:       db,
		registry: NewSourceRegistry(),
		fetcher:  fetcher,
		webAPI:   webAPI,
		events:   ev,
		artComposer: art.NewComposer(art.ComposerConfig{
			CacheDir: artDir,
			Width:    cfg.Settings.Art.PosterWidth,
			Height:   cfg.Settings.Art.PosterHeight,
			Logger:   cfg.Logger,
		}),
		settings: cfg.Settings,
		sources:  cfg.Sources,
		logger:   cfg.Logger,
	}, nil
}

// Events returns the pipeline signal hub for subscribing handlers
func (s *GamesService) Events() *events.Events {
	return s.events
}

// Close releases the database
func (s *GamesService) Close() error {
	return s.db.Close()
}

// ListGames returns the stored games matching filter
func (s *GamesService) ListGames(filter models.GameFilter) ([]models.Game, error) {
	return s.db.ListGames(filter)
}

// GetGame returns one game or nil when it does not exist
func (s *GamesService) GetGame(id int64) (*models.Game, error) {
	return s.db.GetGame(id)
}

// AddGame stores a game, filling in whichever of app id and launch command
// can be derived from the other for steam games
func (s *GamesService) AddGame(game models.Game) (int64, error) {
	game.Name = strings.TrimSpace(game.Name)
	if game.Name == "" {
		return 0, errors.New("game name is required")
	}
	if game.Type == "" {
		game.Type = models.GameTypeManual
	}
	if !game.Type.Valid() {
		return 0, fmt.Errorf("unknown game type %q", game.Type)
	}

	if game.Type == models.GameTypeSteam {
		if game.AppID == "" {
			game.AppID = models.SteamAppIDFromLaunchCommand(game.LaunchCommand)
		}
		if game.LaunchCommand == "" && game.AppID != "" {
			game.LaunchCommand = models.SteamLaunchCommand(game.AppID)
		}
	}

	return s.db.AddGame(&game)
}

// RemoveGame deletes a game by id
func (s *GamesService) RemoveGame(id int64) error {
	return s.db.RemoveGame(id)
}

// FetchOwnedGames adds every title on the Steam account to the library
// and fetches metadata for the ones that were not there before. It returns
// the newly added games.
func (s *GamesService) FetchOwnedGames(ctx context.Context) ([]models.Game, error) {
	if err := s.webAPI.CheckCredentials(); err != nil {
		return nil, err
	}

	owned, err := s.webAPI.GetOwnedGames(ctx)
	if err != nil {
		return nil, err
	}

	known, err := s.knownIDs()
	if err != nil {
		return nil, err
	}

	var added []models.Game
	for _, o := range owned {
		appID := fmt.Sprint(o.AppID)
		game := models.Game{
			Name:          strings.TrimSpace(o.Name),
			Type:          models.GameTypeSteam,
			AppID:         appID,
			LaunchCommand: models.SteamLaunchCommand(appID),
			Playtime:      o.PlaytimeForever,
		}
		if game.Name == "" {
			game.Name = "App " + appID
		}
		if o.RtimeLastPlayed > 0 {
			lastPlayed := time.Unix(o.RtimeLastPlayed, 0).UTC()
			game.LastPlayed = &lastPlayed
		}

		id, err := s.db.AddGame(&game)
		if err != nil {
			s.logger.Error("failed to add owned game", "appId", appID, "name", game.Name, "error", err)
			continue
		}
		if known[id] {
			continue
		}
		known[id] = true
		game.ID = id
		added = append(added, game)
	}

	s.logger.Info("imported owned games", "owned", len(owned), "added", len(added))
	if len(added) == 0 {
		return added, nil
	}

	return s.fetcher.FetchMetadataForGames(ctx, added, false), nil
}

// FetchMetadata runs the reconciliation pipeline over the whole library.
// Progress, completion and failures are reported through Events.
func (s *GamesService) FetchMetadata(ctx context.Context, force bool) ([]models.Game, error) {
	games, err := s.db.GetAllGames()
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}
	return s.fetcher.FetchMetadataForGames(ctx, games, force), nil
}

// RefreshPlaytime copies account playtime onto every steam game
func (s *GamesService) RefreshPlaytime(ctx context.Context) (int, error) {
	if err := s.webAPI.CheckCredentials(); err != nil {
		return 0, err
	}
	games, err := s.db.ListGames(models.GameFilter{Type: models.GameTypeSteam})
	if err != nil {
		return 0, fmt.Errorf("failed to load games: %w", err)
	}
	return s.fetcher.RefreshPlaytime(ctx, games)
}

// ResetMetadata marks every game unfetched so the next run looks it up again
func (s *GamesService) ResetMetadata() (int64, error) {
	return s.db.ResetMetadataFetched()
}

// ClearMetadata wipes every metadata field and marks all games unfetched
func (s *GamesService) ClearMetadata() error {
	return s.db.ClearAllMetadata()
}

// TestCredentials checks the configured key and steam id against the Web API
func (s *GamesService) TestCredentials(ctx context.Context) (*models.PlayerSummary, error) {
	return s.webAPI.GetPlayerSummary(ctx)
}

// ScanLibraries adds every game the local launchers have on disk
func (s *GamesService) ScanLibraries(ctx context.Context) (ScanResult, error) {
	var result ScanResult

	known, err := s.knownIDs()
	if err != nil {
		return result, err
	}

	for _, source := range s.activeSources() {
		games, err := source.GetGames(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Error("failed to get games from source", "source", source.Name(), "error", err)
			continue
		}

		for _, game := range games {
			result.Found++
			id, err := s.AddGame(game)
			if err != nil {
				s.logger.Error("failed to add game", "source", source.Name(), "name", game.Name, "error", err)
				continue
			}
			if !known[id] {
				known[id] = true
				result.Added++
				s.logger.Debug("added new game", "id", id, "name", game.Name)
			}
		}
	}

	s.logger.Info("library scan complete", "found", result.Found, "added", result.Added)
	return result, nil
}

// RefreshInstallState recomputes is_installed for every launcher game and
// returns how many changed
func (s *GamesService) RefreshInstallState(ctx context.Context) (int, error) {
	sources := make(map[string]GameSource)
	for _, source := range s.activeSources() {
		sources[source.Name()] = source
	}

	games, err := s.db.GetAllGames()
	if err != nil {
		return 0, fmt.Errorf("failed to load games: %w", err)
	}

	changed := 0
	for _, game := range games {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		source, ok := sources[string(game.Type)]
		if !ok {
			continue
		}
		installed := source.IsInstalled(game)
		if installed == game.IsInstalled {
			continue
		}
		if err := s.db.SetInstalled(game.ID, installed); err != nil {
			s.logger.Error("failed to update install state", "gameId", game.ID, "error", err)
			continue
		}
		changed++
	}

	return changed, nil
}

// CachePosters renders posters for games whose poster is not cached yet
// and records the file paths
func (s *GamesService) CachePosters(ctx context.Context) (int, error) {
	games, err := s.db.GetAllGames()
	if err != nil {
		return 0, fmt.Errorf("failed to load games: %w", err)
	}

	var pending []models.Game
	for _, game := range games {
		if game.PosterURL == "" {
			continue
		}
		if game.PosterPath != "" {
			if _, err := os.Stat(game.PosterPath); err == nil {
				continue
			}
		}
		pending = append(pending, game)
	}

	return s.artComposer.CachePosters(ctx, pending, func(game models.Game, path string) {
		if err := s.db.UpdateGame(game.ID, models.GameUpdate{PosterPath: &path}); err != nil {
			s.logger.Error("failed to store poster path", "gameId", game.ID, "error", err)
		}
	})
}

// Status counts the library and checks the running processes
func (s *GamesService) Status(ctx context.Context) (Status, error) {
	var st Status

	games, err := s.db.GetAllGames()
	if err != nil {
		return st, fmt.Errorf("failed to load games: %w", err)
	}

	for _, game := range games {
		st.Games++
		if game.MetadataFetched {
			st.Fetched++
		}
		if game.IsInstalled {
			st.Installed++
		}
		switch game.Type {
		case models.GameTypeSteam:
			st.Steam++
		case models.GameTypeEpic:
			st.Epic++
		default:
			st.Manual++
		}
	}

	procs, err := listProcesses(ctx)
	if err != nil {
		s.logger.Warn("failed to list processes", "error", err)
		return st, nil
	}
	st.SteamRunning = steamRunning(procs)
	for _, game := range games {
		if game.IsInstalled && runningInPath(procs, game.InstallPath) {
			st.Running = append(st.Running, game.Name)
		}
	}

	return st, nil
}

// activeSources registers the launcher sources on first use. A launcher
// that is not installed is skipped.
func (s *GamesService) activeSources() []GameSource {
	if !s.sourcesUp {
		s.sourcesUp = true
		for _, source := range s.sourceList() {
			if err := s.registry.RegisterWithConfig(source, s.sourceConfig(source.Name())); err != nil {
				s.logger.Warn("skipping game source", "source", source.Name(), "error", err)
			}
		}
	}
	return s.registry.GetAll()
}

func (s *GamesService) sourceList() []GameSource {
	if s.sources != nil {
		return s.sources
	}
	return []GameSource{steam.NewSource(s.logger), epic.NewSource(s.logger)}
}

func (s *GamesService) sourceConfig(name string) map[string]any {
	switch name {
	case string(models.GameTypeSteam):
		return map[string]any{"installPath": s.settings.Steam.Path}
	case string(models.GameTypeEpic):
		return map[string]any{"manifestDir": s.settings.Epic.ManifestDir}
	}
	return nil
}

func (s *GamesService) knownIDs() (map[int64]bool, error) {
	games, err := s.db.GetAllGames()
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}
	known := make(map[int64]bool, len(games))
	for _, g := range games {
		known[g.ID] = true
	}
	return known, nil
}
