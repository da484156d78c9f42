package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

// IncompleteMessage is reported once when some results could not be stored
const IncompleteMessage = "some games may have incomplete information"

// ErrAlreadyRunning is reported when a second run starts while one is active
var ErrAlreadyRunning = errors.New("metadata fetch already running")

// Store persists pipeline results
type Store interface {
	UpdateGame(id int64, update models.GameUpdate) error
	UpdatePlaytime(id int64, minutes int) error
}

// DetailsFetcher performs batched store lookups
type DetailsFetcher interface {
	FetchAll(ctx context.Context, games []models.Game, onBatch BatchFunc) error
}

// OwnedGamesFetcher provides authoritative playtime
type OwnedGamesFetcher interface {
	CheckCredentials() error
	GetOwnedGames(ctx context.Context) ([]models.OwnedGame, error)
}

// Emitter receives pipeline signals
type Emitter interface {
	EmitProgress(current, total int)
	EmitFinished(games []models.Game)
	EmitError(message string)
}

// FetcherConfig wires a Fetcher
type FetcherConfig struct {
	Store   Store
	Details DetailsFetcher
	Owned   OwnedGamesFetcher
	Events  Emitter
	Logger  *slog.Logger
}

// Fetcher reconciles store metadata and playtime into the local database
type Fetcher struct {
	store   Store
	details DetailsFetcher
	owned   OwnedGamesFetcher
	events  Emitter
	logger  *slog.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewFetcher creates a new metadata fetcher
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = nopEmitter{}
	}

	return &Fetcher{
		store:   cfg.Store,
		details: cfg.Details,
		owned:   cfg.Owned,
		events:  cfg.Events,
		logger:  cfg.Logger,
	}
}

// FetchMetadataForGames refreshes playtime, then fetches and stores metadata
// for the games that need it. Games are updated in place and the same slice
// is returned. Failures are reported through the error event, never returned.
func (f *Fetcher) FetchMetadataForGames(ctx context.Context, games []models.Game, force bool) (out []models.Game) {
	out = games

	if !f.begin() {
		f.events.EmitError(ErrAlreadyRunning.Error())
		return games
	}
	defer f.end()

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("metadata fetch panicked", "panic", r)
			f.events.EmitError(fmt.Sprintf("failed to fetch metadata: %v", r))
			out = games
		}
	}()

	if err := f.owned.CheckCredentials(); err != nil {
		f.events.EmitError(err.Error())
		return games
	}

	if err := f.run(ctx, games, force); err != nil {
		f.events.EmitError(fmt.Sprintf("failed to fetch metadata: %v", err))
		return games
	}

	f.events.EmitFinished(games)
	return games
}

func (f *Fetcher) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isRunning {
		return false
	}
	f.isRunning = true
	return true
}

func (f *Fetcher) end() {
	f.mu.Lock()
	f.isRunning = false
	f.mu.Unlock()
}

func (f *Fetcher) run(ctx context.Context, games []models.Game, force bool) error {
	// Playtime comes first and ignores the fetched flag
	if n, err := f.RefreshPlaytime(ctx, games); err != nil {
		f.logger.Warn("playtime refresh failed", "error", err)
	} else {
		f.logger.Info("playtime refreshed", "games", n)
	}

	pending := f.workingSet(games, force)
	if len(pending) == 0 {
		f.logger.Info("no games need metadata", "games", len(games), "force", force)
		return nil
	}

	lookups := make([]models.Game, len(pending))
	for j, idx := range pending {
		lookups[j] = games[idx]
	}

	total := len(lookups)
	processed := 0
	failed := 0

	f.logger.Info("fetching metadata", "games", total, "force", force)

	err := f.details.FetchAll(ctx, lookups, func(start int, batch []models.Game, results []*models.AppData) {
		for j, data := range results {
			if !f.persist(&games[pending[start+j]], data) {
				failed++
			}
		}
		processed += len(batch)
		f.events.EmitProgress(processed, total)
	})
	if err != nil {
		return err
	}

	if failed > 0 {
		f.logger.Warn("some metadata updates were not stored", "failed", failed, "total", total)
		f.events.EmitError(IncompleteMessage)
	}

	return nil
}

// workingSet returns the indices of games that need a network lookup.
// Games that can never be looked up are marked fetched on the way.
func (f *Fetcher) workingSet(games []models.Game, force bool) []int {
	var pending []int

	for i := range games {
		game := &games[i]
		if !force && game.MetadataFetched {
			continue
		}

		if !game.NeedsRemoteLookup() {
			f.markFetched(game)
			continue
		}

		if game.AppID == "" {
			if appID := models.SteamAppIDFromLaunchCommand(game.LaunchCommand); appID != "" {
				game.AppID = appID
				if err := f.store.UpdateGame(game.ID, models.GameUpdate{AppID: &appID}); err != nil {
					f.logger.Warn("failed to store derived app id", "gameId", game.ID, "appId", appID, "error", err)
				}
			}
		}

		if game.AppID == "" {
			f.logger.Info("no app id, skipping metadata lookup", "gameId", game.ID, "name", game.Name)
			f.markFetched(game)
			continue
		}

		pending = append(pending, i)
	}

	return pending
}

// persist stores the outcome of one lookup. The in-memory game only changes
// once the write succeeded, so a failed write is retried on the next run.
func (f *Fetcher) persist(game *models.Game, data *models.AppData) bool {
	updated := *game

	var update models.GameUpdate
	if data != nil {
		MapAppData(&updated, data)
		update = models.MetadataUpdate(updated)
	} else {
		update = models.GameUpdate{MetadataFetched: models.Bool(true)}
	}

	if err := f.store.UpdateGame(game.ID, update); err != nil {
		f.logger.Error("failed to store metadata", "gameId", game.ID, "name", game.Name, "error", err)
		return false
	}

	updated.MetadataFetched = true
	*game = updated
	return true
}

func (f *Fetcher) markFetched(game *models.Game) {
	if game.MetadataFetched {
		return
	}
	if err := f.store.UpdateGame(game.ID, models.GameUpdate{MetadataFetched: models.Bool(true)}); err != nil {
		f.logger.Error("failed to mark game fetched", "gameId", game.ID, "error", err)
		return
	}
	game.MetadataFetched = true
}

// RefreshPlaytime copies playtime_forever from the owned-games endpoint onto
// every matching steam game, returning how many were updated.
func (f *Fetcher) RefreshPlaytime(ctx context.Context, games []models.Game) (int, error) {
	wanted := 0
	for _, g := range games {
		if g.Type == models.GameTypeSteam && steamAppID(g) != "" {
			wanted++
		}
	}
	if wanted == 0 {
		return 0, nil
	}

	owned, err := f.owned.GetOwnedGames(ctx)
	if err != nil {
		return 0, err
	}

	playtime := make(map[string]int, len(owned))
	for _, o := range owned {
		playtime[strconv.FormatInt(o.AppID, 10)] = o.PlaytimeForever
	}

	updated := 0
	for i := range games {
		game := &games[i]
		if game.Type != models.GameTypeSteam {
			continue
		}
		minutes, ok := playtime[steamAppID(*game)]
		if !ok {
			continue
		}
		if err := f.store.UpdatePlaytime(game.ID, minutes); err != nil {
			f.logger.Warn("failed to update playtime", "gameId", game.ID, "error", err)
			continue
		}
		game.Playtime = minutes
		updated++
	}

	return updated, nil
}

func steamAppID(g models.Game) string {
	if g.AppID != "" {
		return g.AppID
	}
	return models.SteamAppIDFromLaunchCommand(g.LaunchCommand)
}

type nopEmitter struct{}

func (nopEmitter) EmitProgress(int, int) {}
func (nopEmitter) EmitFinished([]models.Game) {}
func (nopEmitter) EmitError(string) {}
