package games

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rhythmerc/gentro-library/services/config"
	"github.com/rhythmerc/gentro-library/services/games/database"
	"github.com/rhythmerc/gentro-library/services/games/metadata"
	"github.com/rhythmerc/gentro-library/services/games/models"
)

// MockSource implements GameSource for testing
type MockSource struct {
	name      string
	games     []models.Game
	installed map[string]bool
	initErr   error
	config    map[string]any
}

func (m *MockSource) Name() string { return m.name }
func (m *MockSource) Init(config map[string]any) error {
	m.config = config
	return m.initErr
}
func (m *MockSource) GetGames(ctx context.Context) ([]models.Game, error) {
	return m.games, nil
}
func (m *MockSource) IsInstalled(game models.Game) bool {
	return m.installed[game.Name]
}

// fakeSteam serves the store and Web API endpoints the service talks to
type fakeSteam struct {
	*httptest.Server
	detailHits atomic.Int32
	ownedHits  atomic.Int32
}

func newFakeSteam(t *testing.T) *fakeSteam {
	t.Helper()
	f := &fakeSteam{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/appdetails", func(w http.ResponseWriter, r *http.Request) {
		f.detailHits.Add(1)
		appID := r.URL.Query().Get("appids")
		fmt.Fprintf(w, `{%q: {"success": true, "data": {"name": "ignored", "genres": [{"description": "Shooter"}], "header_image": %q}}}`,
			appID, "http://"+r.Host+"/art/header.png")
	})
	mux.HandleFunc("/IPlayerService/GetOwnedGames/v0001/", func(w http.ResponseWriter, r *http.Request) {
		f.ownedHits.Add(1)
		fmt.Fprint(w, `{"response": {"game_count": 2, "games": [
			{"appid": 620, "name": "Portal 2", "playtime_forever": 50},
			{"appid": 440, "name": "Team Fortress 2", "playtime_forever": 75, "rtime_last_played": 1700000000}
		]}}`)
	})
	mux.HandleFunc("/ISteamUser/GetPlayerSummaries/v0002/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": {"players": [{"steamid": "76561", "personaname": "gordon"}]}}`)
	})
	mux.HandleFunc("/art/header.png", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 46, 21)))
		w.Write(buf.Bytes())
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestService(t *testing.T, baseURL string, creds config.Credentials, sources ...GameSource) *GamesService {
	t.Helper()
	settings := config.Default()
	settings.Metadata.StoreURL = baseURL
	settings.Metadata.WebAPIURL = baseURL
	settings.Metadata.RequestDelay = config.Duration{}
	settings.Metadata.BatchDelay = config.Duration{}
	settings.Art.Dir = filepath.Join(t.TempDir(), "art")
	settings.Art.PosterWidth = 30
	settings.Art.PosterHeight = 45

	if sources == nil {
		sources = []GameSource{}
	}
	s, err := NewGamesService(GamesServiceConfig{
		DatabasePath: filepath.Join(t.TempDir(), "games.db"),
		Settings:     settings,
		Credentials:  creds,
		Sources:      sources,
	})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testCreds = config.Credentials{APIKey: "key", SteamID: "76561"}

func TestSourceRegistry(t *testing.T) {
	r := NewSourceRegistry()

	if err := r.Register(&MockSource{name: "steam"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&MockSource{name: "epic"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&MockSource{name: "broken", initErr: errors.New("not installed")}); err == nil {
		t.Error("expected Init error to be returned")
	}

	names := r.GetNames()
	if fmt.Sprint(names) != "[epic steam]" {
		t.Errorf("GetNames() = %v", names)
	}
	if _, ok := r.Get("broken"); ok {
		t.Error("failed source should not be registered")
	}
	if all := r.GetAll(); len(all) != 2 || all[0].Name() != "epic" {
		t.Errorf("GetAll() returned %d sources", len(all))
	}
}

func TestScanLibraries(t *testing.T) {
	src := &MockSource{
		name: "steam",
		games: []models.Game{
			{Name: "Portal 2", Type: models.GameTypeSteam, LaunchCommand: "steam://rungameid/620", IsInstalled: true},
			{Name: "Half-Life", Type: models.GameTypeSteam, AppID: "70"},
		},
	}
	s := newTestService(t, "http://127.0.0.1:1", testCreds, src)

	result, err := s.ScanLibraries(context.Background())
	if err != nil {
		t.Fatalf("ScanLibraries failed: %v", err)
	}
	if result.Found != 2 || result.Added != 2 {
		t.Errorf("first scan = %+v, want 2 found and 2 added", result)
	}

	result, err = s.ScanLibraries(context.Background())
	if err != nil {
		t.Fatalf("ScanLibraries failed: %v", err)
	}
	if result.Found != 2 || result.Added != 0 {
		t.Errorf("second scan = %+v, want nothing added", result)
	}

	games, err := s.ListGames(models.GameFilter{})
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("got %d games, want 2", len(games))
	}
	// Sorted by name: Half-Life, Portal 2
	if games[1].AppID != "620" {
		t.Errorf("app id not derived from launch command: %+v", games[1])
	}
	if games[0].LaunchCommand != "steam://rungameid/70" {
		t.Errorf("launch command not derived from app id: %+v", games[0])
	}
	if src.config["installPath"] != "" {
		t.Errorf("source config = %v", src.config)
	}
}

func TestRefreshInstallState(t *testing.T) {
	src := &MockSource{
		name: "steam",
		games: []models.Game{
			{Name: "A", Type: models.GameTypeSteam, AppID: "1", IsInstalled: true},
			{Name: "B", Type: models.GameTypeSteam, AppID: "2"},
		},
		installed: map[string]bool{"A": true},
	}
	s := newTestService(t, "http://127.0.0.1:1", testCreds, src)
	if _, err := s.ScanLibraries(context.Background()); err != nil {
		t.Fatalf("ScanLibraries failed: %v", err)
	}
	if _, err := s.AddGame(models.Game{Name: "Manual", Type: models.GameTypeManual, IsInstalled: true}); err != nil {
		t.Fatalf("AddGame failed: %v", err)
	}

	changed, err := s.RefreshInstallState(context.Background())
	if err != nil {
		t.Fatalf("RefreshInstallState failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("changed = %d, want 0", changed)
	}

	src.installed = map[string]bool{"B": true}
	changed, err = s.RefreshInstallState(context.Background())
	if err != nil {
		t.Fatalf("RefreshInstallState failed: %v", err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}

	installed, err := s.ListGames(models.GameFilter{InstalledOnly: true})
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}
	if len(installed) != 2 || installed[0].Name != "B" || installed[1].Name != "Manual" {
		t.Errorf("installed games = %+v", installed)
	}
}

func TestAddGameValidation(t *testing.T) {
	s := newTestService(t, "http://127.0.0.1:1", testCreds)

	if _, err := s.AddGame(models.Game{Name: "  "}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := s.AddGame(models.Game{Name: "X", Type: "gog"}); err == nil {
		t.Error("expected error for unknown type")
	}

	id, err := s.AddGame(models.Game{Name: "Solitaire"})
	if err != nil {
		t.Fatalf("AddGame failed: %v", err)
	}
	game, err := s.GetGame(id)
	if err != nil || game == nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if game.Type != models.GameTypeManual {
		t.Errorf("Type = %q, want manual", game.Type)
	}

	if err := s.RemoveGame(id); err != nil {
		t.Fatalf("RemoveGame failed: %v", err)
	}
	if err := s.RemoveGame(id); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("second RemoveGame = %v, want ErrNotFound", err)
	}
}

func TestFetchOwnedGamesOnlyFetchesNewGames(t *testing.T) {
	api := newFakeSteam(t)
	s := newTestService(t, api.URL, testCreds)

	if _, err := s.AddGame(models.Game{Name: "Portal 2", Type: models.GameTypeSteam, AppID: "620", MetadataFetched: true}); err != nil {
		t.Fatalf("AddGame failed: %v", err)
	}

	var finished int
	s.Events().OnFinished(func(games []models.Game) { finished++ })

	added, err := s.FetchOwnedGames(context.Background())
	if err != nil {
		t.Fatalf("FetchOwnedGames failed: %v", err)
	}
	if len(added) != 1 || added[0].AppID != "440" {
		t.Fatalf("added = %+v, want only Team Fortress 2", added)
	}
	if !added[0].MetadataFetched || added[0].Genre != "Shooter" {
		t.Errorf("new game was not enriched: %+v", added[0])
	}
	if added[0].Name != "Team Fortress 2" {
		t.Errorf("Name = %q, the store payload must not rename games", added[0].Name)
	}
	if got := api.detailHits.Load(); got != 1 {
		t.Errorf("made %d store lookups, want 1", got)
	}
	if finished != 1 {
		t.Errorf("finished emitted %d times, want 1", finished)
	}

	stored, err := s.ListGames(models.GameFilter{Search: "Fortress"})
	if err != nil || len(stored) != 1 {
		t.Fatalf("ListGames = %v, %v", stored, err)
	}
	if stored[0].Playtime != 75 || stored[0].LastPlayed == nil {
		t.Errorf("stored game = %+v", stored[0])
	}

	// Importing again adds nothing
	added, err = s.FetchOwnedGames(context.Background())
	if err != nil {
		t.Fatalf("FetchOwnedGames failed: %v", err)
	}
	if len(added) != 0 {
		t.Errorf("second import added %d games", len(added))
	}
}

func TestFetchMetadataAndPlaytime(t *testing.T) {
	api := newFakeSteam(t)
	s := newTestService(t, api.URL, testCreds)

	for _, g := range []models.Game{
		{Name: "Portal 2", Type: models.GameTypeSteam, AppID: "620"},
		{Name: "Fortnite", Type: models.GameTypeEpic},
	} {
		if _, err := s.AddGame(g); err != nil {
			t.Fatalf("AddGame failed: %v", err)
		}
	}

	games, err := s.FetchMetadata(context.Background(), false)
	if err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	for _, g := range games {
		if !g.MetadataFetched {
			t.Errorf("%s not fetched", g.Name)
		}
	}

	n, err := s.RefreshPlaytime(context.Background())
	if err != nil {
		t.Fatalf("RefreshPlaytime failed: %v", err)
	}
	if n != 1 {
		t.Errorf("refreshed %d games, want 1", n)
	}

	portal, err := s.ListGames(models.GameFilter{Type: models.GameTypeSteam})
	if err != nil || len(portal) != 1 {
		t.Fatalf("ListGames = %v, %v", portal, err)
	}
	if portal[0].Playtime != 50 || portal[0].Genre != "Shooter" {
		t.Errorf("stored game = %+v", portal[0])
	}

	reset, err := s.ResetMetadata()
	if err != nil || reset != 2 {
		t.Errorf("ResetMetadata = %d, %v; want 2", reset, err)
	}
	if err := s.ClearMetadata(); err != nil {
		t.Fatalf("ClearMetadata failed: %v", err)
	}
	unfetched, _ := s.ListGames(models.GameFilter{UnfetchedOnly: true})
	if len(unfetched) != 2 {
		t.Errorf("%d unfetched games after clear, want 2", len(unfetched))
	}
}

func TestMissingCredentials(t *testing.T) {
	api := newFakeSteam(t)
	s := newTestService(t, api.URL, config.Credentials{})

	var messages []string
	s.Events().OnError(func(message string) { messages = append(messages, message) })

	if _, err := s.AddGame(models.Game{Name: "Portal 2", Type: models.GameTypeSteam, AppID: "620"}); err != nil {
		t.Fatalf("AddGame failed: %v", err)
	}

	if _, err := s.FetchMetadata(context.Background(), false); err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("error events = %v", messages)
	}
	if _, err := s.FetchOwnedGames(context.Background()); !errors.Is(err, metadata.ErrMissingCredentials) {
		t.Errorf("FetchOwnedGames = %v, want ErrMissingCredentials", err)
	}
	if _, err := s.RefreshPlaytime(context.Background()); !errors.Is(err, metadata.ErrMissingCredentials) {
		t.Errorf("RefreshPlaytime = %v, want ErrMissingCredentials", err)
	}
	if api.detailHits.Load() != 0 || api.ownedHits.Load() != 0 {
		t.Error("network used without credentials")
	}
}

func TestTestCredentials(t *testing.T) {
	api := newFakeSteam(t)
	s := newTestService(t, api.URL, testCreds)

	player, err := s.TestCredentials(context.Background())
	if err != nil {
		t.Fatalf("TestCredentials failed: %v", err)
	}
	if player.PersonaName != "gordon" {
		t.Errorf("PersonaName = %q", player.PersonaName)
	}
}

func TestCachePosters(t *testing.T) {
	api := newFakeSteam(t)
	s := newTestService(t, api.URL, testCreds)

	id, err := s.AddGame(models.Game{Name: "Portal 2", Type: models.GameTypeSteam, AppID: "620", PosterURL: api.URL + "/art/header.png"})
	if err != nil {
		t.Fatalf("AddGame failed: %v", err)
	}
	if _, err := s.AddGame(models.Game{Name: "No art", Type: models.GameTypeManual}); err != nil {
		t.Fatalf("AddGame failed: %v", err)
	}

	n, err := s.CachePosters(context.Background())
	if err != nil {
		t.Fatalf("CachePosters failed: %v", err)
	}
	if n != 1 {
		t.Errorf("cached %d posters, want 1", n)
	}

	game, _ := s.GetGame(id)
	if game.PosterPath == "" {
		t.Fatal("poster path not stored")
	}
	if _, err := os.Stat(game.PosterPath); err != nil {
		t.Errorf("poster file missing: %v", err)
	}

	// Cached posters are skipped
	n, err = s.CachePosters(context.Background())
	if err != nil || n != 0 {
		t.Errorf("second CachePosters = %d, %v; want 0", n, err)
	}
}

func TestStatusCounts(t *testing.T) {
	s := newTestService(t, "http://127.0.0.1:1", testCreds)
	for _, g := range []models.Game{
		{Name: "A", Type: models.GameTypeSteam, AppID: "1", MetadataFetched: true, IsInstalled: true},
		{Name: "B", Type: models.GameTypeEpic},
		{Name: "C"},
	} {
		if _, err := s.AddGame(g); err != nil {
			t.Fatalf("AddGame failed: %v", err)
		}
	}

	st, err := s.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Games != 3 || st.Fetched != 1 || st.Installed != 1 {
		t.Errorf("status = %+v", st)
	}
	if st.Steam != 1 || st.Epic != 1 || st.Manual != 1 {
		t.Errorf("per-type counts = %+v", st)
	}
}
