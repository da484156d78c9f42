package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

const defaultWebAPIURL = "https://api.steampowered.com"

// ErrMissingCredentials is returned when the API key or steam id is unset
var ErrMissingCredentials = errors.New("steam API key and steam id are required")

// WebAPIConfig configures the Steam Web API client
type WebAPIConfig struct {
	APIKey     string
	SteamID    string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// WebAPI talks to the account-level Steam Web API endpoints
type WebAPI struct {
	apiKey     string
	steamID    string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebAPI creates a Web API client
func NewWebAPI(cfg WebAPIConfig) *WebAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultWebAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &WebAPI{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		steamID:    strings.TrimSpace(cfg.SteamID),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// CheckCredentials reports ErrMissingCredentials when either value is unset
func (w *WebAPI) CheckCredentials() error {
	if w.apiKey == "" || w.steamID == "" {
		return ErrMissingCredentials
	}
	return nil
}

// GetOwnedGames returns every title on the account with its playtime
func (w *WebAPI) GetOwnedGames(ctx context.Context) ([]models.OwnedGame, error) {
	if err := w.CheckCredentials(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("key", w.apiKey)
	params.Set("steamid", w.steamID)
	params.Set("include_appinfo", "true")
	params.Set("include_played_free_games", "true")
	params.Set("format", "json")

	var resp models.OwnedGamesResponse
	if err := w.get(ctx, "/IPlayerService/GetOwnedGames/v0001/", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to get owned games: %w", err)
	}

	w.logger.Info("fetched owned games", "count", len(resp.Response.Games))
	return resp.Response.Games, nil
}

// GetPlayerSummary fetches the account profile, which doubles as a
// credentials check
func (w *WebAPI) GetPlayerSummary(ctx context.Context) (*models.PlayerSummary, error) {
	if err := w.CheckCredentials(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("key", w.apiKey)
	params.Set("steamids", w.steamID)

	var resp models.PlayerSummariesResponse
	if err := w.get(ctx, "/ISteamUser/GetPlayerSummaries/v0002/", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to get player summary: %w", err)
	}
	if len(resp.Response.Players) == 0 {
		return nil, fmt.Errorf("no player found for steam id %s", w.steamID)
	}

	return &resp.Response.Players[0], nil
}

func (w *WebAPI) get(ctx context.Context, path string, params url.Values, result any) error {
	reqCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, w.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("query failed: %s (status %d)", strings.TrimSpace(string(body)), resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
