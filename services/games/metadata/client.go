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
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

const (
	defaultStoreURL       = "https://store.steampowered.com"
	defaultRequestTimeout = 5 * time.Second
	defaultBatchSize      = 10
)

var (
	// ErrNotFound means the store answered but has no data for the app
	ErrNotFound = errors.New("app not found in store")
	// ErrNoAppID is returned for lookups without an identifier
	ErrNoAppID = errors.New("missing app id")
)

// BatchFunc receives the results of one batch. start is the offset of
// batch within the full input; results is aligned with batch.
type BatchFunc func(start int, batch []models.Game, results []*models.AppData)

// ClientConfig configures a store metadata client
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	BatchSize  int
	BatchDelay time.Duration
	Limiter    *RateLimiter
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client looks up Steam store app details. Results are memoized by app id
// for the lifetime of the client.
type Client struct {
	baseURL    string
	timeout    time.Duration
	batchSize  int
	batchDelay time.Duration
	limiter    *RateLimiter
	httpClient *http.Client
	logger     *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*models.AppData
}

// NewClient creates a store client
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultStoreURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(RequestDelay)
	}
	// batches are never closer together than single requests
	if cfg.BatchDelay < cfg.Limiter.Interval() {
		cfg.BatchDelay = cfg.Limiter.Interval()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		limiter:    cfg.Limiter,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		cache:      make(map[string]*models.AppData),
	}
}

// AppDetails returns the store payload for one app. Successful answers and
// definitive "not found" answers are cached; transient failures are not.
func (c *Client) AppDetails(ctx context.Context, appID string) (*models.AppData, error) {
	if appID == "" {
		return nil, ErrNoAppID
	}

	if data, ok := c.cached(appID); ok {
		if data == nil {
			return nil, ErrNotFound
		}
		return data, nil
	}

	v, err, _ := c.group.Do(appID, func() (any, error) {
		if data, ok := c.cached(appID); ok {
			if data == nil {
				return nil, ErrNotFound
			}
			return data, nil
		}

		data, err := c.fetch(ctx, appID)
		if err == nil || errors.Is(err, ErrNotFound) {
			c.mu.Lock()
			c.cache[appID] = data
			c.mu.Unlock()
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.AppData), nil
}

func (c *Client) cached(appID string) (*models.AppData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.cache[appID]
	return data, ok
}

// fetch performs one rate-limited request
func (c *Client) fetch(ctx context.Context, appID string) (*models.AppData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/api/appdetails?appids=" + url.QueryEscape(appID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch app details: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("app details failed: %s (status %d)", strings.TrimSpace(string(body)), resp.StatusCode)
	}

	var payload map[string]models.AppDetailsEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode app details: %w", err)
	}

	entry, ok := payload[appID]
	if !ok || !entry.Success || entry.Data == nil {
		return nil, ErrNotFound
	}

	return entry.Data, nil
}

// FetchBatch looks up every game concurrently. The result has one entry per
// game, in input order; failed or skipped lookups are nil.
func (c *Client) FetchBatch(ctx context.Context, games []models.Game) []*models.AppData {
	results := make([]*models.AppData, len(games))

	var g errgroup.Group
	for i, game := range games {
		if game.AppID == "" {
			continue
		}
		i, game := i, game
		g.Go(func() error {
			data, err := c.AppDetails(ctx, game.AppID)
			if err != nil {
				c.logger.Warn("app details lookup failed",
					"appId", game.AppID,
					"game", game.Name,
					"error", err,
				)
				return nil
			}
			results[i] = data
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FetchAll processes games in sequential batches, pausing between batches
// for at least the limiter interval.
// Once ctx is done no new batch starts; a batch already running completes.
func (c *Client) FetchAll(ctx context.Context, games []models.Game, onBatch BatchFunc) error {
	for start := 0; start < len(games); start += c.batchSize {
		if start > 0 && c.batchDelay > 0 {
			timer := time.NewTimer(c.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+c.batchSize, len(games))
		batch := games[start:end]

		c.logger.Debug("fetching metadata batch", "start", start, "size", len(batch), "total", len(games))
		results := c.FetchBatch(context.WithoutCancel(ctx), batch)
		if onBatch != nil {
			onBatch(start, batch, results)
		}
	}

	return nil
}
