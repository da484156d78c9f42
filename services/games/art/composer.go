package art

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

const (
	DefaultPosterWidth  = 300
	DefaultPosterHeight = 450

	maxImageBytes = 20 << 20
)

// ComposerConfig configures poster caching
type ComposerConfig struct {
	CacheDir   string
	Width      int
	Height     int
	Workers    int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Composer downloads store art and renders fixed-size posters into the cache
type Composer struct {
	cacheDir string
	width    int
	height   int
	workers  int
	logger   *slog.Logger
	client   *http.Client
}

// NewComposer creates a new art composer
func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultPosterWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultPosterHeight
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Composer{
		cacheDir: cfg.CacheDir,
		width:    cfg.Width,
		height:   cfg.Height,
		workers:  cfg.Workers,
		logger:   cfg.Logger,
		client:   cfg.HTTPClient,
	}
}

// PosterPath returns where the poster for a game is cached
func (c *Composer) PosterPath(gameID int64) string {
	return filepath.Join(c.cacheDir, "posters", strconv.FormatInt(gameID, 10)+".png")
}

// HasPoster checks if a poster exists in cache
func (c *Composer) HasPoster(gameID int64) bool {
	_, err := os.Stat(c.PosterPath(gameID))
	return err == nil
}

// ComposePoster downloads an image and renders it as a PNG poster, scaled
// to cover the poster size and cropped around the centre
func (c *Composer) ComposePoster(ctx context.Context, url string) ([]byte, error) {
	img, err := c.downloadImage(ctx, url)
	if err != nil {
		return nil, err
	}

	poster := scaleToCover(img, c.width, c.height)

	var buf bytes.Buffer
	if err := png.Encode(&buf, poster); err != nil {
		return nil, fmt.Errorf("failed to encode poster: %w", err)
	}
	return buf.Bytes(), nil
}

// CachePoster renders the game's poster_url into the cache and returns the file path
func (c *Composer) CachePoster(ctx context.Context, game models.Game) (string, error) {
	if game.PosterURL == "" {
		return "", fmt.Errorf("game %d has no poster url", game.ID)
	}

	data, err := c.ComposePoster(ctx, game.PosterURL)
	if err != nil {
		return "", err
	}

	path := c.PosterPath(game.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create art cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write art cache: %w", err)
	}

	return path, nil
}

// CachePosters caches posters for every game with a poster url, a few at a
// time. onCached runs for each success and may be called concurrently.
// Individual failures are logged and skipped; the count of cached posters
// is returned.
func (c *Composer) CachePosters(ctx context.Context, games []models.Game, onCached func(game models.Game, path string)) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	var cached atomic.Int32
	for _, game := range games {
		if game.PosterURL == "" {
			continue
		}
		game := game
		g.Go(func() error {
			path, err := c.CachePoster(gctx, game)
			if err != nil {
				c.logger.Warn("failed to cache poster", "gameId", game.ID, "name", game.Name, "error", err)
				return nil
			}
			cached.Add(1)
			if onCached != nil {
				onCached(game, path)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(cached.Load()), err
	}
	if err := ctx.Err(); err != nil {
		return int(cached.Load()), err
	}
	return int(cached.Load()), nil
}

// downloadImage downloads and decodes an image from URL
func (c *Composer) downloadImage(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	c.logger.Debug("downloaded image", "url", url, "format", format, "bounds", img.Bounds().String())

	return img, nil
}

// scaleToCover scales image to cover target dimensions (like CSS background-size: cover)
// The image is scaled to completely cover the target, maintaining aspect ratio
// Any excess is cropped from edges to center the result
func scaleToCover(src image.Image, targetWidth, targetHeight int) image.Image {
	srcBounds := src.Bounds()
	srcWidth := srcBounds.Dx()
	srcHeight := srcBounds.Dy()

	// Calculate scale factors
	scaleX := float64(targetWidth) / float64(srcWidth)
	scaleY := float64(targetHeight) / float64(srcHeight)

	// Use larger scale to cover
	scale := scaleX
	if scaleY > scaleX {
		scale = scaleY
	}

	newWidth := max(int(math.Ceil(float64(srcWidth)*scale)), targetWidth)
	newHeight := max(int(math.Ceil(float64(srcHeight)*scale)), targetHeight)

	// Create scaled image
	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, srcBounds, draw.Src, nil)

	// Crop to target size (center)
	x := (newWidth - targetWidth) / 2
	y := (newHeight - targetHeight) / 2
	cropped := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.Draw(cropped, cropped.Bounds(), scaled, image.Point{X: x, Y: y}, draw.Src)
	return cropped
}
