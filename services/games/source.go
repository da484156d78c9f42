package games

import (
	"context"
	"sort"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

// GameSource defines the interface for local launcher sources (Steam, Epic)
type GameSource interface {
	// Name returns the source identifier, matching a models.GameType
	Name() string

	// Init initializes the source with configuration
	Init(config map[string]any) error

	// GetGames returns the games the launcher has on disk
	GetGames(ctx context.Context) ([]models.Game, error)

	// IsInstalled reports whether the launcher currently has the game installed
	IsInstalled(game models.Game) bool
}

// SourceRegistry manages multiple game sources
type SourceRegistry struct {
	sources map[string]GameSource
}

// NewSourceRegistry creates a new source registry
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{
		sources: make(map[string]GameSource),
	}
}

// Register adds a source to the registry
func (r *SourceRegistry) Register(source GameSource) error {
	return r.RegisterWithConfig(source, nil)
}

// RegisterWithConfig adds a source with configuration
func (r *SourceRegistry) RegisterWithConfig(source GameSource, config map[string]any) error {
	if err := source.Init(config); err != nil {
		return err
	}
	r.sources[source.Name()] = source
	return nil
}

// Get returns a source by name
func (r *SourceRegistry) Get(name string) (GameSource, bool) {
	source, ok := r.sources[name]
	return source, ok
}

// GetAll returns all registered sources ordered by name
func (r *SourceRegistry) GetAll() []GameSource {
	sources := make([]GameSource, 0, len(r.sources))
	for _, name := range r.GetNames() {
		sources = append(sources, r.sources[name])
	}
	return sources
}

// GetNames returns all registered source names, sorted
func (r *SourceRegistry) GetNames() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
