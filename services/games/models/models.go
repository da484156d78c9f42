package models

import (
	"time"
)

// GameType identifies where a library entry came from
type GameType string

const (
	GameTypeSteam  GameType = "steam"
	GameTypeEpic   GameType = "epic"
	GameTypeManual GameType = "manual"
)

// Valid reports whether t is one of the known game types
func (t GameType) Valid() bool {
	switch t {
	case GameTypeSteam, GameTypeEpic, GameTypeManual:
		return true
	}
	return false
}

// Placeholder values written by the metadata mapping when the store has no data
const (
	NoDescription   = "No description available"
	NoGenre         = "Uncategorized"
	NoReleaseDate   = "Unknown"
	NoContentRating = "Not Rated"
)

// Game represents a library entry
type Game struct {
	ID            int64    `json:"id" db:"id"`
	Name          string   `json:"name" db:"name"`
	Type          GameType `json:"type" db:"type"`
	AppID         string   `json:"appId,omitempty" db:"app_id"`
	EpicAppID     string   `json:"epicAppId,omitempty" db:"epic_app_id"`
	InstallPath   string   `json:"installPath,omitempty" db:"install_path"`
	LaunchCommand string   `json:"launchCommand,omitempty" db:"launch_command"`
	IsInstalled   bool     `json:"isInstalled" db:"is_installed"`

	Genre         string   `json:"genre,omitempty" db:"genre"`
	Description   string   `json:"description,omitempty" db:"description"`
	ReleaseDate   string   `json:"releaseDate,omitempty" db:"release_date"`
	Rating        float64  `json:"rating" db:"rating"`
	Metacritic    int      `json:"metacritic" db:"metacritic"`
	ESRBRating    string   `json:"esrbRating,omitempty" db:"esrb_rating"`
	PosterURL     string   `json:"posterUrl,omitempty" db:"poster_url"`
	PosterPath    string   `json:"posterPath,omitempty" db:"poster_path"`
	BackgroundURL string   `json:"backgroundUrl,omitempty" db:"background_url"`
	Platforms     []string `json:"platforms" db:"platforms"`
	Developers    []string `json:"developers" db:"developers"`
	Publishers    []string `json:"publishers" db:"publishers"`

	// Playtime is in minutes and only ever written from the owned-games endpoint
	Playtime        int        `json:"playtime" db:"playtime"`
	MetadataFetched bool       `json:"metadataFetched" db:"metadata_fetched"`
	LastPlayed      *time.Time `json:"lastPlayed,omitempty" db:"last_played"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// NeedsRemoteLookup reports whether metadata for this game comes from the Steam store
func (g Game) NeedsRemoteLookup() bool {
	return g.Type == GameTypeSteam
}

// GameUpdate is a typed partial update. Nil fields are left untouched.
type GameUpdate struct {
	Name          *string
	AppID         *string
	EpicAppID     *string
	InstallPath   *string
	LaunchCommand *string
	IsInstalled   *bool

	Genre         *string
	Description   *string
	ReleaseDate   *string
	Rating        *float64
	Metacritic    *int
	ESRBRating    *string
	PosterURL     *string
	PosterPath    *string
	BackgroundURL *string
	Platforms     *[]string
	Developers    *[]string
	Publishers    *[]string

	MetadataFetched *bool
	LastPlayed      *time.Time
}

// IsEmpty reports whether the update would change nothing
func (u GameUpdate) IsEmpty() bool {
	return u == GameUpdate{}
}

// MetadataUpdate builds the update persisted after a metadata fetch.
// It always marks the game fetched and never carries playtime.
func MetadataUpdate(g Game) GameUpdate {
	fetched := true
	platforms := nonNil(g.Platforms)
	developers := nonNil(g.Developers)
	publishers := nonNil(g.Publishers)
	return GameUpdate{
		Genre:           &g.Genre,
		Description:     &g.Description,
		ReleaseDate:     &g.ReleaseDate,
		Rating:          &g.Rating,
		Metacritic:      &g.Metacritic,
		ESRBRating:      &g.ESRBRating,
		PosterURL:       &g.PosterURL,
		BackgroundURL:   &g.BackgroundURL,
		Platforms:       &platforms,
		Developers:      &developers,
		Publishers:      &publishers,
		MetadataFetched: &fetched,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// GameFilter narrows a library listing
type GameFilter struct {
	Type          GameType `json:"type,omitempty"`
	InstalledOnly bool     `json:"installedOnly"`
	UnfetchedOnly bool     `json:"unfetchedOnly"`
	Search        string   `json:"search,omitempty"`
}

// Helpers for building GameUpdate literals
func String(s string) *string { return &s }
func Bool(b bool) *bool { return &b }
func Int(i int) *int { return &i }
func Float(f float64) *float64 { return &f }
func Strings(s []string) *[]string { return &s }
