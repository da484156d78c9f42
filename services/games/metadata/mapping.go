package metadata

import (
	"sort"
	"strings"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

const maxDescriptionLength = 500

// MapAppData copies a store payload onto game using fixed fallbacks.
// The game's name and playtime are never touched.
func MapAppData(game *models.Game, data *models.AppData) {
	if game == nil || data == nil {
		return
	}

	if poster := posterURL(data); poster != "" {
		game.PosterURL = poster
	}
	if data.Background != "" {
		game.BackgroundURL = data.Background
	}

	game.Description = description(data)

	game.Genre = models.NoGenre
	if len(data.Genres) > 0 {
		names := make([]string, 0, len(data.Genres))
		for _, g := range data.Genres {
			if g.Description != "" {
				names = append(names, g.Description)
			}
		}
		if len(names) > 0 {
			game.Genre = strings.Join(names, ", ")
		}
	}

	game.Platforms = supportedPlatforms(data.Platforms)

	game.ReleaseDate = models.NoReleaseDate
	if data.ReleaseDate != nil && data.ReleaseDate.Date != "" {
		game.ReleaseDate = data.ReleaseDate.Date
	}

	// Metacritic scores are 0-100; the rating is on a 0-5 scale
	if data.Metacritic != nil {
		game.Metacritic = data.Metacritic.Score
		game.Rating = float64(data.Metacritic.Score) / 20
	} else {
		game.Metacritic = 0
		game.Rating = 0
	}

	game.ESRBRating = models.NoContentRating
	if data.ContentDescriptors != nil && data.ContentDescriptors.Notes != "" {
		game.ESRBRating = data.ContentDescriptors.Notes
	}

	game.Developers = copyList(data.Developers)
	game.Publishers = copyList(data.Publishers)
}

func posterURL(data *models.AppData) string {
	if data.HeaderImage != "" {
		return data.HeaderImage
	}
	if len(data.Screenshots) > 0 && data.Screenshots[0].PathFull != "" {
		return data.Screenshots[0].PathFull
	}
	return data.Background
}

func description(data *models.AppData) string {
	if data.ShortDescription != "" {
		return data.ShortDescription
	}
	if data.DetailedDescription != "" {
		runes := []rune(data.DetailedDescription)
		if len(runes) > maxDescriptionLength {
			return string(runes[:maxDescriptionLength]) + "..."
		}
		return data.DetailedDescription
	}
	return models.NoDescription
}

// supportedPlatforms returns the keys set to true, sorted for stable storage
func supportedPlatforms(platforms map[string]bool) []string {
	out := []string{}
	for name, supported := range platforms {
		if supported {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func copyList(values []string) []string {
	out := make([]string, 0, len(values))
	return append(out, values...)
}
