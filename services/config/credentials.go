package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvSteamAPIKey = "STEAM_API_KEY"
	EnvSteamID     = "STEAM_ID"
)

// Credentials authenticate against the Steam Web API
type Credentials struct {
	APIKey  string
	SteamID string
}

// Complete reports whether both values are present
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.SteamID != ""
}

// LoadCredentials reads STEAM_API_KEY and STEAM_ID from the environment
// after loading any of the given .env files that exist. Variables already
// set in the environment win over file values.
func LoadCredentials(envFiles ...string) (Credentials, error) {
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return Credentials{}, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return Credentials{
		APIKey:  strings.TrimSpace(os.Getenv(EnvSteamAPIKey)),
		SteamID: strings.TrimSpace(os.Getenv(EnvSteamID)),
	}, nil
}
