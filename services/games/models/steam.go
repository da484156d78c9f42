package models

import "strings"

// AppDetailsEntry is one value of the appdetails response, keyed by app id
type AppDetailsEntry struct {
	Success bool     `json:"success"`
	Data    *AppData `json:"data,omitempty"`
}

// AppData is the store payload for a single app
type AppData struct {
	Type                string             `json:"type"`
	Name                string             `json:"name"`
	SteamAppID          int64              `json:"steam_appid"`
	ShortDescription    string             `json:"short_description"`
	DetailedDescription string             `json:"detailed_description"`
	HeaderImage         string             `json:"header_image"`
	Background          string             `json:"background"`
	Screenshots         []Screenshot       `json:"screenshots"`
	Genres              []Genre            `json:"genres"`
	Platforms           map[string]bool    `json:"platforms"`
	ReleaseDate         *ReleaseDate       `json:"release_date"`
	Metacritic          *Metacritic        `json:"metacritic"`
	ContentDescriptors  *ContentDescriptor `json:"content_descriptors"`
	Developers          []string           `json:"developers"`
	Publishers          []string           `json:"publishers"`
}

type Screenshot struct {
	ID            int    `json:"id"`
	PathThumbnail string `json:"path_thumbnail"`
	PathFull      string `json:"path_full"`
}

type Genre struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type ReleaseDate struct {
	ComingSoon bool   `json:"coming_soon"`
	Date       string `json:"date"`
}

type Metacritic struct {
	Score int    `json:"score"`
	URL   string `json:"url"`
}

type ContentDescriptor struct {
	IDs   []int  `json:"ids"`
	Notes string `json:"notes"`
}

// OwnedGame is one entry of IPlayerService/GetOwnedGames
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	Playtime2Weeks  int    `json:"playtime_2weeks"`
	ImgIconURL      string `json:"img_icon_url"`
	RtimeLastPlayed int64  `json:"rtime_last_played"`
}

// OwnedGamesResponse wraps the owned-games payload
type OwnedGamesResponse struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

// PlayerSummary is the subset of ISteamUser/GetPlayerSummaries we use
type PlayerSummary struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	ProfileURL  string `json:"profileurl"`
}

type PlayerSummariesResponse struct {
	Response struct {
		Players []PlayerSummary `json:"players"`
	} `json:"response"`
}

const steamRunPrefix = "steam://rungameid/"

// SteamLaunchCommand builds the steam:// URL that starts an app
func SteamLaunchCommand(appID string) string {
	return steamRunPrefix + appID
}

// SteamAppIDFromLaunchCommand extracts the digits following steam://rungameid/.
// It returns "" when the command is not a Steam run URL or carries no digits.
func SteamAppIDFromLaunchCommand(command string) string {
	idx := strings.LastIndex(command, steamRunPrefix)
	if idx < 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range command[idx+len(steamRunPrefix):] {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
