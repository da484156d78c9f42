package apppaths

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

var GentroStorage = filepath.Join(xdg.DataHome, "gentro")
var ArtCache = filepath.Join(GentroStorage, "art")
var DatabasePath = filepath.Join(GentroStorage, "games.db")
var ConfigPath = filepath.Join(GentroStorage, "config", "gentro.toml")
var LogPath = filepath.Join(xdg.StateHome, "gentro", "gentro.log")

// EnvFiles lists where credentials may be kept, most specific first
func EnvFiles() []string {
	return []string{".env", filepath.Join(GentroStorage, ".env")}
}
