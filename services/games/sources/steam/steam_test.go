package steam

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func writeManifest(t *testing.T, library, appID, name, installDir, stateFlags string) {
	t.Helper()
	content := fmt.Sprintf(`"AppState"
{
	"appid"		"%s"
	"name"		"%s"
	"installdir"		"%s"
	"StateFlags"		"%s"
	"SizeOnDisk"		"1024"
}`, appID, name, installDir, stateFlags)
	writeFile(t, filepath.Join(library, "steamapps", "appmanifest_"+appID+".acf"), content)
}

func newTestSource(t *testing.T, root string) *Source {
	t.Helper()
	s := NewSource(nil)
	if err := s.Init(map[string]any{"installPath": root}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s
}

func TestIsTool(t *testing.T) {
	tempDir := t.TempDir()

	// Directory with toolmanifest.vdf (tool)
	toolDir := filepath.Join(tempDir, "Proton - Experimental")
	writeFile(t, filepath.Join(toolDir, "toolmanifest.vdf"), "\"manifest\"\n{\n}")
	if !isTool(toolDir) {
		t.Errorf("isTool(%s) = false, want true", toolDir)
	}

	// Directory without toolmanifest.vdf (game)
	gameDir := filepath.Join(tempDir, "The Witcher 3")
	if err := os.MkdirAll(gameDir, 0755); err != nil {
		t.Fatalf("failed to create game dir: %v", err)
	}
	if isTool(gameDir) {
		t.Errorf("isTool(%s) = true, want false", gameDir)
	}

	// Non-existent directory
	if isTool(filepath.Join(tempDir, "non-existent")) {
		t.Error("isTool = true for non-existent dir")
	}
}

func TestParseAppManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "620", "Portal 2", "Portal 2", "4")

	manifest, err := ParseAppManifest(filepath.Join(root, "steamapps", "appmanifest_620.acf"))
	if err != nil {
		t.Fatalf("ParseAppManifest failed: %v", err)
	}
	if manifest.AppID != "620" || manifest.Name != "Portal 2" || manifest.SizeOnDisk != 1024 {
		t.Errorf("unexpected manifest: %+v", manifest)
	}
	if manifest.InstallPath != filepath.Join(root, "steamapps", "common", "Portal 2") {
		t.Errorf("InstallPath = %q", manifest.InstallPath)
	}

	game := manifest.Game()
	if game.Type != models.GameTypeSteam || game.LaunchCommand != "steam://rungameid/620" || !game.IsInstalled {
		t.Errorf("unexpected game: %+v", game)
	}
}

func TestParseAppManifestWithoutAppID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appmanifest_1.acf")
	writeFile(t, path, "\"AppState\"\n{\n\t\"name\"\t\"nothing\"\n}")

	if _, err := ParseAppManifest(path); err == nil {
		t.Error("expected error for manifest without appid")
	}
}

func TestParseLibraryFolders(t *testing.T) {
	dir := t.TempDir()

	nested := filepath.Join(dir, "nested.vdf")
	writeFile(t, nested, `"libraryfolders"
{
	"contentstatsid"		"123"
	"1"
	{
		"path"		"/mnt/b"
		"apps"
		{
			"620"		"1024"
		}
	}
	"0"
	{
		"path"		"/mnt/a"
		"label"		""
	}
}`)
	folders, err := ParseLibraryFolders(nested)
	if err != nil {
		t.Fatalf("ParseLibraryFolders failed: %v", err)
	}
	if !reflect.DeepEqual(folders, []string{"/mnt/a", "/mnt/b"}) {
		t.Errorf("folders = %v", folders)
	}

	legacy := filepath.Join(dir, "legacy.vdf")
	writeFile(t, legacy, `"LibraryFolders"
{
	"TimeNextStatsReport"		"1"
	"1"		"/games/steam"
}`)
	folders, err = ParseLibraryFolders(legacy)
	if err != nil {
		t.Fatalf("ParseLibraryFolders failed: %v", err)
	}
	if !reflect.DeepEqual(folders, []string{"/games/steam"}) {
		t.Errorf("legacy folders = %v", folders)
	}
}

func TestGetGamesAcrossLibraries(t *testing.T) {
	root := t.TempDir()
	extra := t.TempDir()

	writeFile(t, filepath.Join(root, "steamapps", "libraryfolders.vdf"), fmt.Sprintf(`"libraryfolders"
{
	"0"
	{
		"path"		"%s"
	}
	"1"
	{
		"path"		"%s"
	}
}`, filepath.ToSlash(root), filepath.ToSlash(extra)))

	writeManifest(t, root, "620", "Portal 2", "Portal 2", "4")
	writeManifest(t, extra, "440", "Team Fortress 2", "Team Fortress 2", "1026")

	// Tools are not library entries
	writeManifest(t, root, "1493710", "Proton Experimental", "Proton - Experimental", "4")
	writeFile(t, filepath.Join(root, "steamapps", "common", "Proton - Experimental", "toolmanifest.vdf"), "test")

	// Non-manifest files are ignored
	writeFile(t, filepath.Join(root, "steamapps", "notes.txt"), "hello")

	s := newTestSource(t, root)
	if got := len(s.LibraryFolders()); got != 2 {
		t.Errorf("LibraryFolders() has %d entries, want 2", got)
	}

	games, err := s.GetGames(context.Background())
	if err != nil {
		t.Fatalf("GetGames failed: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("got %d games, want 2: %+v", len(games), games)
	}

	byID := map[string]models.Game{}
	for _, g := range games {
		byID[g.AppID] = g
	}
	if !byID["620"].IsInstalled {
		t.Error("Portal 2 should be installed")
	}
	if byID["440"].IsInstalled {
		t.Error("a partially installed game should not count as installed")
	}
}

func TestIsInstalledUsesStateFlags(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "620", "Portal 2", "Portal 2", "4")
	writeManifest(t, root, "70", "Half-Life", "Half-Life", "6")

	s := newTestSource(t, root)

	tests := []struct {
		game models.Game
		want bool
	}{
		{models.Game{Type: models.GameTypeSteam, AppID: "620"}, true},
		{models.Game{Type: models.GameTypeSteam, LaunchCommand: "steam://rungameid/620"}, true},
		{models.Game{Type: models.GameTypeSteam, AppID: "70"}, false},
		{models.Game{Type: models.GameTypeSteam, AppID: "999"}, false},
		{models.Game{Type: models.GameTypeSteam}, false},
	}
	for _, tt := range tests {
		if got := s.IsInstalled(tt.game); got != tt.want {
			t.Errorf("IsInstalled(%+v) = %v, want %v", tt.game, got, tt.want)
		}
	}
}

func TestInitMissingPath(t *testing.T) {
	s := NewSource(nil)
	err := s.Init(map[string]any{"installPath": filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Error("expected error for missing Steam path")
	}
}

// BenchmarkIsTool benchmarks the tool detection
func BenchmarkIsTool(b *testing.B) {
	tempDir := b.TempDir()
	toolDir := filepath.Join(tempDir, "tool")
	os.MkdirAll(toolDir, 0755)
	os.WriteFile(filepath.Join(toolDir, "toolmanifest.vdf"), []byte("test"), 0644)

	gameDir := filepath.Join(tempDir, "game")
	os.MkdirAll(gameDir, 0755)

	b.Run("Tool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			isTool(toolDir)
		}
	})

	b.Run("Game", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			isTool(gameDir)
		}
	})
}
