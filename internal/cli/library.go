package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rhythmerc/gentro-library/services/games/database"
	"github.com/rhythmerc/gentro-library/services/games/models"
)

func (a *app) newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "scan",
		Short:       "Add installed games from the local Steam and Epic launchers",
		Args:        cobra.NoArgs,
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.svc.ScanLibraries(cmd.Context())
			if err != nil {
				return err
			}
			a.ok("Found %d games, %d new", result.Found, result.Added)

			changed, err := a.svc.RefreshInstallState(cmd.Context())
			if err != nil {
				return err
			}
			if changed > 0 {
				a.ok("Updated install state of %d games", changed)
			}
			return nil
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	var (
		gameType  string
		installed bool
		unfetched bool
		search    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List games in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.GameFilter{
				Type:          models.GameType(gameType),
				InstalledOnly: installed,
				UnfetchedOnly: unfetched,
				Search:        search,
			}
			if filter.Type != "" && !filter.Type.Valid() {
				return fmt.Errorf("unknown game type %q", gameType)
			}

			list, err := a.svc.ListGames(filter)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				a.warn("No games found")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tGENRE\tPLAYTIME\tSTATE")
			for _, g := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					g.ID, g.Name, g.Type, g.Genre, formatPlaytime(g.Playtime), gameState(g))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\n%d games\n", len(list))
			return nil
		},
	}

	cmd.Flags().StringVar(&gameType, "type", "", "Only list games of this type (steam, epic, manual)")
	cmd.Flags().BoolVar(&installed, "installed", false, "Only list installed games")
	cmd.Flags().BoolVar(&unfetched, "unfetched", false, "Only list games without metadata")
	cmd.Flags().StringVar(&search, "search", "", "Only list games whose name contains this text")
	return cmd
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show everything stored about a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			g, err := a.svc.GetGame(id)
			if err != nil {
				return err
			}
			if g == nil {
				return fmt.Errorf("game %d not found", id)
			}

			a.header("Game: %s", g.Name)
			a.printField("id", strconv.FormatInt(g.ID, 10))
			a.printField("type", string(g.Type))
			optionalField(a, "app_id", g.AppID)
			optionalField(a, "epic_app_id", g.EpicAppID)
			optionalField(a, "launch", g.LaunchCommand)
			optionalField(a, "install_path", g.InstallPath)
			a.printField("installed", yesNo(g.IsInstalled))
			a.printField("playtime", formatPlaytime(g.Playtime))
			if g.LastPlayed != nil {
				a.printField("last_played", g.LastPlayed.Local().Format("2006-01-02 15:04"))
			}

			if !g.MetadataFetched {
				a.printField("metadata", color.YellowString("not fetched"))
				return nil
			}
			a.printField("metadata", color.GreenString("fetched"))
			optionalField(a, "genre", g.Genre)
			optionalField(a, "released", g.ReleaseDate)
			if g.Metacritic > 0 {
				a.printField("metacritic", fmt.Sprintf("%d (%.1f/5)", g.Metacritic, g.Rating))
			}
			optionalField(a, "rating", g.ESRBRating)
			if len(g.Platforms) > 0 {
				a.printField("platforms", strings.Join(g.Platforms, ", "))
			}
			if len(g.Developers) > 0 {
				a.printField("developers", strings.Join(g.Developers, ", "))
			}
			if len(g.Publishers) > 0 {
				a.printField("publishers", strings.Join(g.Publishers, ", "))
			}
			optionalField(a, "poster", firstNonEmpty(g.PosterPath, g.PosterURL))
			optionalField(a, "description", g.Description)
			return nil
		},
	}
}

func (a *app) newAddCmd() *cobra.Command {
	var game models.Game
	var gameType string

	cmd := &cobra.Command{
		Use:         "add <name>",
		Short:       "Add a game by hand",
		Args:        cobra.ExactArgs(1),
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			game.Name = args[0]
			game.Type = models.GameType(gameType)
			game.IsInstalled = game.InstallPath != ""

			id, err := a.svc.AddGame(game)
			if err != nil {
				return err
			}
			a.ok("Added %s (id %d)", game.Name, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&gameType, "type", string(models.GameTypeManual), "Game type (steam, epic, manual)")
	cmd.Flags().StringVar(&game.AppID, "app-id", "", "Steam app id")
	cmd.Flags().StringVar(&game.InstallPath, "install-path", "", "Install directory")
	cmd.Flags().StringVar(&game.LaunchCommand, "launch", "", "Launch command")
	return cmd
}

func (a *app) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "remove <id>",
		Short:       "Remove a game from the library",
		Args:        cobra.ExactArgs(1),
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.RemoveGame(id); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("game %d not found", id)
				}
				return err
			}
			a.ok("Removed game %d", id)
			return nil
		},
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid game id %q", raw)
	}
	return id, nil
}

// formatPlaytime renders minutes as "12h 5m"
func formatPlaytime(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func gameState(g models.Game) string {
	var parts []string
	if g.IsInstalled {
		parts = append(parts, "installed")
	}
	if !g.MetadataFetched {
		parts = append(parts, "unfetched")
	}
	return strings.Join(parts, ",")
}

func optionalField(a *app, label, value string) {
	if value != "" {
		a.printField(label, value)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
