package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarise the library and the running launchers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.svc.Status(cmd.Context())
			if err != nil {
				return err
			}

			a.header("Library")
			a.printField("database", a.settings.Database.Path)
			a.printField("games", fmt.Sprintf("%d (steam %d, epic %d, manual %d)", st.Games, st.Steam, st.Epic, st.Manual))
			a.printField("installed", fmt.Sprintf("%d", st.Installed))
			a.printField("metadata", fmt.Sprintf("%d/%d fetched", st.Fetched, st.Games))

			steam := color.RedString("not running")
			if st.SteamRunning {
				steam = color.GreenString("running")
			}
			a.printField("steam client", steam)
			if len(st.Running) > 0 {
				a.printField("playing", strings.Join(st.Running, ", "))
			}
			return nil
		},
	}
}

func (a *app) newTestCredentialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-credentials",
		Short: "Check STEAM_API_KEY and STEAM_ID against the Steam Web API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := a.svc.TestCredentials(cmd.Context())
			if err != nil {
				return err
			}
			a.ok("Credentials work for %s", player.PersonaName)
			optionalField(a, "profile", player.ProfileURL)
			return nil
		},
	}
}
